package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracerProvider(t *testing.T) {
	var buf bytes.Buffer
	tp, err := InitTracerProvider("helpline-test", &buf)
	require.NoError(t, err)

	_, span := Tracer.Start(context.Background(), "probe")
	span.End()

	require.NoError(t, tp.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "probe")
	assert.Contains(t, buf.String(), "helpline-test")
}
