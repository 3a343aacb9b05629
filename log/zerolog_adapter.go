package log

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName is stamped on every entry.
const ServiceName = "helpline"

type zerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter logs to stderr, as console lines when pretty is set and
// JSON otherwise.
func NewZerologAdapter(level zerolog.Level, pretty bool) Logger {
	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return NewWriterAdapter(out, level)
}

// NewWriterAdapter creates a Logger writing JSON lines to w.
func NewWriterAdapter(w io.Writer, level zerolog.Level) Logger {
	return &zerologAdapter{logger: zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", ServiceName).
		Logger()}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return &zerologAdapter{logger: zerolog.Nop()}
}

// write finishes an entry with the span of ctx, if any, and the field maps.
func write(ctx context.Context, event *zerolog.Event, msg string, fields []map[string]interface{}) {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		event = event.Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String())
	}
	for _, f := range fields {
		event = event.Fields(f)
	}
	event.Msg(msg)
}

func (z *zerologAdapter) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	write(ctx, z.logger.Debug(), msg, fields)
}

func (z *zerologAdapter) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	write(ctx, z.logger.Info(), msg, fields)
}

func (z *zerologAdapter) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	write(ctx, z.logger.Warn(), msg, fields)
}

func (z *zerologAdapter) Error(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	write(ctx, z.logger.Error().Err(err), msg, fields)
}

func (z *zerologAdapter) Fatal(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	write(ctx, z.logger.Fatal().Err(err), msg, fields)
}

func (z *zerologAdapter) WithContext(ctx context.Context) context.Context {
	return z.logger.WithContext(ctx)
}

// With adds fields to every entry. Trace ids are still taken per call.
func (z *zerologAdapter) With(fields map[string]interface{}) Logger {
	return &zerologAdapter{logger: z.logger.With().Fields(fields).Logger()}
}
