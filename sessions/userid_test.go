package sessions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserID(t *testing.T) {
	secret := []byte("test-secret")

	a, err := UserID(secret, "+1 (919) 555-0100")
	require.NoError(t, err)
	b, err := UserID(secret, "+19195550100")
	require.NoError(t, err)
	assert.Equal(t, a, b, "formatting must not change the id")
	assert.Len(t, a, 64)
	assert.NotContains(t, a, "9195550100")

	other, err := UserID([]byte("another-secret"), "+19195550100")
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestUserID_SecretTooLong(t *testing.T) {
	_, err := UserID(make([]byte, 65), "+19195550100")
	assert.Error(t, err)
}

func TestNormalizeContact(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+1 (919) 555-0100", "+19195550100"},
		{" 919.555.0100 ", "9195550100"},
		{"Voter@Example.org", "voter@example.org"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeContact(tt.in))
		})
	}
}
