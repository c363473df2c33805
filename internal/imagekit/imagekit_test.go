package imagekit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignature_KnownVector(t *testing.T) {
	got := Signature("private_key_test", "your_token", 1655379249)
	assert.Equal(t, "239f84d664cd64492ebf366e2c8a1cbe529dac74", got)
}

func TestSigner_Sign(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	s := NewSigner("private_key_test", "public", "https://ik.imagekit.io/demo")
	s.now = func() time.Time { return fixed }
	s.newToken = func() string { return "tok" }

	tests := []struct {
		name string
		ttl  time.Duration
		want int64
	}{
		{"Default", 0, fixed.Add(DefaultExpiry).Unix()},
		{"Custom", 10 * time.Minute, fixed.Add(10 * time.Minute).Unix()},
		{"Clamped", 3 * time.Hour, fixed.Add(MaxExpiry).Unix()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := s.Sign(tt.ttl)
			require.NoError(t, err)
			assert.Equal(t, "tok", p.Token)
			assert.Equal(t, tt.want, p.Expire)
			assert.Equal(t, Signature("private_key_test", "tok", tt.want), p.Signature)
		})
	}
}

func TestSigner_NotConfigured(t *testing.T) {
	_, err := NewSigner("", "", "").Sign(0)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSigner_FreshTokens(t *testing.T) {
	s := NewSigner("k", "", "")
	a, err := s.Sign(0)
	require.NoError(t, err)
	b, err := s.Sign(0)
	require.NoError(t, err)
	assert.NotEqual(t, a.Token, b.Token)
}
