package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setJWTEnv(t *testing.T, secret, hours, issuer string) {
	t.Helper()
	t.Setenv("JWT_SECRET", secret)
	t.Setenv("JWT_EXPIRATION_HOURS", hours)
	t.Setenv("JWT_ISSUER", issuer)
}

func TestNewJWTConfig_Defaults(t *testing.T) {
	setJWTEnv(t, "operator-signing-key", "", "")

	cfg, err := NewJWTConfig()
	require.NoError(t, err)
	assert.Equal(t, "operator-signing-key", cfg.Secret)
	assert.Equal(t, 24, cfg.ExpirationHours)
	assert.Equal(t, DefaultIssuer, cfg.Issuer)
}

func TestNewJWTConfig_Overrides(t *testing.T) {
	setJWTEnv(t, "operator-signing-key", "168", "qa-staging")

	cfg, err := NewJWTConfig()
	require.NoError(t, err)
	assert.Equal(t, 168, cfg.ExpirationHours)
	assert.Equal(t, "qa-staging", cfg.Issuer)
}

func TestNewJWTConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		hours   string
		wantErr string
	}{
		{name: "missing secret", secret: "", hours: "24", wantErr: "JWT_SECRET is required"},
		{name: "non-numeric expiration", secret: "k", hours: "a day", wantErr: "invalid JWT_EXPIRATION_HOURS"},
		{name: "fractional expiration", secret: "k", hours: "1.5", wantErr: "invalid JWT_EXPIRATION_HOURS"},
		{name: "zero expiration", secret: "k", hours: "0", wantErr: "at least 1 hour"},
		{name: "negative expiration", secret: "k", hours: "-3", wantErr: "at least 1 hour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setJWTEnv(t, tt.secret, tt.hours, "")

			cfg, err := NewJWTConfig()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestJWTEnabled(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	assert.False(t, JWTEnabled())

	t.Setenv("JWT_SECRET", "operator-signing-key")
	assert.True(t, JWTEnabled())
}
