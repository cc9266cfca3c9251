package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("ENV", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10, cfg.ReferenceMaxAttempts)
	assert.Equal(t, 3, cfg.AppointmentRetryAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.AppointmentRetryInitial)
	assert.Equal(t, 2*time.Second, cfg.AppointmentRetryMax)
	assert.Equal(t, "booking.lifecycle", cfg.EventsChannel)
	assert.False(t, cfg.AuthEnabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "Staging")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("REFERENCE_MAX_ATTEMPTS", "4")
	t.Setenv("APPOINTMENT_RETRY_INITIAL", "5ms")
	t.Setenv("APPOINTMENT_RETRY_MAX", "50ms")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.AppEnv)
	assert.True(t, cfg.AuthEnabled())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 4, cfg.ReferenceMaxAttempts)
	assert.Equal(t, 5*time.Millisecond, cfg.AppointmentRetryInitial)
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"bad duration":        {"APPOINTMENT_RETRY_INITIAL": "soon"},
		"bad int":             {"REFERENCE_MAX_ATTEMPTS": "many"},
		"zero attempts":       {"REFERENCE_MAX_ATTEMPTS": "0"},
		"max below initial":   {"APPOINTMENT_RETRY_INITIAL": "1s", "APPOINTMENT_RETRY_MAX": "10ms"},
		"prod without secret": {"APP_ENV": "production", "JWT_SECRET": "", "DATABASE_URL": "postgres://x"},
		"prod with sqlite":    {"APP_ENV": "release", "JWT_SECRET": "x", "DATABASE_URL": "local.db"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}
