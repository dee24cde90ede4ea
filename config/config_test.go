package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/campusride")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("FRONTEND_URL", "http://localhost:5173")
	t.Setenv("SENDGRID_API_KEY", "SG.key")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTExpiresIn)
	assert.Equal(t, 100, cfg.RateLimitMax)
	assert.Equal(t, 15*time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	assert.Equal(t, "@cornell.edu", cfg.EmailDomain)
	assert.False(t, cfg.R2.Enabled())
	assert.False(t, cfg.Google.Enabled())
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("FRONTEND_URL", "http://localhost")
	t.Setenv("SENDGRID_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "SENDGRID_API_KEY")
	assert.NotContains(t, err.Error(), "FRONTEND_URL")
}

func TestLoadRejectsNonPositiveRateLimit(t *testing.T) {
	setRequired(t)
	t.Setenv("RATE_LIMIT_MAX", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_MAX")

	t.Setenv("RATE_LIMIT_MAX", "-3")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("RATE_LIMIT_MAX", "50")
	t.Setenv("RATE_LIMIT_WINDOW", "0s")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_WINDOW")
}

func TestDiscreteDatabaseVariables(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_NAME", "campus")
	t.Setenv("DB_PASSWORD", "pw")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "host=db user=app password=pw dbname=campus port=5432 sslmode=disable", cfg.DatabaseURL)
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("7d")
	require.NoError(t, err)
	assert.Equal(t, 168*time.Hour, d)

	d, err = ParseDuration("90m")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	_, err = ParseDuration("xd")
	assert.Error(t, err)
}

func TestGetEnvAsSlice(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", " http://a.com , ,http://b.com")
	assert.Equal(t, []string{"http://a.com", "http://b.com"}, GetEnvAsSlice("ALLOWED_ORIGINS", nil))
}
