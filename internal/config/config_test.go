package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("PORT", "")
		t.Setenv("DB_DRIVER", "")
		t.Setenv("DB_DSN", "")
		t.Setenv("APP_ENV", "")
		t.Setenv("JWT_SECRET", "")
		t.Setenv("JWT_TTL", "")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, "sqlite", cfg.DBDriver)
		assert.Equal(t, "bookfair.db", cfg.DBDSN)
		assert.Equal(t, devSecret, cfg.JWTSecret)
		assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
		assert.False(t, cfg.Production())
	})

	t.Run("From env", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		t.Setenv("DB_DRIVER", "postgres")
		t.Setenv("DB_DSN", "postgres://bookfair@localhost/bookfair?sslmode=disable")
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("JWT_TTL", "90m")
		t.Setenv("BOOKFAIR_URL", "http://shop.test")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "9090", cfg.Port)
		assert.Equal(t, "postgres", cfg.DBDriver)
		assert.Equal(t, "s3cret", cfg.JWTSecret)
		assert.Equal(t, 90*time.Minute, cfg.JWTTTL)
		assert.Equal(t, "http://shop.test", cfg.BaseURL)
	})

	t.Run("Bad TTL keeps default", func(t *testing.T) {
		t.Setenv("JWT_TTL", "soon")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	})

	t.Run("Production requires secret", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("JWT_SECRET", "")
		_, err := Load()
		assert.ErrorIs(t, err, ErrMissingSecret)
	})
}
