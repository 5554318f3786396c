package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("NODE_ENV", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.App.Port)
	assert.Equal(t, 2160*time.Hour, cfg.Auth.JWTExpiresIn)
	assert.Equal(t, 90*24*time.Hour, cfg.CookieTTL())
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, 100, cfg.Limits.RateLimitRequests)
	assert.Equal(t, time.Hour, cfg.Limits.RateLimitWindow)
	assert.NotEmpty(t, cfg.Auth.JWTSecret)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.env")
	require.NoError(t, os.WriteFile(path, []byte("DB_DRIVER=memory\nPORT=8081\nJWT_SECRET=file-secret\n"), 0o600))
	for _, k := range []string{"DB_DRIVER", "PORT", "JWT_SECRET"} {
		k := k
		prev, had := os.LookupEnv(k)
		require.NoError(t, os.Unsetenv(k))
		t.Cleanup(func() {
			if had {
				os.Setenv(k, prev)
			} else {
				os.Unsetenv(k)
			}
		})
	}

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "8081", cfg.App.Port)
	assert.Equal(t, "file-secret", cfg.Auth.JWTSecret)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			App:      AppConfig{Env: EnvProduction},
			Database: DatabaseConfig{Driver: "memory"},
			Auth:     AuthConfig{JWTSecret: "s", JWTExpiresIn: time.Hour},
			Email:    EmailConfig{Transport: "log"},
		}
	}

	cfg := base()
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Auth.JWTSecret = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Database.Driver = "sqlite"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Database.Driver = "mongo"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Email.Transport = "nats"
	assert.Error(t, cfg.Validate())
}
