package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("DATABASE_DSN", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 100, cfg.Database.MaxOpenConns)
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10*time.Second, cfg.Lookup.Timeout)
	assert.Equal(t, "https://openlibrary.org", cfg.Lookup.OpenLibraryURL)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Seed.EntityTypes)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "8088")
	t.Setenv("DATABASE_DSN", "file:test.db")
	t.Setenv("LOOKUP_TIMEOUT", "3s")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, "file:test.db", cfg.Database.ConnString())
	assert.Equal(t, 3*time.Second, cfg.Lookup.Timeout)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: 3000},
			Auth:   AuthConfig{JWTSecret: "0123456789abcdef", TokenTTL: time.Hour},
			Lookup: LookupConfig{Timeout: time.Second},
			Log:    LogConfig{Format: "json"},
		}
	}
	require.NoError(t, valid().Validate())

	c := valid()
	c.Server.Port = 0
	assert.Error(t, c.Validate())

	c = valid()
	c.Auth.JWTSecret = "short"
	assert.Error(t, c.Validate())

	c = valid()
	c.Log.Format = "xml"
	assert.Error(t, c.Validate())
}

func TestDatabaseConfig_ConnString(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "inv"}
	assert.Equal(t, "host=db user=u password=p dbname=inv port=5433 sslmode=disable", c.ConnString())

	c.DSN = "postgres://u:p@db:5433/inv"
	assert.Equal(t, "postgres://u:p@db:5433/inv", c.ConnString())
}
