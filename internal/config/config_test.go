package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.Backend)
	assert.Equal(t, "/api/auth", cfg.Auth.BasePath)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 30*24*time.Hour, cfg.Session.MaxAge)
	assert.Equal(t, 24*time.Hour, cfg.Session.UpdateAge)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 500, cfg.Cache.MaxSize)
	assert.Equal(t, "authstore", cfg.Mongo.Database)
	assert.Equal(t, time.Hour, cfg.Sweep.Interval)
	assert.Empty(t, cfg.Telemetry.Endpoint)
}

func TestNewConfig_Overrides(t *testing.T) {
	t.Setenv("AUTH_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("BACKEND", "mongo")
	t.Setenv("SESSION_MAX_AGE", "2h")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("REDIS_KEY_PREFIX", "app:")
	t.Setenv("REDIS_EXPIRE_WITH_TTL", "true")
	t.Setenv("MONGO_TTL_INDEXES", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, BackendMongo, cfg.Backend)
	assert.Equal(t, 2*time.Hour, cfg.Session.MaxAge)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "app:", cfg.Redis.KeyPrefix)
	assert.True(t, cfg.Redis.ExpireWithTTL)
	assert.True(t, cfg.Mongo.TTLIndexes)
	assert.Equal(t, "http://localhost:4318", cfg.Telemetry.Endpoint)
}

func TestNewConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "secret is required", env: map[string]string{"AUTH_SECRET": ""}},
		{name: "unknown backend", env: map[string]string{"AUTH_SECRET": "s", "BACKEND": "sqlite"}},
		{name: "bad duration", env: map[string]string{"AUTH_SECRET": "s", "SESSION_MAX_AGE": "soon"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			for k, v := range test.env {
				t.Setenv(k, v)
			}
			_, err := NewConfig()
			assert.Error(t, err)
		})
	}
}
