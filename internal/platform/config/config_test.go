package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, LockLocal, cfg.LockBackend)
	assert.Equal(t, 2*time.Second, cfg.TransferLockTimeout)
	assert.Equal(t, 5, cfg.TransferMaxAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.TransferRetryBaseDelay)
	assert.Equal(t, 10000, cfg.IdempotencyCacheSize)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.AdminSubjects)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("STORE_BACKEND", "POSTGRES")
	t.Setenv("PGSQL_URL", "postgres://ledger@localhost/ledger")
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("TRANSFER_LOCK_TIMEOUT", "750ms")
	t.Setenv("TRANSFER_MAX_ATTEMPTS", "0")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ADMIN_SUBJECTS", "ops-1,ops-2")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.StoreBackend)
	assert.Equal(t, LockRedis, cfg.LockBackend)
	assert.Equal(t, 750*time.Millisecond, cfg.TransferLockTimeout)
	assert.Equal(t, 1, cfg.TransferMaxAttempts)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, []string{"ops-1", "ops-2"}, cfg.AdminSubjects)
}

func TestLoadConfig_Rejects(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without url": {"STORE_BACKEND": "postgres", "PGSQL_URL": ""},
		"unknown store":        {"STORE_BACKEND": "mongo"},
		"unknown lock":         {"LOCK_BACKEND": "zookeeper"},
		"bad duration":         {"TRANSFER_LOCK_TIMEOUT": "soon"},
		"insecure production":  {"IS_PRODUCTION": "true", "JWT_SECRET": ""},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
