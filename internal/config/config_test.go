package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/trustcore/internal/security/secretbox"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "memory", c.Storage.Driver)
	assert.Equal(t, "memory", c.Features.Source)
	assert.Equal(t, "memory", c.Challenge.Backend)
	assert.Equal(t, "gocache", c.Features.Cache.Driver)
	assert.Equal(t, 5*time.Minute, c.FeatureCacheTTL())
	assert.Equal(t, 2*time.Second, c.StorageTimeout())
	assert.Equal(t, "log", c.Audit.Sink)
	assert.False(t, c.Rate.Enabled)
	assert.Equal(t, "memory", c.Rate.Backend)
	assert.Equal(t, time.Minute, c.RateWindow())
}

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	p := writeYAML(t, `
app:
  app_env: staging
storage:
  driver: postgres
  dsn: postgres://u:p@localhost/db
  timeout: 750ms
features:
  source: fs
  fs_root: tenants
  cache:
    driver: ristretto
limiter:
  backend: redis
redis:
  addr: localhost:6379
`)
	t.Setenv("STORAGE_TIMEOUT", "3s")
	t.Setenv("FEATURES_CACHE_TTL", "30s")

	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "staging", c.App.Env)
	assert.Equal(t, 3*time.Second, c.StorageTimeout())
	assert.Equal(t, 30*time.Second, c.FeatureCacheTTL())
	assert.Equal(t, "ristretto", c.Features.Cache.Driver)
	assert.Equal(t, "redis", c.Limiter.Backend)
	assert.Equal(t, "postgres", c.Challenge.Backend)
	assert.Equal(t, filepath.Join(filepath.Dir(p), "tenants"), c.Features.FSRoot)
}

func TestLoad_InvalidEnvDurationIgnored(t *testing.T) {
	t.Setenv("STORAGE_TIMEOUT", "nope")
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, c.StorageTimeout())
}

func TestValidate_Errors(t *testing.T) {
	cases := map[string]string{
		"bad driver":         "storage:\n  driver: mongo\n",
		"pg without dsn":     "storage:\n  driver: postgres\n",
		"redis without addr": "challenge:\n  backend: redis\n",
		"amqp without url":   "audit:\n  sink: amqp\n",
		"bad duration":       "storage:\n  timeout: soon\n",
		"memory in prod":     "app:\n  app_env: prod\n",
		"rate redis no addr": "rate:\n  enabled: true\n  backend: redis\n",
		"rate zero requests": "rate:\n  enabled: true\n  requests: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeYAML(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoad_SealedSecrets(t *testing.T) {
	t.Setenv(secretbox.EnvMasterKey, "0123456789abcdef0123456789abcdef")
	b, err := secretbox.FromEnv()
	require.NoError(t, err)
	sealed, err := b.Seal("super-admin-key")
	require.NoError(t, err)

	t.Setenv("ADMIN_API_KEY", secretbox.Prefix+sealed)
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "super-admin-key", c.Server.AdminAPIKey)

	t.Setenv("ADMIN_API_KEY", secretbox.Prefix+"garbage")
	_, err = Load("")
	assert.Error(t, err)
}
