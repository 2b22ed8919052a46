package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/trustcore/internal/config"
	"github.com/dropDatabas3/trustcore/internal/tenantconfig"
)

func TestReadConfigFile_YAMLToJSON(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "pin.yaml")
	require.NoError(t, os.WriteFile(p, []byte("attempts_allowed: 3\nattempts_window_seconds: 60\nblock_interval_seconds: 300\n"), 0o600))

	raw, err := readConfigFile(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"attempts_allowed":3,"attempts_window_seconds":60,"block_interval_seconds":300}`, string(raw))
	assert.NoError(t, tenantconfig.Validate(tenantconfig.KeyPasswordPinBlock, raw))
}

func TestReadConfigFile_InvalidJSON(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bio.json")
	require.NoError(t, os.WriteFile(p, []byte(`{nope`), 0o600))

	_, err := readConfigFile(p)
	assert.Error(t, err)
}

func TestAdminInvalidate(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotKey = r.URL.Path, r.Header.Get("X-Admin-API-Key")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cmd := adminCmd()
	cmd.SetArgs([]string{"invalidate", "--admin-api-url", srv.URL, "--admin-api-key", "k", "--tenant", "acme", "--feature", "biometric"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "/v1/admin/t/acme/features/biometric/invalidate", gotPath)
	assert.Equal(t, "k", gotKey)
}

func TestAdminRevoke_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cmd := adminCmd()
	cmd.SetArgs([]string{"revoke", "--admin-api-url", srv.URL, "--admin-api-key", "k", "--tenant", "acme", "--credential", "c1"})
	cmd.SilenceUsage, cmd.SilenceErrors = true, true
	assert.Error(t, cmd.Execute())
}

func TestAdmin_RequiresKey(t *testing.T) {
	t.Setenv("TRUSTCORE_ADMIN_KEY", "")
	cmd := adminCmd()
	cmd.SetArgs([]string{"revoke", "--tenant", "acme", "--credential", "c1"})
	cmd.SilenceUsage, cmd.SilenceErrors = true, true
	assert.Error(t, cmd.Execute())
}

func TestPutFeature_FS(t *testing.T) {
	root := t.TempDir()
	cfg := &config.Config{}
	cfg.Features.Source = "fs"
	cfg.Features.FSRoot = root

	raw := []byte(`{"allowed_platforms":["ios"]}`)
	require.NoError(t, putFeature(context.Background(), cfg, "acme", tenantconfig.KeyBiometric, raw))

	b, err := os.ReadFile(filepath.Join(root, "acme.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "allowed_platforms")

	cfg.Features.Source = "memory"
	assert.Error(t, putFeature(context.Background(), cfg, "acme", tenantconfig.KeyBiometric, raw))
}
