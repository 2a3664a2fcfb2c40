package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Invoice.DefaultDueDays)
	assert.Equal(t, "INV", cfg.Invoice.NumberPrefix)
	assert.Equal(t, "USD", cfg.Invoice.Currency)
	assert.True(t, cfg.Invoice.DefaultTaxRate.IsZero())
	assert.Equal(t, int64(1), cfg.User.ID)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
invoice:
  default_due_days: 14
  default_tax_rate: 8.25
  number_prefix: ACME
user:
  id: 7
  name: Ada
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 14, cfg.Invoice.DefaultDueDays)
	assert.Equal(t, "8.25", cfg.Invoice.DefaultTaxRate.String())
	assert.Equal(t, "ACME", cfg.Invoice.NumberPrefix)
	assert.Equal(t, "USD", cfg.Invoice.Currency)
	assert.Equal(t, int64(7), cfg.User.ID)
	assert.Equal(t, "Ada", cfg.User.Name)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvDBPath, "/tmp/other.db")
	t.Setenv(EnvUserID, "42")
	t.Setenv(EnvLogLevel, "error")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, int64(42), cfg.User.ID)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoad_InvalidUserID(t *testing.T) {
	t.Setenv(EnvUserID, "abc")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("invoice:\n  currency: EURO\n"), 0600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "3-letter")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TALLY_TEST_DOTENV=from-file\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("TALLY_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("TALLY_TEST_DOTENV"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env")))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.User.Name = "Grace"
	cfg.Invoice.NumberPrefix = "GH"

	require.NoError(t, cfg.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Grace", loaded.User.Name)
	assert.Equal(t, "GH", loaded.Invoice.NumberPrefix)
}
