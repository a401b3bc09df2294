package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, 8080, cfg.App.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.App.ShutdownTimeout)
	assert.Equal(t, "", cfg.Wallet.ProviderURL)
	assert.Equal(t, 2*time.Minute, cfg.Wallet.RequestTimeout)
	assert.Equal(t, "0xf202ad99339cacffB7bdE517392f1B8214c37e6B", cfg.Contract.Address)
	assert.Equal(t, time.Second, cfg.Contract.ReceiptPollInterval)
	assert.False(t, cfg.NATS.Enabled)
	assert.Equal(t, "energy.trades", cfg.NATS.SubjectPrefix)
}

func TestLoadFile_FromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dashboard.yaml")
	content := `
app:
  log_level: debug
  http_port: 9000
wallet:
  provider_url: http://127.0.0.1:8545
contract:
  address: "0x0000000000000000000000000000000000000042"
  start_block: 120
  receipt_poll_interval: 250ms
nats:
  enabled: true
  subject_prefix: market
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, 9000, cfg.App.HTTPPort)
	assert.Equal(t, "http://127.0.0.1:8545", cfg.Wallet.ProviderURL)
	assert.Equal(t, "0x0000000000000000000000000000000000000042", cfg.Contract.Address)
	assert.Equal(t, uint64(120), cfg.Contract.StartBlock)
	assert.Equal(t, 250*time.Millisecond, cfg.Contract.ReceiptPollInterval)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "market", cfg.NATS.SubjectPrefix)
}

func TestLoadFile_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WALLET_PROVIDER_URL", "http://wallet.local:8550")
	t.Setenv("APP_HTTP_PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://wallet.local:8550", cfg.Wallet.ProviderURL)
	assert.Equal(t, 7070, cfg.App.HTTPPort)
}

func TestLoadFile_MissingExplicitFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
