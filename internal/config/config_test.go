package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// noFiles points both sources at explicit empty files so tests never pick
// up escrowd.toml or .env from the working directory.
func noFiles(t *testing.T) LoadOptions {
	dir := t.TempDir()
	return LoadOptions{
		ConfigFile: writeFile(t, dir, "escrowd.toml", ""),
		EnvFile:    writeFile(t, dir, "empty.env", ""),
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig(noFiles(t))
	require.NoError(t, err)

	assert.Equal(t, NetworkTestnet, config.Network.Name)
	assert.Equal(t, "wss://s.altnet.rippletest.net:51233", config.Network.URL)
	assert.True(t, config.HasFaucet())
	assert.Equal(t, 15*time.Second, config.Gateway.RequestTimeout)
	assert.Equal(t, 90*time.Second, config.Gateway.SubmitTimeout)
	assert.Equal(t, time.Second, config.Gateway.PollInterval)
	assert.Equal(t, uint32(20), config.Gateway.LedgerOffset)
	assert.Equal(t, 3, config.Gateway.ConnectRetries)
	assert.Equal(t, "127.0.0.1:8080", config.Server.Listen)
	assert.False(t, config.JournalEnabled())
	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, "text", config.Log.Format)
	assert.Equal(t, 1024, config.Metadata.MaxBytes)
	assert.Empty(t, config.Operator.AdminSeed)
	assert.False(t, config.Operator.VerifyFulfillment)
}

func TestLoadConfigFromFile(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "escrowd_config_test")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	path := writeFile(t, tempDir, "escrowd.toml", `
[network]
name = "custom"
url = "ws://127.0.0.1:6006"

[gateway]
submit_timeout = "45s"
poll_interval = "250ms"
ledger_offset = 10

[journal]
path = "/var/lib/escrowd/journal"

[log]
level = "debug"
format = "json"
`)

	config, err := LoadConfig(LoadOptions{ConfigFile: path, EnvFile: writeFile(t, tempDir, "empty.env", "")})
	require.NoError(t, err)

	assert.Equal(t, path, config.GetConfigPath())
	assert.Equal(t, NetworkCustom, config.Network.Name)
	assert.Equal(t, "ws://127.0.0.1:6006", config.Network.URL)
	assert.False(t, config.HasFaucet())
	assert.Equal(t, 45*time.Second, config.Gateway.SubmitTimeout)
	assert.Equal(t, 250*time.Millisecond, config.Gateway.PollInterval)
	assert.Equal(t, uint32(10), config.Gateway.LedgerOffset)
	assert.True(t, config.JournalEnabled())
	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, "json", config.Log.Format)
}

func TestNetworkPresets(t *testing.T) {
	tests := []struct {
		network string
		url     string
		faucet  string
	}{
		{NetworkTestnet, "wss://s.altnet.rippletest.net:51233", "https://faucet.altnet.rippletest.net/accounts"},
		{NetworkDevnet, "wss://s.devnet.rippletest.net:51233", "https://faucet.devnet.rippletest.net/accounts"},
		{NetworkMainnet, "wss://xrplcluster.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.network, func(t *testing.T) {
			t.Setenv("ESCROWD_NETWORK_NAME", tt.network)
			config, err := LoadConfig(noFiles(t))
			require.NoError(t, err)
			assert.Equal(t, tt.url, config.Network.URL)
			assert.Equal(t, tt.faucet, config.Network.FaucetURL)
		})
	}
}

func TestPresetDoesNotOverrideExplicitURL(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "escrowd.toml", `
[network]
name = "devnet"
url = "wss://devnet.example.org"
`)
	config, err := LoadConfig(LoadOptions{ConfigFile: path, EnvFile: writeFile(t, dir, "empty.env", "")})
	require.NoError(t, err)
	assert.Equal(t, "wss://devnet.example.org", config.Network.URL)
	assert.Equal(t, "https://faucet.devnet.rippletest.net/accounts", config.Network.FaucetURL)
}

func TestEnvironmentOverrides(t *testing.T) {
	opts := noFiles(t)
	t.Setenv("ESCROWD_GATEWAY_SUBMIT_TIMEOUT", "2m")
	t.Setenv("ESCROWD_OPERATOR_ADMIN_SEED", "sEdTestSeed")
	t.Setenv("ESCROWD_SERVER_LISTEN", ":9090")
	t.Setenv("ESCROWD_OPERATOR_VERIFY_FULFILLMENT", "true")

	config, err := LoadConfig(opts)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, config.Gateway.SubmitTimeout)
	assert.Equal(t, "sEdTestSeed", config.Operator.AdminSeed)
	assert.Equal(t, ":9090", config.Server.Listen)
	assert.True(t, config.Operator.VerifyFulfillment)
}

func TestEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := writeFile(t, dir, "test.env", `
ESCROWD_GATEWAY_LEDGER_OFFSET=7
ESCROWD_LOG_LEVEL=debug
ESCROWD_JOURNAL_PATH=/tmp/journal
UNRELATED_SETTING=ignored
`)
	t.Setenv("ESCROWD_LOG_LEVEL", "warn")

	config, err := LoadConfig(LoadOptions{ConfigFile: writeFile(t, dir, "escrowd.toml", ""), EnvFile: envPath})
	require.NoError(t, err)
	assert.Equal(t, uint32(7), config.Gateway.LedgerOffset)
	assert.Equal(t, "/tmp/journal", config.Journal.Path)
	assert.Equal(t, "warn", config.Log.Level, "process environment wins over the env file")
}

func TestLoadConfigMissingFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(LoadOptions{ConfigFile: filepath.Join(dir, "missing.toml")})
	assert.Error(t, err)

	_, err = LoadConfig(LoadOptions{
		ConfigFile: writeFile(t, dir, "escrowd.toml", ""),
		EnvFile:    filepath.Join(dir, "missing.env"),
	})
	assert.Error(t, err)
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "ESCROWD_GATEWAY_SUBMIT_TIMEOUT", envName("gateway.submit_timeout"))
	assert.Equal(t, "ESCROWD_NETWORK_URL", envName("network.url"))
}

func validConfig() *Config {
	return &Config{
		Network: NetworkConfig{Name: NetworkTestnet, URL: "wss://s.altnet.rippletest.net:51233"},
		Gateway: GatewayConfig{
			RequestTimeout: time.Second,
			SubmitTimeout:  time.Minute,
			PollInterval:   time.Second,
			LedgerOffset:   20,
		},
		Server:   ServerConfig{Listen: ":8080"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Metadata: MetadataConfig{MaxBytes: 1024},
	}
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, ValidateConfig(validConfig()))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown network", func(c *Config) { c.Network.Name = "betanet" }},
		{"custom without url", func(c *Config) { c.Network.Name = NetworkCustom; c.Network.URL = "" }},
		{"http url", func(c *Config) { c.Network.URL = "https://s.altnet.rippletest.net" }},
		{"url without host", func(c *Config) { c.Network.URL = "wss://" }},
		{"bad faucet", func(c *Config) { c.Network.FaucetURL = "ftp://faucet" }},
		{"zero request timeout", func(c *Config) { c.Gateway.RequestTimeout = 0 }},
		{"negative submit timeout", func(c *Config) { c.Gateway.SubmitTimeout = -time.Second }},
		{"zero poll interval", func(c *Config) { c.Gateway.PollInterval = 0 }},
		{"zero ledger offset", func(c *Config) { c.Gateway.LedgerOffset = 0 }},
		{"negative retries", func(c *Config) { c.Gateway.ConnectRetries = -1 }},
		{"empty listen", func(c *Config) { c.Server.Listen = " " }},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"metadata too large", func(c *Config) { c.Metadata.MaxBytes = 2048 }},
		{"metadata zero", func(c *Config) { c.Metadata.MaxBytes = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			assert.Error(t, ValidateConfig(c))
		})
	}
}
