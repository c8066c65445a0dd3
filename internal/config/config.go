package config

import (
	"time"
)

// Config represents the complete escrowd configuration.
type Config struct {
	// Ledger network and endpoint
	Network NetworkConfig `toml:"network" mapstructure:"network"`

	// Default signer for commands that omit a seed
	Operator OperatorConfig `toml:"operator" mapstructure:"operator"`

	// Gateway request and submission tuning
	Gateway GatewayConfig `toml:"gateway" mapstructure:"gateway"`

	// HTTP surface
	Server ServerConfig `toml:"server" mapstructure:"server"`

	// Submission journal
	Journal JournalConfig `toml:"journal" mapstructure:"journal"`

	// Logging
	Log LogConfig `toml:"log" mapstructure:"log"`

	// Token metadata limits
	Metadata MetadataConfig `toml:"metadata" mapstructure:"metadata"`

	// Internal fields for configuration management
	configPath string `toml:"-" mapstructure:"-"`
}

// NetworkConfig represents the [network] section.
type NetworkConfig struct {
	Name      string `toml:"name" mapstructure:"name"`             // testnet, devnet, mainnet or custom
	URL       string `toml:"url" mapstructure:"url"`               // ws:// or wss:// endpoint
	FaucetURL string `toml:"faucet_url" mapstructure:"faucet_url"` // empty on networks without a faucet
}

// OperatorConfig represents the [operator] section.
type OperatorConfig struct {
	AdminSeed string `toml:"admin_seed" mapstructure:"admin_seed"`
	// Check fulfillments against the escrow condition before submitting
	VerifyFulfillment bool `toml:"verify_fulfillment" mapstructure:"verify_fulfillment"`
}

// GatewayConfig represents the [gateway] section.
type GatewayConfig struct {
	RequestTimeout time.Duration `toml:"request_timeout" mapstructure:"request_timeout"`
	SubmitTimeout  time.Duration `toml:"submit_timeout" mapstructure:"submit_timeout"`
	PollInterval   time.Duration `toml:"poll_interval" mapstructure:"poll_interval"`
	LedgerOffset   uint32        `toml:"ledger_offset" mapstructure:"ledger_offset"` // LastLedgerSequence headroom
	ConnectRetries int           `toml:"connect_retries" mapstructure:"connect_retries"`
	RetryBaseDelay time.Duration `toml:"retry_base_delay" mapstructure:"retry_base_delay"`
}

// ServerConfig represents the [server] section.
type ServerConfig struct {
	Listen string `toml:"listen" mapstructure:"listen"`
}

// JournalConfig represents the [journal] section. An empty path disables
// the journal.
type JournalConfig struct {
	Path string `toml:"path" mapstructure:"path"`
}

// LogConfig represents the [log] section.
type LogConfig struct {
	Level  string `toml:"level" mapstructure:"level"`
	Format string `toml:"format" mapstructure:"format"`
	File   string `toml:"file" mapstructure:"file"` // rotated; empty logs to stderr
}

// MetadataConfig represents the [metadata] section.
type MetadataConfig struct {
	MaxBytes int `toml:"max_bytes" mapstructure:"max_bytes"`
}

// GetConfigPath returns the file the configuration was read from, if any.
func (c *Config) GetConfigPath() string {
	return c.configPath
}

// HasFaucet reports whether the network can fund accounts.
func (c *Config) HasFaucet() bool {
	return c.Network.FaucetURL != ""
}

// JournalEnabled reports whether submissions are journaled.
func (c *Config) JournalEnabled() bool {
	return c.Journal.Path != ""
}
