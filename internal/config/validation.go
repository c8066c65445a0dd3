package config

import (
	"fmt"
	"net/url"
	"strings"
)

const maxMetadataBytes = 1024

// ValidateConfig performs validation on the complete configuration
func ValidateConfig(config *Config) error {
	if err := validateNetworkConfig(&config.Network); err != nil {
		return fmt.Errorf("network config validation failed: %w", err)
	}

	if err := validateGatewayConfig(&config.Gateway); err != nil {
		return fmt.Errorf("gateway config validation failed: %w", err)
	}

	if strings.TrimSpace(config.Server.Listen) == "" {
		return fmt.Errorf("server config validation failed: listen address is required")
	}

	if err := validateLogConfig(&config.Log); err != nil {
		return fmt.Errorf("log config validation failed: %w", err)
	}

	if config.Metadata.MaxBytes < 1 || config.Metadata.MaxBytes > maxMetadataBytes {
		return fmt.Errorf("metadata config validation failed: max_bytes must be between 1 and %d, got %d",
			maxMetadataBytes, config.Metadata.MaxBytes)
	}

	return nil
}

func validateNetworkConfig(n *NetworkConfig) error {
	switch n.Name {
	case NetworkTestnet, NetworkDevnet, NetworkMainnet, NetworkCustom:
	default:
		return fmt.Errorf("unknown network %q (valid options: testnet, devnet, mainnet, custom)", n.Name)
	}

	if n.URL == "" {
		return fmt.Errorf("url is required for network %s", n.Name)
	}
	u, err := url.Parse(n.URL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", n.URL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("url %q must use ws or wss", n.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", n.URL)
	}

	if n.FaucetURL != "" {
		f, err := url.Parse(n.FaucetURL)
		if err != nil || (f.Scheme != "http" && f.Scheme != "https") {
			return fmt.Errorf("faucet_url %q must be an http or https URL", n.FaucetURL)
		}
	}

	return nil
}

func validateGatewayConfig(g *GatewayConfig) error {
	if g.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if g.SubmitTimeout <= 0 {
		return fmt.Errorf("submit_timeout must be positive")
	}
	if g.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if g.LedgerOffset == 0 {
		return fmt.Errorf("ledger_offset must be positive")
	}
	if g.ConnectRetries < 0 {
		return fmt.Errorf("connect_retries cannot be negative")
	}
	if g.RetryBaseDelay < 0 {
		return fmt.Errorf("retry_base_delay cannot be negative")
	}
	return nil
}

func validateLogConfig(l *LogConfig) error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q (valid options: debug, info, warn, error)", l.Level)
	}
	switch l.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (valid options: text, json)", l.Format)
	}
	return nil
}
