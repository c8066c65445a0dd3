package config

import (
	"time"

	"github.com/spf13/viper"
)

// Network names.
const (
	NetworkTestnet = "testnet"
	NetworkDevnet  = "devnet"
	NetworkMainnet = "mainnet"
	NetworkCustom  = "custom"
)

// setDefaults sets all default values
func setDefaults(v *viper.Viper) {
	v.SetDefault("network.name", NetworkTestnet)
	v.SetDefault("network.url", "")
	v.SetDefault("network.faucet_url", "")

	v.SetDefault("operator.admin_seed", "")
	v.SetDefault("operator.verify_fulfillment", false)

	v.SetDefault("gateway.request_timeout", 15*time.Second)
	v.SetDefault("gateway.submit_timeout", 90*time.Second)
	v.SetDefault("gateway.poll_interval", time.Second)
	v.SetDefault("gateway.ledger_offset", 20)
	v.SetDefault("gateway.connect_retries", 3)
	v.SetDefault("gateway.retry_base_delay", 500*time.Millisecond)

	v.SetDefault("server.listen", "127.0.0.1:8080")

	v.SetDefault("journal.path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	v.SetDefault("metadata.max_bytes", 1024)
}

// GetDefaultNetworkConfig returns the endpoint presets of a named network.
// Custom and unknown networks have none.
func GetDefaultNetworkConfig(name string) map[string]interface{} {
	defaults := make(map[string]interface{})

	switch name {
	case NetworkTestnet:
		defaults["network.url"] = "wss://s.altnet.rippletest.net:51233"
		defaults["network.faucet_url"] = "https://faucet.altnet.rippletest.net/accounts"

	case NetworkDevnet:
		defaults["network.url"] = "wss://s.devnet.rippletest.net:51233"
		defaults["network.faucet_url"] = "https://faucet.devnet.rippletest.net/accounts"

	case NetworkMainnet:
		// No faucet on mainnet
		defaults["network.url"] = "wss://xrplcluster.com"
	}

	return defaults
}

// ApplyNetworkDefaults applies network-specific defaults to the viper instance
func ApplyNetworkDefaults(v *viper.Viper, name string) {
	networkDefaults := GetDefaultNetworkConfig(name)
	for key, value := range networkDefaults {
		v.SetDefault(key, value)
	}
}
