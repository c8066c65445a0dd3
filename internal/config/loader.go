package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "ESCROWD"

	// DefaultConfigFile is read from the working directory when no file is named.
	DefaultConfigFile = "escrowd.toml"

	// DefaultEnvFile is read from the working directory when no file is named.
	DefaultEnvFile = ".env"
)

// LoadOptions names the files LoadConfig reads. Empty fields fall back to
// the defaults in the working directory, which may be absent.
type LoadOptions struct {
	ConfigFile string
	EnvFile    string
}

// LoadConfig loads configuration from multiple sources in priority order:
// 1. Default values
// 2. Configuration file (escrowd.toml, yaml or json)
// 3. .env file
// 4. Environment variables (ESCROWD_ prefix)
// Network presets fill the endpoint fields last that no source set.
func LoadConfig(opts LoadOptions) (*Config, error) {
	v := viper.New()

	// 1. Set defaults first
	setDefaults(v)

	// 2. Load configuration file
	path, err := loadMainConfig(v, opts.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. Load .env without overriding the real environment
	if err := loadEnvFile(v, opts.EnvFile); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	// 4. Set up environment variable support
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Apply network-specific defaults once the network is known
	ApplyNetworkDefaults(v, v.GetString("network.name"))

	// 5. Unmarshal into struct
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.configPath = path

	// 6. Validate the complete configuration
	if err := ValidateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// loadMainConfig reads the named file, or the default file when it exists.
// It returns the path that was read.
func loadMainConfig(v *viper.Viper, configPath string) (string, error) {
	explicit := configPath != ""
	if !explicit {
		configPath = DefaultConfigFile
	}

	if _, err := os.Stat(configPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return "", nil
		}
		return "", fmt.Errorf("config file does not exist: %s", configPath)
	}

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	return configPath, nil
}

// loadEnvFile applies ESCROWD_ assignments from a dotenv file. Variables
// already present in the process environment win.
func loadEnvFile(v *viper.Viper, envPath string) error {
	explicit := envPath != ""
	if !explicit {
		envPath = DefaultEnvFile
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", envPath, err)
	}

	keys := make(map[string]string)
	for _, key := range v.AllKeys() {
		keys[envName(key)] = key
	}
	for name, value := range values {
		key, ok := keys[name]
		if !ok {
			continue
		}
		if _, set := os.LookupEnv(name); set {
			continue
		}
		v.Set(key, value)
	}
	return nil
}

// envName maps a config key such as gateway.submit_timeout to its
// environment variable ESCROWD_GATEWAY_SUBMIT_TIMEOUT.
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
