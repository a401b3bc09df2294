package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the dashboard configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Contract  ContractConfig  `mapstructure:"contract"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	NATS      NATSConfig      `mapstructure:"nats"`
}

// AppConfig represents application-specific configuration
type AppConfig struct {
	Env             string        `mapstructure:"env"`
	LogLevel        string        `mapstructure:"log_level"`
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// WalletConfig describes the JSON-RPC wallet provider. When PrivateKey is empty,
// accounts are requested from the provider and signing is delegated to it.
type WalletConfig struct {
	ProviderURL    string        `mapstructure:"provider_url"`
	PrivateKey     string        `mapstructure:"private_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ContractConfig locates the marketplace contract
type ContractConfig struct {
	Address             string        `mapstructure:"address"`
	StartBlock          uint64        `mapstructure:"start_block"`
	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval"`
}

// TelemetryConfig controls the simulated telemetry feed. Seed 0 draws a fresh seed.
type TelemetryConfig struct {
	Seed uint64 `mapstructure:"seed"`
}

// NATSConfig represents the optional trade event publisher
type NATSConfig struct {
	URL               string        `mapstructure:"url"`
	SubjectPrefix     string        `mapstructure:"subject_prefix"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	Enabled           bool          `mapstructure:"enabled"`
}

// Load loads configuration from environment variables and files
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration from an explicit file, falling back to the
// default search paths when path is empty
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/energy-trading-dashboard")
	}

	// Environment variables, e.g. WALLET_PROVIDER_URL
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.http_port", 8080)
	v.SetDefault("app.shutdown_timeout", "30s")

	// Wallet defaults
	v.SetDefault("wallet.provider_url", "")
	v.SetDefault("wallet.private_key", "")
	v.SetDefault("wallet.request_timeout", "2m")

	// Contract defaults
	v.SetDefault("contract.address", "0xf202ad99339cacffB7bdE517392f1B8214c37e6B")
	v.SetDefault("contract.start_block", 0)
	v.SetDefault("contract.receipt_poll_interval", "1s")

	// Telemetry defaults
	v.SetDefault("telemetry.seed", 0)

	// NATS defaults
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "energy.trades")
	v.SetDefault("nats.connect_timeout", "10s")
	v.SetDefault("nats.reconnect_attempts", 5)
	v.SetDefault("nats.reconnect_delay", "2s")
	v.SetDefault("nats.enabled", false)

	v.BindEnv("nats.url", "NATS_URL")
}
