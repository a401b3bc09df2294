package main

import (
	"fmt"
	"os"

	"energy-trading-dashboard/internal/infrastructure/config"
	"energy-trading-dashboard/internal/infrastructure/logger"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Peer-to-peer energy trading dashboard",
	Long: `Dashboard connects a wallet to the energy marketplace contract, shows simulated
production and consumption telemetry and lets the account list and buy energy.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads the configuration file and environment
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFile(cfgFile)
	}
	return config.Load()
}

// setup loads the configuration and creates the logger
func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.NewLogger(cfg.App.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}
