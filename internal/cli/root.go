package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LeJamon/goxrpl-escrow/internal/config"
	"github.com/LeJamon/goxrpl-escrow/internal/logging"
)

var (
	// Global flags
	configFile string
	envFile    string
	debug      bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "escrowd",
	Short: "escrowd - XRPL escrow and token issuance orchestrator",
	Long: `escrowd creates, finishes and cancels XRPL escrows and issues
multi-purpose tokens with structured metadata. It talks to a ledger node over
WebSocket and can serve the same operations over HTTP.`,
	Version:           "0.1.0-dev",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path (default ./escrowd.toml when present)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file with ESCROWD_ overrides (default ./.env when present)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "log errors only")
}

// loadConfig reads configuration before any subcommand runs.
func loadConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(config.LoadOptions{ConfigFile: configFile, EnvFile: envFile})
	if err != nil {
		return err
	}
	switch {
	case debug:
		cfg.Log.Level = "debug"
	case quiet:
		cfg.Log.Level = "error"
	}
	loaded = cfg
	logger = logging.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	return nil
}
