package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/xaenox/ishbor-bot/internal/logger"
	"github.com/xaenox/ishbor-bot/pkg/config"
	"go.uber.org/zap"
)

const app = "ishbor-bot"

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           app,
		Short:         "ishbor-bot is the Telegram bot of the Ishbor job marketplace",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the command line and logs a failure.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default: none, environment only)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().Bool("dry-run", false, "never call the Telegram API; keep data in memory")
}

// boundFlags maps config keys to the persistent flags overriding them.
func boundFlags(cmd *cobra.Command) map[string]*pflag.Flag {
	flags := cmd.Flags()
	return map[string]*pflag.Flag{
		"log.debug":        flags.Lookup("debug"),
		"log.json":         flags.Lookup("json"),
		"telegram.dry_run": flags.Lookup("dry-run"),
	}
}

// loadConfig reads the configuration and builds the logger it asks for.
func loadConfig(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(cfgFile, boundFlags(cmd))
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("creating a logger: %w", err)
	}
	return cfg, log, nil
}
