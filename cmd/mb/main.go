package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/managebug/managebug/internal/config"
)

var (
	configPath string
	dbPath     string

	cfg *config.Config

	// Signal-aware context for graceful shutdown.
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:           "mb",
	Short:         "managebug - bug tracking with role-based workflow control",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real environments set variables directly.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.DBPath = dbPath
		}
		return nil
	},
}

func main() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer rootCancel()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.ExecuteContext(rootCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
