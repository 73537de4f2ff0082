// Package cli holds the facecam commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"facecam/internal/config"
	"facecam/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:   "facecam",
	Short: "Camera viewer with real-time face recognition",
	Long: `facecam reads frames from a camera, finds faces, matches them against
a directory of reference pictures and shows the annotated view in a browser
or a desktop window.

Configuration comes from the environment; a .env file in the working
directory is loaded first when present.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

func initConfig() {
	// .env is optional
	_ = godotenv.Load()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openLogger returns the file-backed logger used by long-running commands.
func openLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(cfg.LogDirectory, debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}
