package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/callwire/callwire-server/internal/app"
	"github.com/callwire/callwire-server/internal/config"
	"github.com/callwire/callwire-server/internal/log"
)

var version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "callwire-server",
		Short: "Call signaling server",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	rootCmd.AddCommand(serveCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(configPath string) error {
	bootLogger := log.New("info")

	cfg, resolvedPath, err := config.Load(bootLogger, configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := log.New(cfg.LogLevel)
	logger.Info().Str("config", resolvedPath).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Str("version", version).Msg("starting callwire server")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
