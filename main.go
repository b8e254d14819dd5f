package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/tournevent/easyparcel/internal/server"
	"github.com/tournevent/easyparcel/internal/telemetry"
	"go.uber.org/zap"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "easyparcel",
	Short:        "EasyParcel API client and HTTP bridge",
	Version:      version,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP bridge server",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&globalOpts.sandbox, "sandbox", false, "use the sandbox environment")
	rootCmd.PersistentFlags().BoolVar(&globalOpts.production, "production", false, "use the production environment")
	rootCmd.PersistentFlags().BoolVar(&globalOpts.mock, "mock", false, "answer calls from the in-memory mock transport")
	rootCmd.PersistentFlags().StringVarP(&globalOpts.output, "output", "o", "json", "output format: json or yaml")
	rootCmd.MarkFlagsMutuallyExclusive("sandbox", "production")

	rootCmd.AddCommand(serveCmd)
	addClientCommands(rootCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Initialize telemetry
	logger, err := initLogger(cfg.LogLevel, "stdout")
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracer, tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(ctx)
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	gateway, err := initGateway(cfg, logger, tracer, metrics)
	if err != nil {
		return err
	}

	logger.Info("Starting EasyParcel bridge",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
		zap.String("base_url", gateway.BaseURL()),
	)

	srv := server.New(server.Config{Port: cfg.Port}, gateway, logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
