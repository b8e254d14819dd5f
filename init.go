package main

import (
	"context"

	"github.com/tournevent/easyparcel/internal/config"
	"github.com/tournevent/easyparcel/internal/telemetry"
	"github.com/tournevent/easyparcel/pkg/easyparcel"
	"github.com/tournevent/easyparcel/pkg/easyparcel/mock"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
)

// globalOpts holds the persistent CLI flags.
var globalOpts struct {
	sandbox    bool
	production bool
	mock       bool
	output     string
}

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level, output string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level, output)
}

func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return nil, func(context.Context) error { return nil }, nil
	}

	return telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version, cfg.Attributes()...)
}

func initGateway(cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer, metrics easyparcel.Recorder) (*easyparcel.Client, error) {
	gwCfg := easyparcel.Config{
		BaseURL:  cfg.BaseURL,
		Timeout:  cfg.Timeout,
		Provider: cfg,
		Metrics:  metrics,
	}

	if cfg.UseMock || globalOpts.mock {
		gwCfg.HTTPClient = mock.NewTransport()
		if cfg.APIKey == "" {
			gwCfg.APIKey = "mock-api-key"
		}
	}

	gateway, err := easyparcel.New(gwCfg, logger, tracer)
	if err != nil {
		return nil, err
	}

	switch {
	case globalOpts.sandbox:
		gateway.UseSandbox()
	case globalOpts.production:
		gateway.UseProduction()
	}
	return gateway, nil
}
