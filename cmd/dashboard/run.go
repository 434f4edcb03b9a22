package main

import (
	"fmt"

	"github.com/opentracing/opentracing-go"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"trade_desk/internal/modules/commands"
	"trade_desk/internal/modules/config"
	"trade_desk/internal/modules/httpapi"
	"trade_desk/internal/modules/journal"
	"trade_desk/internal/modules/notify"
	"trade_desk/internal/modules/postgres"
	"trade_desk/internal/modules/reconcile"
	"trade_desk/internal/modules/transport"
	"trade_desk/pkg/logger"
	"trade_desk/pkg/tracing"
)

const serviceName = "trade-desk-dashboard"

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start push/poll sync and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger.SetServiceName(serviceName)
			if err := logger.Init(cfg.LogLevel); err != nil {
				return err
			}
			defer logger.Sync()

			tracing.SetServiceName(serviceName)
			tracer, closeTracer, err := tracing.InitTracer(tracing.Config{Host: cfg.Jaeger.Host, Port: cfg.Jaeger.Port})
			if err != nil {
				return fmt.Errorf("init tracer: %w", err)
			}
			defer closeTracer()
			opentracing.SetGlobalTracer(tracer)

			app := fx.New(
				fx.WithLogger(func() fxevent.Logger {
					return &fxevent.ZapLogger{Logger: logger.InfoLogger}
				}),
				config.Module(cfg),
				transport.Module(),
				commands.Module(),
				notify.Module(),
				postgres.Module(),
				journal.Module(),
				httpapi.Module(),
				// последним: подписчики стора уже на месте, когда пойдут первые снапшоты
				reconcile.Module(),
			)
			app.Run()
			return app.Err()
		},
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.NewConfig()
}
