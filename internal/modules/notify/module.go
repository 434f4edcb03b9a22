package notify

import (
	"context"

	"go.uber.org/fx"

	commands "trade_desk/internal/modules/commands/service"
	"trade_desk/internal/modules/config"
	"trade_desk/internal/modules/notify/service"
	reconcile "trade_desk/internal/modules/reconcile/service"
	"trade_desk/pkg/logger"
)

// Module — канал алертов оператору: telegram, если задан токен и чат, иначе лог.
func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(
			NewNotifier,
			func(n service.Notifier) reconcile.AlertSink { return n },
		),
		fx.Invoke(func(lc fx.Lifecycle, n service.Notifier, store *reconcile.Store, cmd *commands.Commands) {
			tg, ok := n.(*service.Telegram)
			if !ok {
				return
			}
			tg.Bind(store, cmd)
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					tg.Start(context.Background())
					return nil
				},
				OnStop: func(context.Context) error {
					tg.Stop()
					return nil
				},
			})
		}),
	)
}

func NewNotifier(cfg *config.Config) (service.Notifier, error) {
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		logger.Info("telegram is not configured, alerts go to log")
		return service.NewStdout(), nil
	}
	return service.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
}
