package transport

import (
	"context"
	"trade_desk/internal/modules/transport/service"

	"go.uber.org/fx"
)

// Module поднимает оба канала к бэкенду: pull (HTTP) и push (websocket).
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(
			service.NewClient, // *service.Client
			service.NewPush,   // *service.Push
		),
		fx.Invoke(func(lc fx.Lifecycle, p *service.Push) {
			var cancel context.CancelFunc
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					// ctx из OnStart живёт только на время старта — держим свой
					var ctx context.Context
					ctx, cancel = context.WithCancel(context.Background())
					go func() {
						defer close(done)
						p.Run(ctx)
					}()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					cancel()
					select {
					case <-done:
					case <-ctx.Done():
					}
					return nil
				},
			})
		}),
	)
}
