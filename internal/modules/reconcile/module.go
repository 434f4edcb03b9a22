package reconcile

import (
	"context"

	"go.uber.org/fx"

	"trade_desk/internal/modules/config"
	"trade_desk/internal/modules/reconcile/service"
	transport "trade_desk/internal/modules/transport/service"
)

// Module — стор состояния дашборда, push-фид и поллер.
func Module() fx.Option {
	return fx.Module("reconcile",
		fx.Provide(
			newStore,
			func(p *transport.Push, s *service.Store) *service.Feed { return service.NewFeed(p, s) },
			func(c *transport.Client, s *service.Store, cfg *config.Config) *service.Poller {
				return service.NewPoller(c, s, cfg.Poll.Interval)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, s *service.Store, f *service.Feed, p *service.Poller) {
			var cancel context.CancelFunc
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					var ctx context.Context
					ctx, cancel = context.WithCancel(context.Background())
					go func() {
						defer close(done)
						s.Run(ctx)
					}()
					f.Init()
					return p.Start()
				},
				OnStop: func(ctx context.Context) error {
					p.Stop()
					f.Stop()
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

func newStore(cfg *config.Config, sink service.AlertSink) *service.Store {
	return service.NewStore(service.Options{
		PollInterval:  cfg.Poll.Interval,
		StaleAfter:    cfg.StaleAfter(),
		EscalateAfter: cfg.Poll.EscalateAfter,
	}, sink)
}
