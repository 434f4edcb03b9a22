package journal

import (
	"context"
	"time"

	"go.uber.org/fx"

	"trade_desk/internal/modules/journal/service"
	reconcile "trade_desk/internal/modules/reconcile/service"
	"trade_desk/pkg/db"
)

const dbInitTimeout = 10 * time.Second

// Module — журнал переходов состояния. Без БД пишет в noop.
func Module() fx.Option {
	return fx.Module("journal",
		fx.Provide(
			NewRecorder,
			service.NewWriter,
		),
		fx.Invoke(func(lc fx.Lifecycle, w *service.Writer, store *reconcile.Store) {
			var (
				cancel  context.CancelFunc
				dispose func()
			)
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					var ctx context.Context
					ctx, cancel = context.WithCancel(context.Background())
					go w.Run(ctx)
					dispose = store.Subscribe(w.Observe)
					return nil
				},
				OnStop: func(ctx context.Context) error {
					dispose()
					cancel()
					select {
					case <-w.Done():
					case <-ctx.Done():
					}
					return nil
				},
			})
		}),
	)
}

func NewRecorder(m *db.PgTxManager) (service.Recorder, error) {
	if m == nil {
		return service.Noop{}, nil
	}
	pg := service.NewPostgres(m)
	ctx, cancel := context.WithTimeout(context.Background(), dbInitTimeout)
	defer cancel()
	if err := pg.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return pg, nil
}
