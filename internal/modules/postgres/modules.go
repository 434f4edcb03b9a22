package postgres

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"trade_desk/internal/modules/config"
	"trade_desk/pkg/db"
	"trade_desk/pkg/logger"
)

const (
	maxConns = 4
	appName  = "trade-desk-dashboard"
)

// Module даёт *db.PgTxManager. Пустой db_dsn — менеджера нет (nil), журнал уходит в noop.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(NewTxManager),
	)
}

func NewTxManager(lc fx.Lifecycle, cfg *config.Config) (*db.PgTxManager, error) {
	if cfg.DB == "" {
		logger.Info("db_dsn is empty, journal disabled")
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Poll.Timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, db.PoolConfig{DSN: cfg.DB, MaxConns: maxConns, AppName: appName})
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	m := db.NewPgTxManager(pool)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			m.Close()
			return nil
		},
	})
	return m, nil
}
