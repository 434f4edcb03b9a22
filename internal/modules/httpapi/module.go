package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	commands "trade_desk/internal/modules/commands/service"
	"trade_desk/internal/modules/config"
	"trade_desk/internal/modules/httpapi/service"
	journal "trade_desk/internal/modules/journal/service"
	reconcile "trade_desk/internal/modules/reconcile/service"
	"trade_desk/pkg/logger"
)

// Module — HTTP: пробы и read-only API дашборда плюс команды оператора.
func Module() fx.Option {
	return fx.Module("httpapi",
		fx.Provide(
			service.NewState,
			func(s *reconcile.Store, cmd *commands.Commands, rec journal.Recorder, st *service.State) *service.Handler {
				return service.NewHandler(s, cmd, rec, st)
			},
			service.NewEcho,
		),
		fx.Invoke(RunHTTP),
	)
}

func RunHTTP(lc fx.Lifecycle, cfg *config.Config, e *echo.Echo, st *service.State, store *reconcile.Store) {
	var dispose func()
	e.Server.ReadHeaderTimeout = 5 * time.Second

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			dispose = store.Subscribe(st.Observe)
			st.Observe(store.Snapshot())

			ln, err := net.Listen("tcp", cfg.Service.Addr)
			if err != nil {
				return err
			}
			e.Listener = ln
			go func() {
				if err := e.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server: %v", err)
				}
			}()
			logger.Info("http listening on %s", ln.Addr())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if dispose != nil {
				dispose()
			}
			return e.Shutdown(ctx)
		},
	})
}
