package commands

import (
	"go.uber.org/fx"

	"trade_desk/internal/modules/commands/service"
	transport "trade_desk/internal/modules/transport/service"
)

func Module() fx.Option {
	return fx.Module("commands",
		fx.Provide(
			func(c *transport.Client) *service.Commands { return service.New(c) },
		),
	)
}
