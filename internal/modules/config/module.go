package config

import "go.uber.org/fx"

// Module отдаёт конфиг в граф. Уже загруженный (cmd читает его раньше, ради логгера) кладём как есть.
func Module(loaded *Config) fx.Option {
	if loaded != nil {
		return fx.Module("config", fx.Supply(loaded))
	}
	return fx.Module("config",
		fx.Provide(
			NewConfig,
		),
	)
}
