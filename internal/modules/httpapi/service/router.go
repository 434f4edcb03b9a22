package service

import (
	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// NewEcho собирает сервер со всеми маршрутами.
func NewEcho(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = sonicSerializer{}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	e.GET("/livez", h.Livez)
	e.GET("/readyz", h.Readyz)
	e.GET("/healthz", h.Healthz)

	api := e.Group("/api")
	{
		api.GET("/snapshot", h.Snapshot)
		api.GET("/chart", h.Chart)
		api.GET("/journal", h.Journal)

		api.GET("/strategies", h.Strategies)
		api.POST("/strategies", h.SubmitStrategy)
		api.POST("/strategies/validate", h.ValidateStrategy)

		api.POST("/manual_trade", h.ManualTrade)
		api.POST("/liquidate_positions", h.Liquidate)
		api.POST("/add_ticker", h.AddTicker)
		api.POST("/upload_tickers", h.UploadTickers)
		api.POST("/load_historical_data", h.LoadHistoricalData)

		api.POST("/backtest", h.RunBacktest)
		api.POST("/backtest/validate", h.ValidateBacktest)
		api.GET("/backtest/results", h.BacktestResults)
		api.GET("/backtest/ranges", h.BacktestRanges)
	}
	return e
}

// sonicSerializer — echo.JSONSerializer поверх sonic.
type sonicSerializer struct{}

func (sonicSerializer) Serialize(c echo.Context, i any, indent string) error {
	enc := sonic.ConfigDefault.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (sonicSerializer) Deserialize(c echo.Context, i any) error {
	err := sonic.ConfigDefault.NewDecoder(c.Request().Body).Decode(i)
	if err != nil {
		return echo.NewHTTPError(400, "invalid JSON body").SetInternal(err)
	}
	return nil
}
