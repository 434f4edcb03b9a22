package service

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"trade_desk/internal/backtest"
	"trade_desk/internal/models"
	commands "trade_desk/internal/modules/commands/service"
	journal "trade_desk/internal/modules/journal/service"
	transport "trade_desk/internal/modules/transport/service"
	"trade_desk/internal/rules"
	"trade_desk/internal/series"
	"trade_desk/pkg/logger"
)

// SnapshotReader — read-only доступ к стору.
type SnapshotReader interface {
	Snapshot() models.Snapshot
}

type Handler struct {
	store   SnapshotReader
	cmd     *commands.Commands
	journal journal.Recorder
	state   *State
}

func NewHandler(store SnapshotReader, cmd *commands.Commands, rec journal.Recorder, state *State) *Handler {
	return &Handler{store: store, cmd: cmd, journal: rec, state: state}
}

func (h *Handler) Livez(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (h *Handler) Readyz(c echo.Context) error {
	if !h.state.Ready() {
		return c.String(http.StatusServiceUnavailable, "not ready")
	}
	return c.String(http.StatusOK, "ready")
}

func (h *Handler) Healthz(c echo.Context) error {
	var last int64
	if t := h.state.LastSignal(); !t.IsZero() {
		last = t.Unix()
	}
	return c.JSON(http.StatusOK, map[string]any{
		"ready":          h.state.Ready(),
		"stream":         h.state.StreamState().String(),
		"lastSignalUnix": last,
		"pollFailures":   h.state.PollFailures(),
		"uptimeSec":      int64(h.state.Uptime().Seconds()),
	})
}

func (h *Handler) Snapshot(c echo.Context) error {
	return SuccessResponse(c, h.store.Snapshot())
}

type chartResponse struct {
	series.Chart
	Metrics series.Metrics `json:"metrics"`
}

// Chart — история с бэкенда, пересчитанная в домен/деления. Пустая история — status no_data.
func (h *Handler) Chart(c echo.Context) error {
	raw := c.QueryParam("period")
	if raw == "" {
		raw = string(series.Period1M)
	}
	period, err := series.ParsePeriod(raw)
	if err != nil {
		return BadRequestResponse(c, err.Error())
	}

	points, err := h.cmd.History(c.Request().Context(), period)
	if err != nil {
		return h.commandError(c, "failed to load history", err)
	}
	chart, err := series.Aggregate(points, period)
	if errors.Is(err, series.ErrNoData) {
		return NoDataResponse(c, "no data available")
	}
	if err != nil {
		return ErrorResponse(c, http.StatusUnprocessableEntity, "failed to build chart", err.Error())
	}
	return SuccessResponse(c, chartResponse{Chart: chart, Metrics: series.Summarize(points)})
}

func (h *Handler) ValidateStrategy(c echo.Context) error {
	var d rules.Draft
	if err := c.Bind(&d); err != nil {
		return BadRequestResponse(c, "invalid strategy body")
	}
	normalizeOperators(&d)
	return SuccessResponse(c, rules.Validate(&d))
}

func (h *Handler) SubmitStrategy(c echo.Context) error {
	var d rules.Draft
	if err := c.Bind(&d); err != nil {
		return BadRequestResponse(c, "invalid strategy body")
	}
	normalizeOperators(&d)
	res, err := h.cmd.SubmitStrategy(c.Request().Context(), &d)
	if !res.OK {
		return ErrorResponse(c, http.StatusUnprocessableEntity, "strategy is invalid", res.Errors)
	}
	if err != nil {
		return h.commandError(c, "failed to submit strategy", err)
	}
	return SuccessMessageResponse(c, "strategy submitted", res)
}

func (h *Handler) Strategies(c echo.Context) error {
	list, err := h.cmd.Strategies(c.Request().Context())
	if err != nil {
		return h.commandError(c, "failed to load strategies", err)
	}
	return SuccessResponse(c, list)
}

type tradeRequest struct {
	Ticker   string `json:"ticker"`
	Side     string `json:"side"`
	Quantity string `json:"quantity"`
}

func (h *Handler) ManualTrade(c echo.Context) error {
	var req tradeRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "invalid trade body")
	}
	rec, err := h.cmd.ManualTrade(c.Request().Context(), req.Ticker, req.Side, req.Quantity)
	if err != nil {
		return h.commandError(c, "trade rejected", err)
	}
	return SuccessMessageResponse(c, rec.Message, rec)
}

func (h *Handler) Liquidate(c echo.Context) error {
	msg, err := h.cmd.Liquidate(c.Request().Context())
	if err != nil {
		return h.commandError(c, "liquidation failed", err)
	}
	return SuccessMessageResponse(c, msg, nil)
}

func (h *Handler) AddTicker(c echo.Context) error {
	var req struct {
		Ticker string `json:"ticker"`
	}
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "invalid ticker body")
	}
	sym, err := h.cmd.AddTicker(c.Request().Context(), req.Ticker)
	if err != nil {
		return h.commandError(c, "failed to add ticker", err)
	}
	return SuccessResponse(c, map[string]string{"ticker": sym})
}

func (h *Handler) UploadTickers(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return BadRequestResponse(c, "no file uploaded")
	}
	f, err := fh.Open()
	if err != nil {
		return BadRequestResponse(c, "cannot read uploaded file")
	}
	defer f.Close()

	if err := h.cmd.UploadTickers(c.Request().Context(), fh.Filename, f); err != nil {
		return h.commandError(c, "failed to upload tickers", err)
	}
	return SuccessMessageResponse(c, "tickers uploaded", nil)
}

func (h *Handler) LoadHistoricalData(c echo.Context) error {
	var req struct {
		Tickers  []string `json:"tickers"`
		Interval string   `json:"interval"`
		Period   string   `json:"period"`
	}
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "invalid request body")
	}
	if err := h.cmd.LoadHistoricalData(c.Request().Context(), req.Tickers, req.Interval, req.Period); err != nil {
		return h.commandError(c, "failed to request historical data", err)
	}
	return SuccessMessageResponse(c, "historical data requested", nil)
}

func (h *Handler) ValidateBacktest(c echo.Context) error {
	var req backtest.Request
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "invalid backtest body")
	}
	backtest.Normalize(&req)
	return SuccessResponse(c, backtest.Validate(&req))
}

func (h *Handler) RunBacktest(c echo.Context) error {
	var req backtest.Request
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "invalid backtest body")
	}
	rep, res, err := h.cmd.RunBacktest(c.Request().Context(), &req)
	if !res.OK {
		return ErrorResponse(c, http.StatusUnprocessableEntity, "backtest request is invalid", res.Errors)
	}
	if err != nil {
		return h.commandError(c, "backtest failed", err)
	}
	return SuccessMessageResponse(c, "backtest completed", rep)
}

func (h *Handler) BacktestResults(c echo.Context) error {
	list, err := h.cmd.BacktestResults(c.Request().Context())
	if err != nil {
		return h.commandError(c, "failed to load backtest results", err)
	}
	if len(list) == 0 {
		return NoDataResponse(c, "no backtest results yet")
	}
	return SuccessResponse(c, list)
}

// BacktestRanges — диапазоны параметров по стратегиям, для формы запуска.
func (h *Handler) BacktestRanges(c echo.Context) error {
	out := make(map[string]map[string]backtest.Range)
	for _, name := range backtest.Strategies() {
		out[name], _ = backtest.Ranges(name)
	}
	return SuccessResponse(c, out)
}

func (h *Handler) Journal(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			return BadRequestResponse(c, "limit must be 1..500")
		}
		limit = n
	}
	list, err := h.journal.Recent(c.Request().Context(), limit)
	if err != nil {
		logger.Error("journal read: %v", err)
		return ErrorResponse(c, http.StatusInternalServerError, "failed to read journal", err.Error())
	}
	return SuccessResponse(c, list)
}

// commandError: отказ по вводу — 400, бэкенд не ответил — 504, ответил ошибкой — 502.
func (h *Handler) commandError(c echo.Context, message string, err error) error {
	var input *commands.InputError
	if errors.As(err, &input) {
		return ErrorResponse(c, http.StatusBadRequest, message, input)
	}
	switch transport.KindOf(err) {
	case transport.KindNetwork:
		return ErrorResponse(c, http.StatusGatewayTimeout, message, err.Error())
	case transport.KindServerError, transport.KindDecode:
		return ErrorResponse(c, http.StatusBadGateway, message, err.Error())
	}
	logger.Warn("%s: %v", message, err)
	return ErrorResponse(c, http.StatusBadGateway, message, err.Error())
}

func normalizeOperators(d *rules.Draft) {
	for i := range d.Rules {
		d.Rules[i].Operator = rules.ParseOperator(string(d.Rules[i].Operator))
	}
}

