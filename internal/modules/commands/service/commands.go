package service

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"trade_desk/internal/backtest"
	"trade_desk/internal/models"
	"trade_desk/internal/rules"
	"trade_desk/internal/series"
	transport "trade_desk/internal/modules/transport/service"
	"trade_desk/internal/wire"
	"trade_desk/pkg/logger"
)

const (
	ResourceHistory        = "portfolio/history"
	ResourceStrategies     = "strategies"
	ResourceManualTrade    = "manual_trade"
	ResourceLiquidate      = "liquidate_positions"
	ResourceAddTicker      = "add_ticker"
	ResourceUploadTickers  = "upload_tickers"
	ResourceLoadHistorical = "load_historical_data"
	ResourceBacktest       = "backtest"
	ResourceBacktestResult = "backtest/results"

	DefaultInterval = "5min"
	DefaultPeriod   = "5y"
)

// Backend — pull-канал адаптера.
type Backend interface {
	Poll(ctx context.Context, resource string, params url.Values) ([]byte, error)
	Post(ctx context.Context, resource string, payload any) ([]byte, error)
	PostFile(ctx context.Context, resource, field, filename string, r io.Reader) ([]byte, error)
}

// Commands — команды оператора. Стор не трогают: состояние догонит поллер или push.
type Commands struct {
	backend Backend
}

func New(b Backend) *Commands {
	return &Commands{backend: b}
}

// InputError — команда отклонена до отправки.
type InputError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *InputError) Error() string { return e.Field + ": " + e.Message }

// History — ряд стоимости портфеля за период, бакеты считает сервер.
func (c *Commands) History(ctx context.Context, period series.Period) ([]models.HistoryPoint, error) {
	if _, err := series.ParsePeriod(string(period)); err != nil {
		return nil, err
	}
	body, err := c.backend.Poll(ctx, ResourceHistory, url.Values{"period": {string(period)}})
	if err != nil {
		return nil, err
	}
	points, err := wire.DecodeHistory(body)
	if err != nil {
		return nil, transport.NewDecodeError(ResourceHistory, err)
	}
	return points, nil
}

func (c *Commands) Strategies(ctx context.Context) ([]models.StrategyInfo, error) {
	body, err := c.backend.Poll(ctx, ResourceStrategies, nil)
	if err != nil {
		return nil, err
	}
	list, err := wire.DecodeStrategies(body)
	if err != nil {
		return nil, transport.NewDecodeError(ResourceStrategies, err)
	}
	return list, nil
}

// SubmitStrategy отправляет черновик. Невалидный не уходит: возвращается Result с ошибками.
func (c *Commands) SubmitStrategy(ctx context.Context, d *rules.Draft) (rules.Result, error) {
	res := rules.Validate(d)
	if !res.OK {
		return res, res.Err()
	}
	body, err := c.backend.Post(ctx, ResourceStrategies, rules.SubmitPayload(d))
	if err != nil {
		return res, err
	}
	if _, err := wire.DecodeReply(body); err != nil {
		return res, fmt.Errorf("submit strategy: %w", err)
	}
	logger.Info("strategy %q submitted (%d rules)", d.Name, len(d.Rules))
	return res, nil
}

type tradeRequest struct {
	Ticker        string          `json:"ticker"`
	Side          models.Side     `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	ClientOrderID string          `json:"client_order_id"`
}

// TradeReceipt — что ушло на бэкенд и что он ответил.
type TradeReceipt struct {
	ClientOrderID string          `json:"client_order_id"`
	Ticker        string          `json:"ticker"`
	Side          models.Side     `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	Message       string          `json:"message"`
}

// ManualTrade — ручная сделка. qty строкой, чтобы не терять точность.
func (c *Commands) ManualTrade(ctx context.Context, ticker, side, qty string) (TradeReceipt, error) {
	sym, err := NormalizeTicker(ticker)
	if err != nil {
		return TradeReceipt{}, err
	}
	s, err := wire.ParseSide(side)
	if err != nil {
		return TradeReceipt{}, &InputError{Field: "side", Message: "must be BUY or SELL"}
	}
	q, err := decimal.NewFromString(strings.TrimSpace(qty))
	if err != nil || !q.IsPositive() {
		return TradeReceipt{}, &InputError{Field: "quantity", Message: "must be a positive number"}
	}

	req := tradeRequest{Ticker: sym, Side: s, Quantity: q, ClientOrderID: uuid.NewString()}
	body, err := c.backend.Post(ctx, ResourceManualTrade, req)
	if err != nil {
		return TradeReceipt{}, err
	}
	msg, err := wire.DecodeReply(body)
	if err != nil {
		return TradeReceipt{}, fmt.Errorf("manual trade: %w", err)
	}
	logger.Info("manual trade %s %s %s sent, client id %s", s, q, sym, req.ClientOrderID)
	return TradeReceipt{
		ClientOrderID: req.ClientOrderID,
		Ticker:        sym,
		Side:          s,
		Quantity:      q,
		Message:       msg,
	}, nil
}

// Liquidate — закрыть все позиции.
func (c *Commands) Liquidate(ctx context.Context) (string, error) {
	body, err := c.backend.Post(ctx, ResourceLiquidate, struct{}{})
	if err != nil {
		return "", err
	}
	msg, err := wire.DecodeReply(body)
	if err != nil {
		return "", fmt.Errorf("liquidate: %w", err)
	}
	logger.Warn("liquidation requested: %s", msg)
	return msg, nil
}

func (c *Commands) AddTicker(ctx context.Context, ticker string) (string, error) {
	sym, err := NormalizeTicker(ticker)
	if err != nil {
		return "", err
	}
	body, err := c.backend.Post(ctx, ResourceAddTicker, map[string]string{"ticker": sym})
	if err != nil {
		return "", err
	}
	if _, err := wire.DecodeReply(body); err != nil {
		return "", fmt.Errorf("add ticker: %w", err)
	}
	return sym, nil
}

// UploadTickers — CSV со списком тикеров, multipart-поле file.
func (c *Commands) UploadTickers(ctx context.Context, filename string, r io.Reader) error {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." {
		return &InputError{Field: "file", Message: "no file selected"}
	}
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return &InputError{Field: "file", Message: "invalid file format, expected .csv"}
	}
	body, err := c.backend.PostFile(ctx, ResourceUploadTickers, "file", name, r)
	if err != nil {
		return err
	}
	if _, err := wire.DecodeReply(body); err != nil {
		return fmt.Errorf("upload tickers: %w", err)
	}
	return nil
}

type historicalRequest struct {
	Tickers  []string `json:"tickers"`
	Interval string   `json:"interval"`
	Period   string   `json:"period"`
}

// LoadHistoricalData просит бэкенд догрузить историю. Пустые interval/period — 5min/5y.
func (c *Commands) LoadHistoricalData(ctx context.Context, tickers []string, interval, period string) error {
	req := historicalRequest{Tickers: []string{}, Interval: interval, Period: period}
	if strings.TrimSpace(req.Interval) == "" {
		req.Interval = DefaultInterval
	}
	if strings.TrimSpace(req.Period) == "" {
		req.Period = DefaultPeriod
	}
	for _, t := range tickers {
		sym, err := NormalizeTicker(t)
		if err != nil {
			return err
		}
		req.Tickers = append(req.Tickers, sym)
	}
	body, err := c.backend.Post(ctx, ResourceLoadHistorical, req)
	if err != nil {
		return err
	}
	if _, err := wire.DecodeReply(body); err != nil {
		return fmt.Errorf("load historical data: %w", err)
	}
	return nil
}

// RunBacktest запускает бэктест. Невалидный запрос не уходит: возвращается Result с ошибками.
func (c *Commands) RunBacktest(ctx context.Context, req *backtest.Request) (models.BacktestReport, rules.Result, error) {
	backtest.Normalize(req)
	res := backtest.Validate(req)
	if !res.OK {
		return models.BacktestReport{}, res, res.Err()
	}
	payload, err := backtest.Payload(req)
	if err != nil {
		return models.BacktestReport{}, res, err
	}
	body, err := c.backend.Post(ctx, ResourceBacktest, payload)
	if err != nil {
		return models.BacktestReport{}, res, err
	}
	rep, err := wire.DecodeBacktest(body)
	if err != nil {
		return models.BacktestReport{}, res, fmt.Errorf("backtest: %w", err)
	}
	if rep.Strategy == "" {
		rep.Strategy = req.Strategy
	}
	if rep.Ticker == "" {
		rep.Ticker = req.Ticker
	}
	logger.Info("backtest %s on %s %s..%s done, return %.4f", req.Strategy, req.Ticker, req.StartDate, req.EndDate, rep.Metrics.TotalReturn)
	return rep, res, nil
}

// BacktestResults — сохранённые результаты прошлых прогонов.
func (c *Commands) BacktestResults(ctx context.Context) ([]models.BacktestResult, error) {
	body, err := c.backend.Poll(ctx, ResourceBacktestResult, nil)
	if err != nil {
		return nil, err
	}
	list, err := wire.DecodeBacktestResults(body)
	if err != nil {
		return nil, fmt.Errorf("backtest results: %w", err)
	}
	return list, nil
}

// NormalizeTicker: только латиница, 1-5 символов, в верхний регистр.
func NormalizeTicker(s string) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(s))
	if sym == "" {
		return "", &InputError{Field: "ticker", Message: "no ticker provided"}
	}
	if len(sym) > 5 {
		return "", &InputError{Field: "ticker", Message: "must be 1-5 letters"}
	}
	for _, r := range sym {
		if r < 'A' || r > 'Z' {
			return "", &InputError{Field: "ticker", Message: "must contain letters only"}
		}
	}
	return sym, nil
}
