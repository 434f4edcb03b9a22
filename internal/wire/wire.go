// Package wire переводит сырые payload'ы бэкенда в типы internal/models.
// Всё, что не удалось разобрать, возвращается ошибкой и дальше границы не проходит.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"trade_desk/internal/models"
)

type accountWire struct {
	Balance        *float64 `json:"balance"`
	CashAvailable  *float64 `json:"cash_available"`
	PortfolioValue *float64 `json:"portfolio_value"`
	TodayPnL       *float64 `json:"today_pnl"`
	TodayReturnPct *float64 `json:"today_return_pct"`
	StrategyStatus *string  `json:"strategy_status"`
	LastUpdated    *string  `json:"last_updated"`
}

type positionWire struct {
	Symbol              string  `json:"symbol"`
	Quantity            float64 `json:"quantity"`
	AvgEntryPrice       float64 `json:"avg_entry_price"`
	CurrentPrice        float64 `json:"current_price"`
	MarketValue         float64 `json:"market_value"`
	UnrealizedPL        float64 `json:"unrealized_pl"`
	UnrealizedPLPercent float64 `json:"unrealized_plpc"`
}

type orderWire struct {
	OrderID   string  `json:"order_id"`
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
}

type statusWire struct {
	Status     string `json:"status"`
	LastUpdate string `json:"last_update"`
	Timestamp  string `json:"timestamp"`
}

type alertWire struct {
	Message string `json:"message"`
	Level   string `json:"level"`
}

type historyWire struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// updateWire — бандл события update. Поля счёта могут лежать как на верхнем уровне,
// так и в account/portfolio.
type updateWire struct {
	accountWire
	Account   *accountWire    `json:"account"`
	Portfolio *accountWire    `json:"portfolio"`
	Positions *[]positionWire `json:"positions"`
	Orders    *[]orderWire    `json:"orders"`
	Trades    *[]orderWire    `json:"trades"`
	Status    *statusWire     `json:"status"`
}

// DecodeUpdate разбирает push-событие update.
func DecodeUpdate(data []byte) (models.Update, error) {
	var w updateWire
	if err := sonic.Unmarshal(data, &w); err != nil {
		return models.Update{}, fmt.Errorf("decode update: %w", err)
	}

	var upd models.Update

	patch := models.AccountPatch{}
	for _, src := range []*accountWire{&w.accountWire, w.Account, w.Portfolio} {
		if src == nil {
			continue
		}
		if err := mergeAccount(&patch, src); err != nil {
			return models.Update{}, fmt.Errorf("decode update: %w", err)
		}
	}
	if !patch.Empty() {
		upd.Account = &patch
	}

	if w.Positions != nil {
		set, err := toPositionSet(*w.Positions)
		if err != nil {
			return models.Update{}, fmt.Errorf("decode update: %w", err)
		}
		upd.Positions = set
	}

	rows := w.Orders
	if rows == nil {
		rows = w.Trades
	}
	if rows != nil {
		orders, err := toOrders(*rows)
		if err != nil {
			return models.Update{}, fmt.Errorf("decode update: %w", err)
		}
		upd.Orders = orders
	}

	if w.Status != nil {
		st, err := toStreamPatch(*w.Status)
		if err != nil {
			return models.Update{}, fmt.Errorf("decode update: %w", err)
		}
		upd.Stream = &st
	}
	return upd, nil
}

// DecodeAccount — ответ GET account/status.
func DecodeAccount(data []byte) (*models.AccountPatch, error) {
	var w accountWire
	if err := sonic.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	patch := models.AccountPatch{}
	if err := mergeAccount(&patch, &w); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	return &patch, nil
}

// DecodePositions — ответ GET positions: массив или {"positions": [...]}.
func DecodePositions(data []byte) (models.PositionSet, error) {
	var rows []positionWire
	if err := decodeList(data, "positions", &rows); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	set, err := toPositionSet(rows)
	if err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	return set, nil
}

// DecodeOrders — ответ GET recent-trades: массив или {"trades": [...]}.
func DecodeOrders(data []byte) ([]models.Order, error) {
	var rows []orderWire
	if err := decodeList(data, "trades", &rows); err != nil {
		return nil, fmt.Errorf("decode trades: %w", err)
	}
	orders, err := toOrders(rows)
	if err != nil {
		return nil, fmt.Errorf("decode trades: %w", err)
	}
	return orders, nil
}

// DecodeStatus — data_status (status + last_update) и data_update (status + timestamp).
func DecodeStatus(data []byte) (models.StreamPatch, error) {
	var w statusWire
	if err := sonic.Unmarshal(data, &w); err != nil {
		return models.StreamPatch{}, fmt.Errorf("decode status: %w", err)
	}
	st, err := toStreamPatch(w)
	if err != nil {
		return models.StreamPatch{}, fmt.Errorf("decode status: %w", err)
	}
	if st.State == nil && st.LastUpdate.IsZero() {
		return models.StreamPatch{}, fmt.Errorf("decode status: neither status nor timestamp")
	}
	return st, nil
}

// DecodeAlert — push-событие alert.
func DecodeAlert(data []byte, at time.Time) (models.Alert, error) {
	var w alertWire
	if err := sonic.Unmarshal(data, &w); err != nil {
		return models.Alert{}, fmt.Errorf("decode alert: %w", err)
	}
	if strings.TrimSpace(w.Message) == "" {
		return models.Alert{}, fmt.Errorf("decode alert: empty message")
	}
	level := models.AlertLevel(strings.ToLower(w.Level))
	switch level {
	case models.AlertInfo, models.AlertWarning, models.AlertCritical:
	default:
		level = models.AlertWarning
	}
	return models.Alert{Level: level, Message: w.Message, Source: models.SourcePush, At: at}, nil
}

// DecodeHistory — GET portfolio/history. Возвращает ряд по возрастанию даты.
func DecodeHistory(data []byte) ([]models.HistoryPoint, error) {
	var rows []historyWire
	if err := decodeList(data, "history", &rows); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	out := make([]models.HistoryPoint, 0, len(rows))
	for i, r := range rows {
		d, err := ParseTime(r.Date)
		if err != nil {
			return nil, fmt.Errorf("decode history: point %d: %w", i, err)
		}
		out = append(out, models.HistoryPoint{Date: d, Value: r.Value})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// ParseStreamState: active|running|connected|ok -> Active, inactive|stopped|disconnected -> Inactive.
func ParseStreamState(s string) models.StreamState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active", "running", "connected", "ok":
		return models.StreamActive
	case "inactive", "stopped", "disconnected":
		return models.StreamInactive
	default:
		return models.StreamUnknown
	}
}

func ParseSide(s string) (models.Side, error) {
	side := models.Side(strings.ToUpper(strings.TrimSpace(s)))
	if !side.Valid() {
		return models.SideNone, fmt.Errorf("unknown side %q", s)
	}
	return side, nil
}

func mergeAccount(dst *models.AccountPatch, w *accountWire) error {
	if w.Balance != nil {
		dst.Balance = w.Balance
	}
	if w.CashAvailable != nil {
		dst.CashAvailable = w.CashAvailable
	}
	if w.PortfolioValue != nil {
		dst.PortfolioValue = w.PortfolioValue
	}
	if w.TodayPnL != nil {
		dst.TodayPnL = w.TodayPnL
	}
	if w.TodayReturnPct != nil {
		dst.TodayReturnPct = w.TodayReturnPct
	}
	if w.StrategyStatus != nil {
		var st models.StrategyStatus
		switch strings.ToLower(*w.StrategyStatus) {
		case "active":
			st = models.StrategyActive
		case "inactive":
			st = models.StrategyInactive
		default:
			return fmt.Errorf("unknown strategy status %q", *w.StrategyStatus)
		}
		dst.StrategyStatus = &st
	}
	if w.LastUpdated != nil {
		t, err := ParseTime(*w.LastUpdated)
		if err != nil {
			return fmt.Errorf("last_updated: %w", err)
		}
		dst.LastUpdated = &t
	}
	return nil
}

func toPositionSet(rows []positionWire) (models.PositionSet, error) {
	set := make(models.PositionSet, len(rows))
	for i, r := range rows {
		if r.Symbol == "" {
			return nil, fmt.Errorf("position %d: empty symbol", i)
		}
		set[r.Symbol] = models.Position{
			Symbol:              r.Symbol,
			Quantity:            r.Quantity,
			AvgEntryPrice:       r.AvgEntryPrice,
			CurrentPrice:        r.CurrentPrice,
			MarketValue:         r.MarketValue,
			UnrealizedPL:        r.UnrealizedPL,
			UnrealizedPLPercent: r.UnrealizedPLPercent,
		}
	}
	return set, nil
}

func toOrders(rows []orderWire) ([]models.Order, error) {
	out := make([]models.Order, 0, len(rows))
	for i, r := range rows {
		id := r.OrderID
		if id == "" {
			id = r.ID
		}
		if id == "" {
			return nil, fmt.Errorf("order %d: empty order_id", i)
		}
		side, err := ParseSide(r.Side)
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", id, err)
		}
		var ts time.Time
		if r.Timestamp != "" {
			if ts, err = ParseTime(r.Timestamp); err != nil {
				return nil, fmt.Errorf("order %s: %w", id, err)
			}
		}
		out = append(out, models.Order{
			OrderID:   id,
			Symbol:    r.Symbol,
			Side:      side,
			Quantity:  r.Quantity,
			Price:     r.Price,
			Status:    r.Status,
			Timestamp: ts,
		})
	}
	return out, nil
}

func toStreamPatch(w statusWire) (models.StreamPatch, error) {
	var st models.StreamPatch
	if strings.TrimSpace(w.Status) != "" {
		st.State = models.StreamStatePtr(ParseStreamState(w.Status))
	}
	raw := w.LastUpdate
	if raw == "" {
		raw = w.Timestamp
	}
	if raw != "" {
		t, err := ParseTime(raw)
		if err != nil {
			return models.StreamPatch{}, err
		}
		st.LastUpdate = t
	}
	return st, nil
}

// decodeList принимает и голый массив, и объект-обёртку с ключом key.
func decodeList(data []byte, key string, dst any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return sonic.Unmarshal(trimmed, dst)
	}
	var wrap map[string]json.RawMessage
	if err := sonic.Unmarshal(trimmed, &wrap); err != nil {
		return err
	}
	inner, ok := wrap[key]
	if !ok {
		return fmt.Errorf("missing %q", key)
	}
	return sonic.Unmarshal(inner, dst)
}

type strategyWire struct {
	ID          any    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// DecodeStrategies — GET strategies: массив или {"strategies": [...]}. id бывает и числом.
func DecodeStrategies(data []byte) ([]models.StrategyInfo, error) {
	var rows []strategyWire
	if err := decodeList(data, "strategies", &rows); err != nil {
		return nil, fmt.Errorf("decode strategies: %w", err)
	}
	out := make([]models.StrategyInfo, 0, len(rows))
	for i, r := range rows {
		if strings.TrimSpace(r.Name) == "" {
			return nil, fmt.Errorf("decode strategies: strategy %d: empty name", i)
		}
		id := ""
		if r.ID != nil {
			id = fmt.Sprint(r.ID)
		}
		out = append(out, models.StrategyInfo{ID: id, Name: r.Name, Description: r.Description, Status: r.Status})
	}
	return out, nil
}

type replyWire struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// DecodeReply — ответ на команду: {"status": "success"|"error", "message"} или {"error"}.
// Бэкенд иногда отдаёт ошибку с кодом 200, поэтому смотрим и в тело.
func DecodeReply(data []byte) (string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "", nil
	}
	var w replyWire
	if err := sonic.Unmarshal(data, &w); err != nil {
		return "", fmt.Errorf("decode reply: %w", err)
	}
	if w.Error != "" {
		return "", fmt.Errorf("%s", w.Error)
	}
	if strings.EqualFold(w.Status, "error") {
		msg := w.Message
		if msg == "" {
			msg = "command failed"
		}
		return "", fmt.Errorf("%s", msg)
	}
	return w.Message, nil
}

// backtestMetricsWire — метрики в том виде, как их отдаёт бэктестер.
type backtestMetricsWire struct {
	Strategy    string   `json:"strategy"`
	Ticker      string   `json:"ticker"`
	FinalValue  *float64 `json:"Final Portfolio Value"`
	TotalReturn *float64 `json:"Total Return"`
	Sharpe      *float64 `json:"Sharpe Ratio"`
	MaxDrawdown *float64 `json:"Max Drawdown"`
}

type comparisonWire struct {
	Strategy  *backtestMetricsWire `json:"Strategy"`
	Benchmark *backtestMetricsWire `json:"Benchmark"`
}

type backtestReportWire struct {
	Strategy   string               `json:"strategy"`
	Ticker     string               `json:"ticker"`
	Params     map[string]float64   `json:"params"`
	Metrics    *backtestMetricsWire `json:"metrics"`
	Comparison *comparisonWire      `json:"comparison"`
	Error      string               `json:"error"`
}

// DecodeBacktest — ответ POST backtest: metrics и/или comparison{Strategy, Benchmark}.
func DecodeBacktest(data []byte) (models.BacktestReport, error) {
	var w backtestReportWire
	if err := sonic.Unmarshal(data, &w); err != nil {
		return models.BacktestReport{}, fmt.Errorf("decode backtest: %w", err)
	}
	if w.Error != "" {
		return models.BacktestReport{}, fmt.Errorf("%s", w.Error)
	}

	src := w.Metrics
	if src == nil && w.Comparison != nil {
		src = w.Comparison.Strategy
	}
	if src == nil {
		return models.BacktestReport{}, fmt.Errorf("decode backtest: no metrics")
	}
	m, err := toBacktestMetrics(src)
	if err != nil {
		return models.BacktestReport{}, fmt.Errorf("decode backtest: %w", err)
	}
	rep := models.BacktestReport{Strategy: w.Strategy, Ticker: w.Ticker, Params: w.Params, Metrics: m}
	if w.Comparison != nil && w.Comparison.Benchmark != nil {
		b, err := toBacktestMetrics(w.Comparison.Benchmark)
		if err != nil {
			return models.BacktestReport{}, fmt.Errorf("decode backtest: benchmark: %w", err)
		}
		rep.Benchmark = &b
	}
	return rep, nil
}

type backtestResultsWire struct {
	Success *bool                 `json:"success"`
	Results []backtestMetricsWire `json:"results"`
	Error   string                `json:"error"`
}

// DecodeBacktestResults — GET backtest/results: {"success": true, "results": [...]} или голый массив.
func DecodeBacktestResults(data []byte) ([]models.BacktestResult, error) {
	var rows []backtestMetricsWire
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := sonic.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("decode backtest results: %w", err)
		}
	} else {
		var w backtestResultsWire
		if err := sonic.Unmarshal(trimmed, &w); err != nil {
			return nil, fmt.Errorf("decode backtest results: %w", err)
		}
		if w.Error != "" || (w.Success != nil && !*w.Success) {
			msg := w.Error
			if msg == "" {
				msg = "backtest results unavailable"
			}
			return nil, fmt.Errorf("%s", msg)
		}
		rows = w.Results
	}

	out := make([]models.BacktestResult, 0, len(rows))
	for i := range rows {
		m, err := toBacktestMetrics(&rows[i])
		if err != nil {
			return nil, fmt.Errorf("decode backtest results: row %d: %w", i, err)
		}
		out = append(out, models.BacktestResult{Strategy: rows[i].Strategy, Ticker: rows[i].Ticker, Metrics: m})
	}
	return out, nil
}

func toBacktestMetrics(w *backtestMetricsWire) (models.BacktestMetrics, error) {
	if w.FinalValue == nil || w.TotalReturn == nil || w.MaxDrawdown == nil {
		return models.BacktestMetrics{}, fmt.Errorf("incomplete metrics")
	}
	return models.BacktestMetrics{
		FinalValue:     *w.FinalValue,
		TotalReturn:    *w.TotalReturn,
		Sharpe:         w.Sharpe,
		MaxDrawdownPct: *w.MaxDrawdown,
	}, nil
}
