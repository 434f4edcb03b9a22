package models

// BacktestMetrics — итог прогона. Sharpe может не посчитаться (мало сделок).
type BacktestMetrics struct {
	FinalValue     float64  `json:"final_value"`
	TotalReturn    float64  `json:"total_return"` // доля, 0.12 = 12%
	Sharpe         *float64 `json:"sharpe,omitempty"`
	MaxDrawdownPct float64  `json:"max_drawdown_pct"`
}

// BacktestReport — ответ на запуск бэктеста: метрики стратегии и бенчмарка (SPY).
type BacktestReport struct {
	Strategy  string             `json:"strategy"`
	Ticker    string             `json:"ticker"`
	Params    map[string]float64 `json:"params,omitempty"`
	Metrics   BacktestMetrics    `json:"metrics"`
	Benchmark *BacktestMetrics   `json:"benchmark,omitempty"`
}

// BacktestResult — строка из сохранённых результатов.
type BacktestResult struct {
	Strategy string          `json:"strategy,omitempty"`
	Ticker   string          `json:"ticker,omitempty"`
	Metrics  BacktestMetrics `json:"metrics"`
}
