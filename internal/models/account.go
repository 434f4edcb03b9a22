package models

import "time"

type StrategyStatus string

const (
	StrategyActive   StrategyStatus = "Active"
	StrategyInactive StrategyStatus = "Inactive"
)

// AccountSnapshot — сводка по счёту, как её видит оператор.
type AccountSnapshot struct {
	Balance        float64        `json:"balance"`
	CashAvailable  float64        `json:"cash_available"`
	PortfolioValue float64        `json:"portfolio_value"`
	TodayPnL       float64        `json:"today_pnl"`
	TodayReturnPct float64        `json:"today_return_pct"` // знак = направление
	StrategyStatus StrategyStatus `json:"strategy_status"`
	LastUpdated    time.Time      `json:"last_updated"`
}

// AccountPatch — то, что реально пришло в payload. nil-поле = «не присылали», не трогаем.
type AccountPatch struct {
	Balance        *float64
	CashAvailable  *float64
	PortfolioValue *float64
	TodayPnL       *float64
	TodayReturnPct *float64
	StrategyStatus *StrategyStatus
	LastUpdated    *time.Time
}

// Apply накатывает присутствующие поля поверх base и возвращает новую копию.
func (p AccountPatch) Apply(base AccountSnapshot) AccountSnapshot {
	out := base
	if p.Balance != nil {
		out.Balance = *p.Balance
	}
	if p.CashAvailable != nil {
		out.CashAvailable = *p.CashAvailable
	}
	if p.PortfolioValue != nil {
		out.PortfolioValue = *p.PortfolioValue
	}
	if p.TodayPnL != nil {
		out.TodayPnL = *p.TodayPnL
	}
	if p.TodayReturnPct != nil {
		out.TodayReturnPct = *p.TodayReturnPct
	}
	if p.StrategyStatus != nil {
		out.StrategyStatus = *p.StrategyStatus
	}
	if p.LastUpdated != nil {
		out.LastUpdated = *p.LastUpdated
	}
	return out
}

// Empty — в патче нет ни одного поля.
func (p AccountPatch) Empty() bool {
	return p.Balance == nil && p.CashAvailable == nil && p.PortfolioValue == nil &&
		p.TodayPnL == nil && p.TodayReturnPct == nil && p.StrategyStatus == nil && p.LastUpdated == nil
}
