package series

import (
	"math"

	"trade_desk/internal/models"
)

const tradingDays = 252

// Metrics — сводка доходности по ряду стоимости.
type Metrics struct {
	TotalReturnPct float64   `json:"total_return_pct"`
	DailyReturns   []float64 `json:"daily_returns"`
	Sharpe         float64   `json:"sharpe"`
	MaxDrawdownPct float64   `json:"max_drawdown_pct"`
}

func Summarize(points []models.HistoryPoint) Metrics {
	if len(points) == 0 {
		return Metrics{DailyReturns: []float64{}}
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	returns := dailyReturns(values)
	return Metrics{
		TotalReturnPct: totalReturn(values[0], values[len(values)-1]),
		DailyReturns:   returns,
		Sharpe:         sharpe(returns),
		MaxDrawdownPct: maxDrawdown(values),
	}
}

func totalReturn(initial, current float64) float64 {
	if initial == 0 {
		return 0
	}
	return (current - initial) / initial * 100
}

func dailyReturns(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for i := 1; i < len(values); i++ {
		r := 0.0
		if values[i-1] != 0 {
			r = (values[i] - values[i-1]) / values[i-1]
		}
		out = append(out, r)
	}
	return out
}

// sharpe — годовой, безрисковая ставка 0, выборочное std.
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		sq += (r - mean) * (r - mean)
	}
	std := math.Sqrt(sq / float64(len(returns)-1))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(tradingDays)
}

func maxDrawdown(values []float64) float64 {
	peak := values[0]
	var mdd float64
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak == 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > mdd {
			mdd = dd
		}
	}
	return mdd * 100
}
