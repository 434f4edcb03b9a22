// Package series готовит историю стоимости портфеля к отрисовке:
// домен значений с запасом и фиксированная ось из трёх делений.
package series

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"trade_desk/internal/models"
)

type Period string

const (
	Period1D  Period = "1D"
	Period1W  Period = "1W"
	Period1M  Period = "1M"
	Period3M  Period = "3M"
	Period1Y  Period = "1Y"
	PeriodAll Period = "ALL"
)

var periods = []Period{Period1D, Period1W, Period1M, Period3M, Period1Y, PeriodAll}

// Periods — все допустимые периоды в порядке отображения.
func Periods() []Period { return append([]Period(nil), periods...) }

var ErrUnknownPeriod = errors.New("unknown period")

func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range periods {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
}

type AggregationKind int

const (
	NoData AggregationKind = iota + 1
)

// AggregationError — штатное «рисовать нечего», не авария.
type AggregationError struct {
	Kind AggregationKind
}

func (e *AggregationError) Error() string {
	switch e.Kind {
	case NoData:
		return "no data available"
	default:
		return "aggregation failed"
	}
}

var ErrNoData = &AggregationError{Kind: NoData}

func (e *AggregationError) Is(target error) bool {
	t, ok := target.(*AggregationError)
	return ok && t.Kind == e.Kind
}

const (
	paddingRatio = 0.10
	minEpsilon   = 1e-6
)

// Chart — то, что уходит в рендер.
type Chart struct {
	Period Period                `json:"period"`
	Domain [2]float64            `json:"domain"` // [низ, верх] с запасом
	Ticks  [3]float64            `json:"ticks"`  // [min, текущее, max]
	Points []models.HistoryPoint `json:"points"`
}

// MinPadding — нижняя граница запаса, чтобы ось не вырождалась в точку.
func MinPadding(v float64) float64 {
	return math.Max(math.Abs(v)*0.01, minEpsilon)
}

// Aggregate — чистая функция: одинаковый вход, одинаковый выход. Точки не трогает и не перебакечивает.
func Aggregate(points []models.HistoryPoint, period Period) (Chart, error) {
	if _, err := ParsePeriod(string(period)); err != nil {
		return Chart{}, err
	}
	if len(points) == 0 {
		return Chart{}, ErrNoData
	}

	lo, hi := points[0].Value, points[0].Value
	for _, p := range points[1:] {
		lo = math.Min(lo, p.Value)
		hi = math.Max(hi, p.Value)
	}
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return Chart{}, fmt.Errorf("history contains non-finite values")
	}

	pad := (hi - lo) * paddingRatio
	if floor := MinPadding(math.Max(math.Abs(lo), math.Abs(hi))); pad < floor {
		pad = floor
	}

	// плоский ряд: крайние тики по краям домена
	tickLo, tickHi := lo, hi
	if lo == hi {
		tickLo, tickHi = lo-pad, hi+pad
	}

	return Chart{
		Period: period,
		Domain: [2]float64{lo - pad, hi + pad},
		Ticks:  [3]float64{tickLo, points[len(points)-1].Value, tickHi},
		Points: append([]models.HistoryPoint(nil), points...),
	}, nil
}
