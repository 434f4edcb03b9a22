package backtest

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"

	"trade_desk/internal/rules"
)

// DateLayout — даты бэктеста без времени.
const DateLayout = "2006-01-02"

// Request — параметры запуска бэктеста.
type Request struct {
	Strategy  string             `json:"strategy" yaml:"strategy"`
	Ticker    string             `json:"ticker" yaml:"ticker"`
	StartDate string             `json:"start_date" yaml:"start_date"`
	EndDate   string             `json:"end_date" yaml:"end_date"`
	Params    map[string]float64 `json:"params,omitempty" yaml:"params"`
	Optimize  bool               `json:"optimize" yaml:"optimize"`
}

// Range — допустимые значения параметра и шаг сетки оптимизации.
type Range struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

var ranges = map[string]map[string]Range{
	"MovingAverageCrossover": {
		"short_window": {Min: 5, Max: 15, Step: 1},
		"long_window":  {Min: 10, Max: 20, Step: 1},
	},
	"RSIStrategy": {
		"rsi_period": {Min: 5, Max: 30, Step: 5},
		"oversold":   {Min: 20, Max: 40, Step: 5},
		"overbought": {Min: 60, Max: 80, Step: 5},
	},
	"MACDStrategy": {
		"fast_period":   {Min: 12, Max: 16, Step: 1},
		"slow_period":   {Min: 26, Max: 30, Step: 1},
		"signal_period": {Min: 9, Max: 12, Step: 1},
	},
	"BollingerBandsStrategy": {
		"window":  {Min: 20, Max: 30, Step: 5},
		"num_std": {Min: 2, Max: 3, Step: 0.5},
	},
}

// Strategies — стратегии, для которых известны диапазоны параметров.
func Strategies() []string {
	out := make([]string, 0, len(ranges))
	for name := range ranges {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Ranges — копия диапазонов стратегии; ok=false, если стратегия неизвестна.
func Ranges(strategy string) (map[string]Range, bool) {
	r, ok := ranges[strategy]
	if !ok {
		return nil, false
	}
	out := make(map[string]Range, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out, true
}

// Normalize подчищает ввод: пробелы, тикер в верхний регистр.
func Normalize(r *Request) {
	r.Strategy = strings.TrimSpace(r.Strategy)
	r.Ticker = strings.ToUpper(strings.TrimSpace(r.Ticker))
	r.StartDate = strings.TrimSpace(r.StartDate)
	r.EndDate = strings.TrimSpace(r.EndDate)
}

// Validate проверяет запрос в порядке полей формы. Параметры вне диапазона отклоняются,
// параметры без диапазона (и стратегии без таблицы) пропускаются как есть.
func Validate(r *Request) rules.Result {
	var errs []rules.ValidationError
	add := func(field, format string, args ...any) {
		errs = append(errs, rules.ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if r.Strategy == "" {
		add("strategy", "strategy is required")
	}
	if msg := tickerProblem(r.Ticker); msg != "" {
		add("ticker", "%s", msg)
	}

	start, startErr := time.Parse(DateLayout, r.StartDate)
	if startErr != nil {
		add("start_date", "must be a date YYYY-MM-DD")
	}
	end, endErr := time.Parse(DateLayout, r.EndDate)
	if endErr != nil {
		add("end_date", "must be a date YYYY-MM-DD")
	}
	if startErr == nil && endErr == nil && !start.Before(end) {
		add("end_date", "must be after start_date")
	}

	known := ranges[r.Strategy]
	names := make([]string, 0, len(r.Params))
	for name := range r.Params {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		v := r.Params[name]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			add("params."+name, "must be a finite number")
			continue
		}
		rg, ok := known[name]
		if ok && (v < rg.Min || v > rg.Max) {
			add("params."+name, "value %v outside valid range (%v-%v)", v, rg.Min, rg.Max)
		}
	}

	if r.Optimize && known == nil && r.Strategy != "" {
		add("optimize", "no optimization grid for strategy %q", r.Strategy)
	}

	return rules.Result{OK: len(errs) == 0, Errors: errs}
}

func tickerProblem(s string) string {
	if s == "" {
		return "no ticker provided"
	}
	if len(s) > 5 {
		return "must be 1-5 letters"
	}
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return "must contain letters only"
		}
	}
	return ""
}

// Grid — сетка перебора для оптимизации: min..max включительно с шагом step.
// Шаг складывается в decimal.
func Grid(strategy string) (map[string][]float64, error) {
	known, ok := ranges[strategy]
	if !ok {
		return nil, fmt.Errorf("no grid search parameters defined for %s", strategy)
	}
	out := make(map[string][]float64, len(known))
	for name, rg := range known {
		lo, hi, step := decimal.NewFromFloat(rg.Min), decimal.NewFromFloat(rg.Max), decimal.NewFromFloat(rg.Step)
		var vals []float64
		for v := lo; v.LessThanOrEqual(hi); v = v.Add(step) {
			vals = append(vals, v.InexactFloat64())
		}
		out[name] = vals
	}
	return out, nil
}

type payload struct {
	Strategy  string               `json:"strategy"`
	Ticker    string               `json:"ticker"`
	StartDate string               `json:"start_date"`
	EndDate   string               `json:"end_date"`
	Params    map[string]float64   `json:"strategy_params"`
	Optimize  bool                 `json:"optimize"`
	ParamGrid map[string][]float64 `json:"param_grid,omitempty"`
}

// Payload — тело POST backtest. С optimize к нему прикладывается сетка перебора.
func Payload(r *Request) (any, error) {
	p := payload{
		Strategy:  r.Strategy,
		Ticker:    r.Ticker,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		Params:    r.Params,
		Optimize:  r.Optimize,
	}
	if p.Params == nil {
		p.Params = map[string]float64{}
	}
	if r.Optimize {
		grid, err := Grid(r.Strategy)
		if err != nil {
			return nil, err
		}
		p.ParamGrid = grid
	}
	return p, nil
}

// LoadRequest читает запрос из YAML и нормализует его. Валидацию не делает.
func LoadRequest(rd io.Reader) (*Request, error) {
	raw, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("read backtest: %w", err)
	}
	var r Request
	if err := yaml.UnmarshalStrict(raw, &r); err != nil {
		return nil, fmt.Errorf("parse backtest: %w", err)
	}
	Normalize(&r)
	return &r, nil
}
