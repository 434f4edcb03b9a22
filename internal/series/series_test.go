package series

import (
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"trade_desk/internal/models"
)

func history(values ...float64) []models.HistoryPoint {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.HistoryPoint, len(values))
	for i, v := range values {
		out[i] = models.HistoryPoint{Date: t0.AddDate(0, 0, i), Value: v}
	}
	return out
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name       string
		values     []float64
		wantDomain [2]float64
		wantTicks  [3]float64
	}{
		{
			name:       "ten percent padding",
			values:     []float64{100, 200, 150},
			wantDomain: [2]float64{90, 210},
			wantTicks:  [3]float64{100, 150, 200},
		},
		{
			name:       "padding floor beats narrow range",
			values:     []float64{1000, 1100, 1050},
			wantDomain: [2]float64{989, 1111},
			wantTicks:  [3]float64{1000, 1050, 1100},
		},
		{
			name:       "current is last point",
			values:     []float64{50, 10, 30, 20},
			wantDomain: [2]float64{6, 54},
			wantTicks:  [3]float64{10, 20, 50},
		},
		{
			name:       "flat series uses min padding",
			values:     []float64{200, 200},
			wantDomain: [2]float64{198, 202},
			wantTicks:  [3]float64{198, 200, 202},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Aggregate(history(tt.values...), Period1M)
			if err != nil {
				t.Fatalf("Aggregate: %v", err)
			}
			for i := range tt.wantDomain {
				if math.Abs(c.Domain[i]-tt.wantDomain[i]) > 1e-9 {
					t.Fatalf("domain = %v, want %v", c.Domain, tt.wantDomain)
				}
			}
			if c.Ticks != tt.wantTicks {
				t.Fatalf("ticks = %v, want %v", c.Ticks, tt.wantTicks)
			}
			if c.Domain[0] > c.Ticks[0] || c.Domain[1] < c.Ticks[2] {
				t.Fatalf("domain %v does not contain %v", c.Domain, c.Ticks)
			}
			lo, hi := slices.Min(tt.values), slices.Max(tt.values)
			if c.Domain[0] >= lo || c.Domain[1] <= hi {
				t.Fatalf("domain %v does not strictly contain [%v, %v]", c.Domain, lo, hi)
			}
			if len(c.Points) != len(tt.values) {
				t.Fatalf("points = %d", len(c.Points))
			}
		})
	}
}

func TestAggregate_SinglePoint(t *testing.T) {
	for _, v := range []float64{0, 1, -250, 1e9} {
		c, err := Aggregate(history(v), Period1D)
		if err != nil {
			t.Fatalf("Aggregate(%v): %v", v, err)
		}
		if !(c.Domain[0] < v && v < c.Domain[1]) {
			t.Fatalf("domain %v degenerate around %v", c.Domain, v)
		}
		eps := MinPadding(v)
		if want := [3]float64{v - eps, v, v + eps}; c.Ticks != want {
			t.Fatalf("ticks = %v, want %v", c.Ticks, want)
		}
		for _, x := range append(c.Ticks[:], c.Domain[:]...) {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				t.Fatalf("non-finite value in %v / %v", c.Ticks, c.Domain)
			}
		}
	}
}

func TestAggregate_SinglePointScenario(t *testing.T) {
	c, err := Aggregate([]models.HistoryPoint{{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Value: 100}}, Period1D)
	if err != nil {
		t.Fatal(err)
	}
	if c.Ticks[0] >= 100 || c.Ticks[1] != 100 || c.Ticks[2] <= 100 {
		t.Fatalf("ticks = %v, want [100-eps, 100, 100+eps]", c.Ticks)
	}
	if c.Ticks[0] != c.Domain[0] || c.Ticks[2] != c.Domain[1] {
		t.Fatalf("ticks %v do not match domain %v", c.Ticks, c.Domain)
	}
}

func TestAggregate_FlatSeriesTicks(t *testing.T) {
	c, err := Aggregate(history(50, 50, 50), Period1W)
	if err != nil {
		t.Fatal(err)
	}
	if c.Ticks[0] >= 50 || c.Ticks[2] <= 50 {
		t.Fatalf("ticks = %v", c.Ticks)
	}
}

func TestAggregate_NoData(t *testing.T) {
	_, err := Aggregate(nil, PeriodAll)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
	var aggErr *AggregationError
	if !errors.As(err, &aggErr) || aggErr.Kind != NoData {
		t.Fatalf("err = %#v", err)
	}
}

func TestAggregate_UnknownPeriod(t *testing.T) {
	if _, err := Aggregate(history(1), "2D"); !errors.Is(err, ErrUnknownPeriod) {
		t.Fatalf("err = %v", err)
	}
}

func TestAggregate_NonFinite(t *testing.T) {
	if _, err := Aggregate(history(1, math.NaN()), Period1D); err == nil {
		t.Fatal("want error for NaN")
	}
}

func TestAggregate_IdempotentAndPure(t *testing.T) {
	in := history(3, 1, 2)
	a, _ := Aggregate(in, Period1W)
	b, _ := Aggregate(in, Period1W)
	if a.Domain != b.Domain || a.Ticks != b.Ticks {
		t.Fatalf("not idempotent: %+v vs %+v", a, b)
	}
	a.Points[0].Value = 999
	if in[0].Value != 3 {
		t.Fatal("input mutated through output")
	}
}

func TestParsePeriod(t *testing.T) {
	for _, s := range []string{"1D", "1w", " 1M ", "3M", "1Y", "all"} {
		if _, err := ParsePeriod(s); err != nil {
			t.Errorf("ParsePeriod(%q): %v", s, err)
		}
	}
	if _, err := ParsePeriod("5Y"); !errors.Is(err, ErrUnknownPeriod) {
		t.Errorf("5Y: err = %v", err)
	}
}

func TestSummarize(t *testing.T) {
	m := Summarize(history(100, 110, 99, 120))

	if math.Abs(m.TotalReturnPct-20) > 1e-9 {
		t.Errorf("total return = %v", m.TotalReturnPct)
	}
	if len(m.DailyReturns) != 3 || math.Abs(m.DailyReturns[0]-0.1) > 1e-9 {
		t.Errorf("daily = %v", m.DailyReturns)
	}
	if math.Abs(m.MaxDrawdownPct-10) > 1e-9 {
		t.Errorf("max drawdown = %v", m.MaxDrawdownPct)
	}
	if m.Sharpe <= 0 {
		t.Errorf("sharpe = %v", m.Sharpe)
	}
}

func TestSummarize_Degenerate(t *testing.T) {
	if m := Summarize(nil); m.Sharpe != 0 || m.TotalReturnPct != 0 {
		t.Errorf("empty = %+v", m)
	}
	if m := Summarize(history(100, 100, 100)); m.Sharpe != 0 || m.MaxDrawdownPct != 0 {
		t.Errorf("flat = %+v", m)
	}
	if m := Summarize(history(0, 10)); m.TotalReturnPct != 0 {
		t.Errorf("zero start = %+v", m)
	}
}
