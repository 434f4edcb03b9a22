package rules

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidationError — ошибка конкретного поля формы.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string { return e.Field + ": " + e.Message }

// Result — ошибки валидации возвращаются данными, порядок совпадает с порядком полей формы.
type Result struct {
	OK     bool              `json:"ok"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Err сворачивает Result в error (nil, если всё ок).
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}

func Validate(d *Draft) Result {
	var errs []ValidationError
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(d.Name) == "" {
		add("name", "name is required")
	}
	if len(d.Rules) == 0 {
		add("rules", "at least one rule is required")
	}
	for i, r := range d.Rules {
		prefix := fmt.Sprintf("rules[%d].", i)
		if !r.Indicator.Valid() {
			add(prefix+FieldIndicator, "unknown indicator %q", r.Indicator)
		}
		if !r.Operator.Valid() {
			add(prefix+FieldOperator, "unknown operator %q", r.Operator)
		}
		if _, err := ParseValue(r.Value); err != nil {
			add(prefix+FieldValue, "%v", err)
		}
		if !r.LogicalOperator.Valid() {
			add(prefix+FieldLogicalOperator, "unknown logical operator %q", r.LogicalOperator)
		}
		if !r.Action.Valid() {
			add(prefix+FieldAction, "unknown action %q", r.Action)
		}
	}
	if !positive(d.StopLossPct) {
		add("stopLossPct", "must be greater than 0")
	}
	if !positive(d.TakeProfitPct) {
		add("takeProfitPct", "must be greater than 0")
	}

	return Result{OK: len(errs) == 0, Errors: errs}
}

// ParseValue — порог правила. decimal не принимает NaN/Inf, так что конечность гарантирована.
func ParseValue(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("value is required")
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("value %q is not a number", s)
	}
	return v, nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
