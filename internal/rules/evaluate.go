package rules

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Evaluate считает цепочку правил строго слева направо без приоритетов:
// ((r0 op0 r1) op1 r2) ... Возвращает действие последнего правила и сработала ли цепочка.
// Такой порядок — принятое соглашение: бэкенд явно его не гарантирует.
func Evaluate(d *Draft, values map[Indicator]float64) (Action, bool, error) {
	if res := Validate(d); !res.OK {
		return "", false, res.Err()
	}

	var acc bool
	for i, r := range d.Rules {
		cur, err := check(r, values)
		if err != nil {
			return "", false, fmt.Errorf("rules[%d]: %w", i, err)
		}
		if i == 0 {
			acc = cur
			continue
		}
		switch d.Rules[i-1].LogicalOperator {
		case LogicalAnd:
			acc = acc && cur
		case LogicalOr:
			acc = acc || cur
		}
	}
	return d.Rules[len(d.Rules)-1].Action, acc, nil
}

func check(r Rule, values map[Indicator]float64) (bool, error) {
	raw, ok := values[r.Indicator]
	if !ok {
		return false, fmt.Errorf("no value for indicator %s", r.Indicator)
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return false, fmt.Errorf("indicator %s is not finite", r.Indicator)
	}
	threshold, err := ParseValue(r.Value)
	if err != nil {
		return false, err
	}
	cmp := decimal.NewFromFloat(raw).Cmp(threshold)
	switch r.Operator {
	case OpGreaterThan:
		return cmp > 0, nil
	case OpLessThan:
		return cmp < 0, nil
	case OpEquals:
		return cmp == 0, nil
	}
	return false, fmt.Errorf("unknown operator %q", r.Operator)
}
