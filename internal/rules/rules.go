// Package rules — модель стратегии: упорядоченный список условий с логическими связками,
// мутации с сохранением инварианта «хотя бы одно правило» и валидация перед отправкой.
package rules

import (
	"errors"
	"fmt"
	"strings"
)

type Indicator string

const (
	IndicatorPrice  Indicator = "Price"
	IndicatorVolume Indicator = "Volume"
	IndicatorRSI    Indicator = "RSI"
	IndicatorMACD   Indicator = "MACD"
)

func (i Indicator) Valid() bool {
	switch i {
	case IndicatorPrice, IndicatorVolume, IndicatorRSI, IndicatorMACD:
		return true
	}
	return false
}

type Operator string

const (
	OpGreaterThan Operator = ">"
	OpLessThan    Operator = "<"
	OpEquals      Operator = "=="
)

func (o Operator) Valid() bool {
	switch o {
	case OpGreaterThan, OpLessThan, OpEquals:
		return true
	}
	return false
}

// ParseOperator понимает и символ, и имя (GreaterThan/LessThan/Equals).
func ParseOperator(s string) Operator {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case ">", "greaterthan", "gt":
		return OpGreaterThan
	case "<", "lessthan", "lt":
		return OpLessThan
	case "==", "=", "equals", "eq":
		return OpEquals
	}
	return Operator(s)
}

type Logical string

const (
	LogicalAnd Logical = "AND"
	LogicalOr  Logical = "OR"
)

func (l Logical) Valid() bool { return l == LogicalAnd || l == LogicalOr }

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

func (a Action) Valid() bool { return a == ActionBuy || a == ActionSell }

// Rule — одно условие. LogicalOperator связывает его со СЛЕДУЮЩИМ правилом;
// у последнего правила он ни на что не влияет.
type Rule struct {
	Indicator       Indicator `yaml:"indicator" json:"indicator"`
	Operator        Operator  `yaml:"operator" json:"operator"`
	Value           string    `yaml:"value" json:"value"`
	LogicalOperator Logical   `yaml:"logicalOperator" json:"logicalOperator"`
	Action          Action    `yaml:"action" json:"action"`
}

// DefaultRule — шаблон для новой строки в форме.
func DefaultRule() Rule {
	return Rule{
		Indicator:       IndicatorPrice,
		Operator:        OpGreaterThan,
		Value:           "",
		LogicalOperator: LogicalAnd,
		Action:          ActionBuy,
	}
}

type Draft struct {
	Name          string  `yaml:"name" json:"name"`
	Description   string  `yaml:"description" json:"description"`
	Rules         []Rule  `yaml:"rules" json:"rules"`
	StopLossPct   float64 `yaml:"stopLossPct" json:"stopLossPct"`
	TakeProfitPct float64 `yaml:"takeProfitPct" json:"takeProfitPct"`
}

func NewDraft() *Draft {
	return &Draft{Rules: []Rule{DefaultRule()}}
}

var (
	ErrLastRule     = errors.New("cannot remove the last remaining rule")
	ErrIndex        = errors.New("rule index out of range")
	ErrUnknownField = errors.New("unknown rule field")
)

// Field names for UpdateRule.
const (
	FieldIndicator       = "indicator"
	FieldOperator        = "operator"
	FieldValue           = "value"
	FieldLogicalOperator = "logicalOperator"
	FieldAction          = "action"
)

// AddRule добавляет шаблонное правило в конец.
func (d *Draft) AddRule() {
	d.Rules = append(d.Rules, DefaultRule())
}

// RemoveRule удаляет правило по индексу, остальные сдвигаются. Последнее удалить нельзя.
func (d *Draft) RemoveRule(i int) error {
	if i < 0 || i >= len(d.Rules) {
		return fmt.Errorf("%w: %d", ErrIndex, i)
	}
	if len(d.Rules) == 1 {
		return ErrLastRule
	}
	rules := make([]Rule, 0, len(d.Rules)-1)
	rules = append(rules, d.Rules[:i]...)
	d.Rules = append(rules, d.Rules[i+1:]...)
	return nil
}

// UpdateRule меняет одно поле одного правила. Значение не проверяется — это делает Validate.
func (d *Draft) UpdateRule(i int, field, value string) error {
	if i < 0 || i >= len(d.Rules) {
		return fmt.Errorf("%w: %d", ErrIndex, i)
	}
	r := &d.Rules[i]
	switch field {
	case FieldIndicator:
		r.Indicator = Indicator(value)
	case FieldOperator:
		r.Operator = ParseOperator(value)
	case FieldValue:
		r.Value = value
	case FieldLogicalOperator:
		r.LogicalOperator = Logical(strings.ToUpper(value))
	case FieldAction:
		r.Action = Action(strings.ToUpper(value))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// Clone — независимая копия, чтобы форма не правила сохранённый черновик.
func (d *Draft) Clone() *Draft {
	out := *d
	out.Rules = append([]Rule(nil), d.Rules...)
	return &out
}
