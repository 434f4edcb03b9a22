package rules

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v2"
)

// LoadDraft читает черновик из YAML. Валидацию не делает.
func LoadDraft(r io.Reader) (*Draft, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read draft: %w", err)
	}
	var d Draft
	if err := yaml.UnmarshalStrict(raw, &d); err != nil {
		return nil, fmt.Errorf("parse draft: %w", err)
	}
	for i := range d.Rules {
		d.Rules[i].Operator = ParseOperator(string(d.Rules[i].Operator))
	}
	return &d, nil
}

type submitBody struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Rules       []Rule  `json:"rules"`
	StopLoss    float64 `json:"stopLoss"`
	TakeProfit  float64 `json:"takeProfit"`
}

// MarshalSubmit — тело POST strategies.
func MarshalSubmit(d *Draft) ([]byte, error) {
	return sonic.Marshal(SubmitPayload(d))
}

// SubmitPayload — то же тело, но объектом, для клиентов, которые маршалят сами.
func SubmitPayload(d *Draft) any {
	return submitBody{
		Name:        d.Name,
		Description: d.Description,
		Rules:       d.Rules,
		StopLoss:    d.StopLossPct,
		TakeProfit:  d.TakeProfitPct,
	}
}
