package models

import "time"

// PollHealth — состояние опроса для баннера в UI.
type PollHealth struct {
	LastError           string    `json:"last_error,omitempty"`
	LastErrorAt         time.Time `json:"last_error_at"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Escalated           bool      `json:"escalated"`
	LastSuccess         time.Time `json:"last_success"`
}

// Snapshot — неизменяемый срез канонического состояния. Подписчики получают копию.
type Snapshot struct {
	Seq       uint64           `json:"seq"`
	Account   *AccountSnapshot `json:"account,omitempty"` // nil до первого успешного получения
	Positions PositionSet      `json:"positions"`
	Orders    []Order          `json:"orders"` // свежие первыми
	Stream    StreamStatus     `json:"stream"`
	Poll      PollHealth       `json:"poll"`
	Alerts    []Alert          `json:"alerts"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Clone — глубокая копия, чтобы никто не мог поправить состояние стора через срез/мапу.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Account != nil {
		acc := *s.Account
		out.Account = &acc
	}
	out.Positions = s.Positions.Clone()
	if s.Orders != nil {
		out.Orders = append([]Order(nil), s.Orders...)
	}
	if s.Alerts != nil {
		out.Alerts = append([]Alert(nil), s.Alerts...)
	}
	return out
}
