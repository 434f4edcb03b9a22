package models

// Position — открытая позиция по одному тикеру.
type Position struct {
	Symbol              string  `json:"symbol"`
	Quantity            float64 `json:"quantity"`
	AvgEntryPrice       float64 `json:"avg_entry_price"`
	CurrentPrice        float64 `json:"current_price"`
	MarketValue         float64 `json:"market_value"`
	UnrealizedPL        float64 `json:"unrealized_pl"`
	UnrealizedPLPercent float64 `json:"unrealized_pl_percent"`
}

// PositionSet — позиции по символу. Заменяется целиком за цикл, по символам не мержим.
type PositionSet map[string]Position

func (s PositionSet) Clone() PositionSet {
	if s == nil {
		return nil
	}
	out := make(PositionSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
