package models

import "time"

// HistoryPoint — точка истории стоимости портфеля. Ряд идёт по возрастанию Date.
type HistoryPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}
