package models

import "time"

type AlertLevel string

const (
	AlertInfo     AlertLevel = "info"
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// Alert — сообщение оператору (баннер/уведомление), никогда не блокирует.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Message string     `json:"message"`
	Source  Source     `json:"source"`
	At      time.Time  `json:"at"`
}
