package service

import (
	"fmt"
	"strings"
	"time"

	"trade_desk/internal/models"
)

func levelEmoji(l models.AlertLevel) string {
	switch l {
	case models.AlertCritical:
		return "🚨"
	case models.AlertWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

func FormatAlert(a models.Alert) string {
	at := ""
	if !a.At.IsZero() {
		at = " " + a.At.UTC().Format("15:04:05")
	}
	return fmt.Sprintf("%s [%s/%s]%s %s", levelEmoji(a.Level), a.Level, a.Source, at, a.Message)
}

// FormatStatus — короткая сводка по счёту и состоянию каналов.
func FormatStatus(s models.Snapshot) string {
	var b strings.Builder
	b.WriteString("📊 Статус\n")
	if s.Account == nil {
		b.WriteString("Счёт: нет данных\n")
	} else {
		a := s.Account
		fmt.Fprintf(&b, "Баланс: %.2f\nСвободно: %.2f\nПортфель: %.2f\nСегодня: %+.2f (%+.2f%%)\nСтратегия: %s\n",
			a.Balance, a.CashAvailable, a.PortfolioValue, a.TodayPnL, a.TodayReturnPct, a.StrategyStatus)
	}

	stream := s.Stream.State.String()
	if s.Stream.Stale {
		stream += " (нет сигналов)"
	}
	fmt.Fprintf(&b, "Поток данных: %s\n", stream)
	if !s.Stream.LastUpdate.IsZero() {
		fmt.Fprintf(&b, "Последнее обновление: %s\n", s.Stream.LastUpdate.UTC().Format(time.RFC3339))
	}
	if s.Poll.ConsecutiveFailures > 0 {
		fmt.Fprintf(&b, "❗️ Опрос падает %d раз подряд: %s\n", s.Poll.ConsecutiveFailures, s.Poll.LastError)
	}
	fmt.Fprintf(&b, "Позиций: %d, ордеров: %d", len(s.Positions), len(s.Orders))
	return b.String()
}

func FormatPositions(set models.PositionSet) string {
	if len(set) == 0 {
		return "📭 Открытых позиций нет"
	}
	var b strings.Builder
	b.WriteString("📊 Открытые позиции:\n")
	for _, sym := range positionSymbols(set) {
		p := set[sym]
		fmt.Fprintf(&b, "- %s qty=%.4f @ %.4f now=%.4f P/L=%+.2f (%+.2f%%)\n",
			p.Symbol, p.Quantity, p.AvgEntryPrice, p.CurrentPrice, p.UnrealizedPL, p.UnrealizedPLPercent)
	}
	return strings.TrimRight(b.String(), "\n")
}
