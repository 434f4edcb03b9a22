package service

import (
	"time"

	"trade_desk/internal/models"
)

// Merge накатывает update на prev и возвращает новый снапшот; prev не меняется.
// Группы независимы: чего нет в update — остаётся как было. Источник не важен, побеждает последний.
func Merge(prev models.Snapshot, upd models.Update, at time.Time, maxAlerts int) models.Snapshot {
	next := prev.Clone()

	if upd.Account != nil && !upd.Account.Empty() {
		var base models.AccountSnapshot
		if next.Account != nil {
			base = *next.Account
		}
		acc := upd.Account.Apply(base)
		if upd.Account.LastUpdated == nil {
			acc.LastUpdated = at
		}
		next.Account = &acc
	}

	// набор позиций меняем целиком, чтобы не показывать строки разной свежести
	if upd.Positions != nil {
		next.Positions = upd.Positions.Clone()
	}

	if upd.Orders != nil {
		next.Orders = MergeOrders(next.Orders, upd.Orders)
	}

	if upd.Stream != nil {
		next.Stream = applyStream(next.Stream, *upd.Stream)
	}

	if len(upd.Alerts) > 0 {
		next.Alerts = appendAlerts(next.Alerts, maxAlerts, upd.Alerts...)
	}

	next.UpdatedAt = at
	return next
}

func applyStream(cur models.StreamStatus, p models.StreamPatch) models.StreamStatus {
	out := cur
	if p.State != nil {
		out.State = *p.State
	}
	if !p.LastUpdate.IsZero() {
		out.LastUpdate = p.LastUpdate
	}
	out.Stale = false
	return out
}

// MergeOrders: известный orderId заменяется на месте (смена статуса), новый — в начало.
// Входящая пачка считается отсортированной от свежих к старым, как отдаёт recent-trades.
// Ничего не удаляем.
func MergeOrders(cur, incoming []models.Order) []models.Order {
	out := append([]models.Order(nil), cur...)
	idx := make(map[string]int, len(out))
	for i, o := range out {
		idx[o.OrderID] = i
	}

	// идём с конца: самый старый новый ордер добавляется первым и окажется ниже свежих
	var fresh []models.Order
	freshIdx := make(map[string]int)
	for i := len(incoming) - 1; i >= 0; i-- {
		o := incoming[i]
		if j, ok := idx[o.OrderID]; ok {
			out[j] = o
			continue
		}
		if j, ok := freshIdx[o.OrderID]; ok {
			fresh[j] = o
			continue
		}
		freshIdx[o.OrderID] = len(fresh)
		fresh = append(fresh, o)
	}
	if len(fresh) == 0 {
		return out
	}

	res := make([]models.Order, 0, len(fresh)+len(out))
	for i := len(fresh) - 1; i >= 0; i-- {
		res = append(res, fresh[i])
	}
	return append(res, out...)
}

func appendAlerts(cur []models.Alert, max int, add ...models.Alert) []models.Alert {
	out := append(append([]models.Alert(nil), cur...), add...)
	if max > 0 && len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}
