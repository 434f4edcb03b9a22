package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"trade_desk/internal/models"
	"trade_desk/pkg/logger"
)

const writerBuffer = 128

// Writer превращает переходы состояния в записи журнала и пишет их в фоне.
// Подписчик стора только кладёт в канал, I/O идёт в своей горутине.
type Writer struct {
	rec Recorder

	mu   sync.Mutex
	prev models.Snapshot

	entries chan Entry
	done    chan struct{}
}

func NewWriter(rec Recorder) *Writer {
	return &Writer{
		rec:     rec,
		entries: make(chan Entry, writerBuffer),
		done:    make(chan struct{}),
	}
}

// Observe — колбэк подписки на стор.
func (w *Writer) Observe(next models.Snapshot) {
	w.mu.Lock()
	entries := Diff(w.prev, next)
	w.prev = next
	w.mu.Unlock()

	for _, e := range entries {
		select {
		case w.entries <- e:
		default:
			logger.Warn("journal is lagging, dropped %s entry: %s", e.Kind, e.Message)
		}
	}
}

// Run пишет записи, пока не отменят ctx; остаток в буфере дописывается.
func (w *Writer) Run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case e := <-w.entries:
			w.write(ctx, e)
		case <-ctx.Done():
			for {
				select {
				case e := <-w.entries:
					w.write(context.Background(), e)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) Done() <-chan struct{} { return w.done }

func (w *Writer) write(ctx context.Context, e Entry) {
	if err := w.rec.Record(ctx, e); err != nil {
		logger.Error("journal: %v", err)
	}
}

// Diff — что изменилось между двумя снапшотами с точки зрения журнала.
func Diff(prev, next models.Snapshot) []Entry {
	var out []Entry
	at := next.UpdatedAt

	if prev.Stream.State != next.Stream.State {
		out = append(out, newEntry(at, KindStream, "",
			fmt.Sprintf("stream %s -> %s", prev.Stream.State, next.Stream.State),
			map[string]any{"from": prev.Stream.State.String(), "to": next.Stream.State.String(), "stale": next.Stream.Stale}))
	}

	if !prev.Poll.Escalated && next.Poll.Escalated {
		out = append(out, newEntry(at, KindEscalation, string(models.AlertCritical),
			fmt.Sprintf("poll escalated after %d failures", next.Poll.ConsecutiveFailures),
			map[string]any{"failures": next.Poll.ConsecutiveFailures, "last_error": next.Poll.LastError}))
	}
	if prev.Poll.Escalated && !next.Poll.Escalated {
		out = append(out, newEntry(at, KindRecovery, string(models.AlertInfo), "poll recovered", nil))
	}

	for _, a := range newAlerts(prev.Alerts, next.Alerts) {
		out = append(out, newEntry(a.At, KindAlert, string(a.Level), a.Message,
			map[string]any{"source": string(a.Source)}))
	}
	return out
}

// newAlerts: список алертов только растёт и обрезается спереди,
// поэтому новые — всё, что после последнего известного.
func newAlerts(prev, next []models.Alert) []models.Alert {
	if len(prev) == 0 {
		return next
	}
	last := prev[len(prev)-1]
	for i := len(next) - 1; i >= 0; i-- {
		if next[i] == last {
			return next[i+1:]
		}
	}
	if len(next) < len(prev) {
		return nil // сброс
	}
	return next
}

func newEntry(at time.Time, kind Kind, level, msg string, payload map[string]any) Entry {
	if at.IsZero() {
		at = time.Now()
	}
	return Entry{ID: uuid.New(), At: at.UTC(), Kind: kind, Level: level, Message: msg, Payload: payload}
}
