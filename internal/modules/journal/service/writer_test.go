package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"trade_desk/internal/models"
)

type memRecorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (m *memRecorder) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memRecorder) Recent(context.Context, int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...), nil
}

func kinds(entries []Entry) []Kind {
	out := make([]Kind, len(entries))
	for i, e := range entries {
		out[i] = e.Kind
	}
	return out
}

func TestDiff(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	a1 := models.Alert{Level: models.AlertWarning, Message: "a1", At: t0}
	a2 := models.Alert{Level: models.AlertCritical, Message: "a2", At: t0.Add(time.Second)}

	tests := []struct {
		name string
		prev models.Snapshot
		next models.Snapshot
		want []Kind
	}{
		{
			name: "nothing changed",
			prev: models.Snapshot{Alerts: []models.Alert{a1}},
			next: models.Snapshot{Alerts: []models.Alert{a1}},
		},
		{
			name: "stream flip",
			prev: models.Snapshot{Stream: models.StreamStatus{State: models.StreamActive}},
			next: models.Snapshot{Stream: models.StreamStatus{State: models.StreamUnknown, Stale: true}},
			want: []Kind{KindStream},
		},
		{
			name: "escalation with its alert",
			prev: models.Snapshot{Poll: models.PollHealth{ConsecutiveFailures: 2}},
			next: models.Snapshot{Poll: models.PollHealth{ConsecutiveFailures: 3, Escalated: true}, Alerts: []models.Alert{a2}},
			want: []Kind{KindEscalation, KindAlert},
		},
		{
			name: "recovery",
			prev: models.Snapshot{Poll: models.PollHealth{Escalated: true}},
			next: models.Snapshot{},
			want: []Kind{KindRecovery},
		},
		{
			name: "only new alerts",
			prev: models.Snapshot{Alerts: []models.Alert{a1}},
			next: models.Snapshot{Alerts: []models.Alert{a1, a2}},
			want: []Kind{KindAlert},
		},
		{
			name: "reset drops alerts silently",
			prev: models.Snapshot{Alerts: []models.Alert{a1, a2}},
			next: models.Snapshot{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := kinds(Diff(tt.prev, tt.next))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestWriter_RecordsInBackground(t *testing.T) {
	rec := &memRecorder{}
	w := NewWriter(rec)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	w.Observe(models.Snapshot{Stream: models.StreamStatus{State: models.StreamActive}})
	w.Observe(models.Snapshot{Stream: models.StreamStatus{State: models.StreamInactive}})
	w.Observe(models.Snapshot{Stream: models.StreamStatus{State: models.StreamInactive}})

	cancel()
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("writer did not stop")
	}

	got, _ := rec.Recent(context.Background(), 10)
	if len(got) != 2 {
		t.Fatalf("entries = %+v", got)
	}
	if got[1].Message != "stream Active -> Inactive" || got[0].ID == got[1].ID {
		t.Fatalf("entries = %+v", got)
	}
}

func TestNoop(t *testing.T) {
	var r Recorder = Noop{}
	if err := r.Record(context.Background(), Entry{}); err != nil {
		t.Fatal(err)
	}
	list, err := r.Recent(context.Background(), 5)
	if err != nil || list == nil {
		t.Fatalf("list = %v, err = %v", list, err)
	}
}
