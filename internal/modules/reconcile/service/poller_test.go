package service

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"trade_desk/internal/models"
	transport "trade_desk/internal/modules/transport/service"
)

type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	calls  map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies: map[string]string{
			ResourceAccount:    `{"balance": 1500.25, "cash_available": 300, "strategy_status": "Active"}`,
			ResourcePositions:  `{"positions": [{"symbol": "MSFT", "quantity": 4, "current_price": 410.5}]}`,
			ResourceTrades:     `{"trades": [{"order_id": "b", "symbol": "MSFT", "side": "buy"}, {"order_id": "a", "symbol": "AAPL", "side": "sell"}]}`,
			ResourceDataStatus: `{"status": "Active", "last_update": "2024-05-01T09:59:30Z"}`,
		},
		errs:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeFetcher) Poll(_ context.Context, resource string, _ url.Values) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[resource]++
	if err := f.errs[resource]; err != nil {
		return nil, err
	}
	return []byte(f.bodies[resource]), nil
}

func TestPoller_CycleSuccess(t *testing.T) {
	s, _ := startStore(t, nil)
	p := NewPoller(newFakeFetcher(), s, time.Minute)

	if err := p.Cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	flush(t, s)

	snap := s.Snapshot()
	if snap.Account == nil || snap.Account.Balance != 1500.25 || snap.Account.StrategyStatus != models.StrategyActive {
		t.Fatalf("account = %+v", snap.Account)
	}
	if len(snap.Positions) != 1 {
		t.Fatalf("positions = %v", snap.Positions)
	}
	if len(snap.Orders) != 2 || snap.Orders[0].OrderID != "b" {
		t.Fatalf("orders = %+v", snap.Orders)
	}
	if snap.Stream.State != models.StreamActive {
		t.Fatalf("stream = %+v", snap.Stream)
	}
	if snap.Poll.LastSuccess.IsZero() || snap.Poll.ConsecutiveFailures != 0 {
		t.Fatalf("poll = %+v", snap.Poll)
	}
}

func TestPoller_PartialFailure(t *testing.T) {
	s, _ := startStore(t, nil)
	f := newFakeFetcher()
	f.errs[ResourcePositions] = transport.NewServerError(ResourcePositions, 500, "boom")
	p := NewPoller(f, s, time.Minute)

	err := p.Cycle(context.Background())
	if transport.KindOf(err) != transport.KindServerError {
		t.Fatalf("err = %v, want server error", err)
	}
	flush(t, s)

	snap := s.Snapshot()
	if snap.Account == nil || snap.Account.Balance != 1500.25 {
		t.Fatalf("account not merged: %+v", snap.Account)
	}
	if len(snap.Positions) != 0 {
		t.Fatalf("positions = %v", snap.Positions)
	}
	if snap.Poll.ConsecutiveFailures != 1 || snap.Poll.LastError == "" {
		t.Fatalf("poll = %+v", snap.Poll)
	}
}

func TestPoller_DecodeError(t *testing.T) {
	s, _ := startStore(t, nil)
	f := newFakeFetcher()
	f.bodies[ResourceTrades] = `{"trades": [{"symbol": "AAPL"}]}`
	p := NewPoller(f, s, time.Minute)

	err := p.Cycle(context.Background())
	if transport.KindOf(err) != transport.KindDecode {
		t.Fatalf("err = %v, want decode", err)
	}
}

func TestPoller_ThreeFailuresEscalateAndKeepPolling(t *testing.T) {
	sink := newSinkRecorder()
	s, _ := startStore(t, sink)
	f := newFakeFetcher()
	p := NewPoller(f, s, time.Minute)

	if err := p.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	for r := range f.bodies {
		f.errs[r] = transport.NewNetworkError(r, errors.New("timeout"))
	}
	for i := 0; i < 3; i++ {
		_ = p.Cycle(context.Background())
	}
	flush(t, s)

	snap := s.Snapshot()
	if !snap.Poll.Escalated {
		t.Fatalf("poll = %+v", snap.Poll)
	}
	if snap.Account == nil || snap.Account.Balance != 1500.25 {
		t.Fatal("state lost after failures")
	}
	if a := sink.next(t); a.Level != models.AlertCritical {
		t.Fatalf("alert = %+v", a)
	}
	if f.calls[ResourceAccount] != 4 {
		t.Fatalf("account polled %d times", f.calls[ResourceAccount])
	}
}

func TestPoller_StartStop(t *testing.T) {
	s, _ := startStore(t, nil)
	f := newFakeFetcher()
	p := NewPoller(f, s, time.Minute)

	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	p.Stop()
	p.Stop()
}
