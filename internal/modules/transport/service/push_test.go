package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestPushSubscribe_OrderAndDispose(t *testing.T) {
	p := NewPushWith("ws://unused", time.Second, time.Second)

	var got []string
	d1 := p.Subscribe("update", func(Message) { got = append(got, "first") })
	d2 := p.Subscribe("update", func(Message) { got = append(got, "second") })
	d3 := p.Subscribe("update", func(Message) { got = append(got, "third") })

	p.dispatch(Message{Event: "update"})
	if strings.Join(got, ",") != "first,second,third" {
		t.Fatalf("handlers out of subscription order: %v", got)
	}

	got = nil
	d2()
	d2() // повторный вызов безопасен
	p.dispatch(Message{Event: "update"})
	if strings.Join(got, ",") != "first,third" {
		t.Fatalf("unexpected handlers after dispose: %v", got)
	}

	d1()
	d3()
	if n := p.Subscribers("update"); n != 0 {
		t.Errorf("expected no subscribers left, got %d", n)
	}
}

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		event   string
		data    string
		wantErr bool
	}{
		{name: "object", raw: `{"event": "alert", "data": {"message": "hi"}}`, event: "alert", data: `{"message": "hi"}`},
		{name: "socketio array", raw: `["data_status", {"status": "active"}]`, event: "data_status", data: `{"status": "active"}`},
		{name: "no event", raw: `{"data": {}}`, wantErr: true},
		{name: "reserved", raw: `{"event": "disconnected"}`, wantErr: true},
		{name: "garbage", raw: `nope`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := decodeFrame([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if msg.Event != tt.event || string(msg.Data) != tt.data {
				t.Errorf("got %q %s", msg.Event, msg.Data)
			}
		})
	}
}

func TestPushRun_DeliversAndSignalsDisconnect(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event": "update", "data": {"balance": 1}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event": "update", "data": {"balance": 2}}`))
		// рвём соединение — адаптер должен отдать disconnected
		_ = conn.Close()
	}))
	defer srv.Close()

	p := NewPushWith("ws"+strings.TrimPrefix(srv.URL, "http"), time.Second, time.Second)

	var mu sync.Mutex
	var events []string
	record := func(m Message) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, m.Event+":"+string(m.Data))
	}
	disconnected := make(chan struct{}, 1)
	defer p.Subscribe(EventConnected, record)()
	defer p.Subscribe("update", record)()
	defer p.Subscribe(EventDisconnected, func(m Message) {
		record(Message{Event: m.Event})
		select {
		case disconnected <- struct{}{}:
		default:
		}
	})()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()

	select {
	case <-disconnected:
	case <-time.After(5 * time.Second):
		t.Fatal("no disconnected event")
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	want := []string{"connected:", `update:{"balance": 1}`, `update:{"balance": 2}`, "disconnected:"}
	if len(events) < len(want) {
		t.Fatalf("expected at least %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d: expected %q, got %q (all: %v)", i, want[i], events[i], events)
		}
	}
}
