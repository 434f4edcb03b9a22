package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
	"trade_desk/internal/modules/config"
	"trade_desk/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// Синтетические события адаптера: сервер их не шлёт.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
)

// Message — одно событие push-канала. Data — сырой JSON, разбирает подписчик.
type Message struct {
	Event string
	Data  []byte
	At    time.Time
}

type Handler func(Message)

type subscription struct {
	id uint64
	h  Handler
}

// Push — push-канал поверх одного websocket-соединения с переподключением.
type Push struct {
	url          string
	dialer       *websocket.Dialer
	pingInterval time.Duration
	maxBackoff   time.Duration
	now          func() time.Time

	mu     sync.Mutex
	subs   map[string][]subscription
	nextID uint64
	up     bool

	// хендлеры не должны выполняться параллельно: кадры и синтетические события идут по одному
	dispatchMu sync.Mutex
}

func NewPush(cfg *config.Config) *Push {
	return NewPushWith(cfg.Backend.PushURL, cfg.Push.PingInterval, cfg.Push.MaxBackoff)
}

func NewPushWith(url string, pingInterval, maxBackoff time.Duration) *Push {
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	if maxBackoff <= 0 {
		maxBackoff = 10 * time.Second
	}
	return &Push{
		url:          url,
		dialer:       &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		pingInterval: pingInterval,
		maxBackoff:   maxBackoff,
		now:          time.Now,
		subs:         make(map[string][]subscription),
	}
}

// Subscribe регистрирует хендлер на событие. Хендлеры одного события вызываются в порядке подписки.
// Возвращённый dispose обязательно вызывать на teardown; повторный вызов безопасен.
func (p *Push) Subscribe(event string, h Handler) (dispose func()) {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.subs[event] = append(p.subs[event], subscription{id: id, h: h})
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			list := p.subs[event]
			for i, s := range list {
				if s.id == id {
					// копируем, чтобы не портить срез, который сейчас может обходить dispatch
					next := make([]subscription, 0, len(list)-1)
					next = append(next, list[:i]...)
					next = append(next, list[i+1:]...)
					p.subs[event] = next
					break
				}
			}
			if len(p.subs[event]) == 0 {
				delete(p.subs, event)
			}
		})
	}
}

// Subscribers — сколько хендлеров висит на событии (для проверки утечек).
func (p *Push) Subscribers(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs[event])
}

func (p *Push) dispatch(msg Message) {
	p.mu.Lock()
	handlers := p.subs[msg.Event]
	p.mu.Unlock()
	if len(handlers) == 0 {
		return
	}

	p.dispatchMu.Lock()
	defer p.dispatchMu.Unlock()
	for _, s := range handlers {
		s.h(msg)
	}
}

func (p *Push) markUp() {
	p.mu.Lock()
	p.up = true
	p.mu.Unlock()
	p.dispatch(Message{Event: EventConnected, At: p.now()})
}

// markDown шлёт disconnected один раз на каждый обрыв.
func (p *Push) markDown(reason error) {
	p.mu.Lock()
	wasUp := p.up
	p.up = false
	p.mu.Unlock()
	if !wasUp {
		return
	}
	var data []byte
	if reason != nil {
		data, _ = sonic.Marshal(map[string]string{"reason": reason.Error()})
	}
	p.dispatch(Message{Event: EventDisconnected, Data: data, At: p.now()})
}

// Run держит соединение до отмены ctx: dial -> read-loop -> disconnected -> backoff -> dial.
func (p *Push) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		logger.Info("[WS] connect %s", p.url)
		conn, _, err := p.dialer.DialContext(ctx, p.url, nil)
		if err != nil {
			attempt++
			logger.Warn("[WS] dial error (attempt %d): %v", attempt, err)
			p.markDown(err)
			if !sleepCtx(ctx, p.backoff(attempt)) {
				return
			}
			continue
		}
		attempt = 0
		p.markUp()

		err = p.readLoop(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("[WS] read error: %v", err)
		p.markDown(err)

		if !sleepCtx(ctx, time.Second) {
			return
		}
	}
}

func (p *Push) backoff(attempt int) time.Duration {
	d := time.Duration(attempt) * time.Second
	if d > p.maxBackoff {
		d = p.maxBackoff
	}
	return d
}

func (p *Push) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)

	readTimeout := 3 * p.pingInterval
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	// keepalive ping + закрытие соединения по ctx
	go func() {
		t := time.NewTicker(p.pingInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-stop:
				_ = conn.Close()
				return
			case <-t.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		msg, err := decodeFrame(raw)
		if err != nil {
			logger.Debug("[WS] skip frame: %v", err)
			continue
		}
		msg.At = p.now()
		p.dispatch(msg)
	}
}

// decodeFrame понимает {"event": "...", "data": {...}} и socket.io-шный ["event", {...}].
func decodeFrame(raw []byte) (Message, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Message{}, fmt.Errorf("empty frame")
	}

	if raw[0] == '[' {
		var parts []json.RawMessage
		if err := sonic.Unmarshal(raw, &parts); err != nil {
			return Message{}, err
		}
		if len(parts) == 0 {
			return Message{}, fmt.Errorf("empty event array")
		}
		var name string
		if err := sonic.Unmarshal(parts[0], &name); err != nil {
			return Message{}, fmt.Errorf("event name: %w", err)
		}
		msg := Message{Event: name}
		if len(parts) > 1 {
			msg.Data = parts[1]
		}
		return msg, validateEvent(msg)
	}

	var frame struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := sonic.Unmarshal(raw, &frame); err != nil {
		return Message{}, err
	}
	msg := Message{Event: frame.Event, Data: frame.Data}
	return msg, validateEvent(msg)
}

func validateEvent(msg Message) error {
	if msg.Event == "" {
		return fmt.Errorf("frame without event name")
	}
	if msg.Event == EventConnected || msg.Event == EventDisconnected {
		return fmt.Errorf("reserved event name %q", msg.Event)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
