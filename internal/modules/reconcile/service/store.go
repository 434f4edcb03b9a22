package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"trade_desk/internal/models"
	"trade_desk/pkg/logger"
)

const (
	defaultMaxAlerts = 50
	inboxSize        = 256
	sinkBuffer       = 64
)

// AlertSink — куда уходят эскалации и алерты бэкенда (telegram, stdout).
// Вызывается вне цикла мержа, медленный sink стор не тормозит.
type AlertSink interface {
	Notify(ctx context.Context, a models.Alert) error
}

type Options struct {
	PollInterval  time.Duration
	StaleAfter    time.Duration // 0 → 2*PollInterval
	EscalateAfter int           // 0 → 3
	MaxAlerts     int           // 0 → 50
	Now           func() time.Time
}

// Store — единственный владелец канонического состояния.
// Все входы (push, poll, тики staleness) идут через один канал и мержатся по одному.
type Store struct {
	opts Options
	sink AlertSink

	inbox chan func()
	done  chan struct{}
	alive atomic.Bool

	cur  atomic.Pointer[models.Snapshot]
	subs *subscribers

	// дальше — только из горутины цикла
	state      models.Snapshot
	lastSignal time.Time
	escalated  bool

	alerts chan models.Alert
}

func NewStore(opts Options, sink AlertSink) *Store {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 2 * opts.PollInterval
	}
	if opts.EscalateAfter <= 0 {
		opts.EscalateAfter = 3
	}
	if opts.MaxAlerts <= 0 {
		opts.MaxAlerts = defaultMaxAlerts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{
		opts:   opts,
		sink:   sink,
		inbox:  make(chan func(), inboxSize),
		done:   make(chan struct{}),
		subs:   &subscribers{m: map[uint64]func(models.Snapshot){}},
		alerts: make(chan models.Alert, sinkBuffer),
	}
	s.publish(initialSnapshot())
	return s
}

func initialSnapshot() models.Snapshot {
	return models.Snapshot{
		Positions: models.PositionSet{},
		Stream:    models.StreamStatus{State: models.StreamUnknown},
	}
}

// Snapshot — последний опубликованный снапшот (копия), можно звать из любой горутины.
func (s *Store) Snapshot() models.Snapshot {
	return s.cur.Load().Clone()
}

// Subscribe регистрирует подписчика. Вызовы идут синхронно из цикла стора в порядке выпуска снапшотов.
func (s *Store) Subscribe(fn func(models.Snapshot)) (dispose func()) {
	return s.subs.add(fn)
}

func (s *Store) Apply(src models.Source, upd models.Update) {
	s.enqueue(func() { s.apply(src, upd) })
}

func (s *Store) RecordPollFailure(err error) {
	s.enqueue(func() { s.pollFailed(err) })
}

func (s *Store) RecordPollSuccess() {
	s.enqueue(s.pollSucceeded)
}

func (s *Store) CheckStaleness() {
	s.enqueue(s.checkStaleness)
}

// Reset возвращает стор в начальное состояние (при выходе оператора).
func (s *Store) Reset() {
	s.enqueue(func() {
		seq := s.state.Seq
		s.resetState()
		s.state.Seq = seq
		s.commit(initialSnapshot())
	})
}

// Flush ждёт, пока всё поставленное раньше будет обработано.
func (s *Store) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	if !s.enqueue(func() { close(ack) }) {
		return fmt.Errorf("store stopped")
	}
	select {
	case <-ack:
		return nil
	case <-s.done:
		return fmt.Errorf("store stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) enqueue(op func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.inbox <- op:
		return true
	case <-s.done:
		return false
	}
}

// Run крутит цикл до отмены ctx. На выходе подписчики снимаются, состояние сбрасывается без уведомлений.
func (s *Store) Run(ctx context.Context) {
	if !s.alive.CompareAndSwap(false, true) {
		logger.Warn("reconcile store: Run called twice")
		return
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.forwardAlerts(ctx)
	}()

	tick := time.NewTicker(staleTick(s.opts.StaleAfter))
	defer tick.Stop()

	defer func() {
		close(s.done)
		s.subs.clear()
		s.resetState()
		s.cur.Store(ptr(initialSnapshot()))
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case op := <-s.inbox:
			op()
		case <-tick.C:
			s.checkStaleness()
		}
	}
}

func staleTick(staleAfter time.Duration) time.Duration {
	d := staleAfter / 4
	if d < time.Second {
		d = time.Second
	}
	return d
}

func (s *Store) apply(src models.Source, upd models.Update) {
	if upd.Empty() {
		return
	}
	now := s.opts.Now()
	for i := range upd.Alerts {
		if upd.Alerts[i].Source == "" {
			upd.Alerts[i].Source = src
		}
		if upd.Alerts[i].At.IsZero() {
			upd.Alerts[i].At = now
		}
	}
	// push-бандл без status тоже считается сигналом
	if upd.Stream != nil || src == models.SourcePush {
		s.lastSignal = now
	}
	next := Merge(s.state, upd, now, s.opts.MaxAlerts)
	s.commit(next)
	for _, a := range upd.Alerts {
		s.forward(a)
	}
}

func (s *Store) pollFailed(err error) {
	now := s.opts.Now()
	next := s.state.Clone()
	next.Poll.ConsecutiveFailures++
	next.Poll.LastErrorAt = now
	if err != nil {
		next.Poll.LastError = err.Error()
	}
	next.UpdatedAt = now

	var raised *models.Alert
	if next.Poll.ConsecutiveFailures >= s.opts.EscalateAfter && !s.escalated {
		s.escalated = true
		next.Poll.Escalated = true
		raised = &models.Alert{
			Level:   models.AlertCritical,
			Message: fmt.Sprintf("poll failed %d times in a row: %s", next.Poll.ConsecutiveFailures, next.Poll.LastError),
			Source:  models.SourcePoll,
			At:      now,
		}
		next.Alerts = appendAlerts(next.Alerts, s.opts.MaxAlerts, *raised)
	}
	logger.Warn("poll failed (%d in a row): %v", next.Poll.ConsecutiveFailures, err)

	s.commit(next)
	if raised != nil {
		s.forward(*raised)
	}
}

func (s *Store) pollSucceeded() {
	now := s.opts.Now()
	prev := s.state.Poll
	next := s.state.Clone()
	next.Poll = models.PollHealth{LastSuccess: now}
	next.UpdatedAt = now

	var recovered *models.Alert
	if s.escalated {
		s.escalated = false
		recovered = &models.Alert{
			Level:   models.AlertInfo,
			Message: fmt.Sprintf("poll recovered after %d failures", prev.ConsecutiveFailures),
			Source:  models.SourcePoll,
			At:      now,
		}
		next.Alerts = appendAlerts(next.Alerts, s.opts.MaxAlerts, *recovered)
	}

	s.commit(next)
	if recovered != nil {
		s.forward(*recovered)
	}
}

func (s *Store) checkStaleness() {
	st := s.state.Stream
	if st.State == models.StreamUnknown {
		return
	}
	now := s.opts.Now()
	last := s.lastSignal
	if last.IsZero() {
		last = st.LastUpdate
	}
	if now.Sub(last) < s.opts.StaleAfter {
		return
	}
	next := s.state.Clone()
	next.Stream.State = models.StreamUnknown
	next.Stream.Stale = true
	next.UpdatedAt = now
	logger.Info("stream status stale: no signal since %s", last.Format(time.RFC3339))
	s.commit(next)
}

// commit публикует снапшот и синхронно раздаёт его подписчикам.
func (s *Store) commit(next models.Snapshot) {
	next.Seq = s.state.Seq + 1
	s.state = next
	s.publish(next)
	s.subs.notify(next)
}

func (s *Store) publish(snap models.Snapshot) {
	s.cur.Store(ptr(snap.Clone()))
}

func (s *Store) resetState() {
	s.state = initialSnapshot()
	s.lastSignal = time.Time{}
	s.escalated = false
}

func (s *Store) forward(a models.Alert) {
	if s.sink == nil {
		return
	}
	select {
	case s.alerts <- a:
	default:
		logger.Warn("alert sink is lagging, dropped: %s", a.Message)
	}
}

func (s *Store) forwardAlerts(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-s.alerts:
			if err := s.sink.Notify(ctx, a); err != nil {
				logger.Error("alert sink: %v", err)
			}
		}
	}
}

func ptr[T any](v T) *T { return &v }

type subscribers struct {
	mu   sync.Mutex
	next uint64
	m    map[uint64]func(models.Snapshot)
}

func (s *subscribers) add(fn func(models.Snapshot)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.m[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.m, id)
			s.mu.Unlock()
		})
	}
}

// notify зовёт подписчиков в порядке регистрации, каждому своя копия.
func (s *subscribers) notify(snap models.Snapshot) {
	s.mu.Lock()
	ids := make([]uint64, 0, len(s.m))
	for id := range s.m {
		ids = append(ids, id)
	}
	fns := make([]func(models.Snapshot), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, s.m[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap.Clone())
	}
}

func (s *subscribers) clear() {
	s.mu.Lock()
	s.m = map[uint64]func(models.Snapshot){}
	s.mu.Unlock()
}
