package service

import (
	"sync/atomic"
	"time"

	"trade_desk/internal/models"
)

// State — то, что нужно пробам, без похода в стор.
type State struct {
	ready     atomic.Bool
	startedAt time.Time

	streamState  atomic.Int32
	lastSignal   atomic.Int64 // unix seconds
	pollFailures atomic.Int32
}

func NewState() *State {
	return &State{startedAt: time.Now()}
}

// Observe — подписчик стора. Готовы после первого известного статуса или первого удачного опроса.
func (s *State) Observe(snap models.Snapshot) {
	s.streamState.Store(int32(snap.Stream.State))
	if !snap.Stream.LastUpdate.IsZero() {
		s.lastSignal.Store(snap.Stream.LastUpdate.Unix())
	}
	s.pollFailures.Store(int32(snap.Poll.ConsecutiveFailures))
	if snap.Stream.State != models.StreamUnknown || !snap.Poll.LastSuccess.IsZero() {
		s.ready.Store(true)
	}
}

func (s *State) Ready() bool { return s.ready.Load() }

func (s *State) StreamState() models.StreamState { return models.StreamState(s.streamState.Load()) }

func (s *State) LastSignal() time.Time {
	u := s.lastSignal.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) PollFailures() int { return int(s.pollFailures.Load()) }

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
