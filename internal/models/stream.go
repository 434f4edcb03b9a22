package models

import (
	"fmt"
	"time"
)

type StreamState int

const (
	StreamUnknown StreamState = iota // пока ни один канал ничего не сказал
	StreamActive
	StreamInactive
)

func (s StreamState) String() string {
	switch s {
	case StreamActive:
		return "Active"
	case StreamInactive:
		return "Inactive"
	default:
		return "Unknown"
	}
}

func (s StreamState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *StreamState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Active":
		*s = StreamActive
	case "Inactive":
		*s = StreamInactive
	case "Unknown", "":
		*s = StreamUnknown
	default:
		return fmt.Errorf("unknown stream state %q", string(b))
	}
	return nil
}

// StreamStatus — состояние потока данных. LastUpdate нулевой, пока сигналов не было.
type StreamStatus struct {
	State      StreamState `json:"state"`
	LastUpdate time.Time   `json:"last_update"`
	Stale      bool        `json:"stale"` // Unknown выставлен таймером, а не сообщением
}

// StreamPatch — то, что канал сообщил о потоке. State nil — прислали только время.
type StreamPatch struct {
	State      *StreamState
	LastUpdate time.Time
}

func StreamStatePtr(s StreamState) *StreamState { return &s }
