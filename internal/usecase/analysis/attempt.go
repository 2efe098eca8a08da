package analysis

import (
	"context"
	"fmt"

	"live_analysis/internal/domain"
)

type AttemptState int

const (
	StateIdle AttemptState = iota
	StateDebouncing
	StateSubmitted
	StatePolling
	StateAccepted
	StateStaleDiscarded
	StateExhausted
	StateCanceled
	StateFailed
)

var stateNames = map[AttemptState]string{
	StateIdle:           "idle",
	StateDebouncing:     "debouncing",
	StateSubmitted:      "submitted",
	StatePolling:        "polling",
	StateAccepted:       "accepted",
	StateStaleDiscarded: "stale_discarded",
	StateExhausted:      "exhausted",
	StateCanceled:       "canceled",
	StateFailed:         "failed",
}

func (s AttemptState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s AttemptState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *AttemptState) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown attempt state %q", text)
}

// Terminal reports whether the attempt goroutine has nothing left to do.
func (s AttemptState) Terminal() bool {
	return s == StateExhausted || s == StateCanceled || s == StateFailed
}

// attempt is one debounce firing: a frozen position and settings, and the query built from them.
type attempt struct {
	seq      uint64
	pos      domain.Position
	settings domain.AnalysisSettings
	queryID  string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	state AttemptState // guarded by Coordinator.mu
}
