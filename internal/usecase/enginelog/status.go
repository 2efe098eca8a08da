package enginelog

import (
	"strings"

	"live_analysis/internal/domain"
)

// StatusMachine derives the engine status from classified log lines.
//
// Triggers are evaluated in priority order:
//  1. ready marker: latch ready and announce start, only the first time
//  2. progress marker: show the line and latch ready
//  3. any plain line once ready: show the line
//  4. error line: show it with the error prefix
//
// The ready latch only resets when the session stops.
type StatusMachine struct {
	markers   Markers
	status    domain.EngineStatus
	announced bool
}

func NewStatusMachine(markers Markers) *StatusMachine {
	s := &StatusMachine{markers: markers}
	s.Stopped()
	return s
}

func (s *StatusMachine) Status() domain.EngineStatus {
	return s.status
}

func (s *StatusMachine) Starting() {
	if s.status.Ready {
		return
	}
	s.status = domain.EngineStatus{Kind: domain.StatusStarting, Text: s.markers.StartingText}
}

func (s *StatusMachine) Stopped() {
	s.announced = false
	s.status = domain.EngineStatus{Kind: domain.StatusNotStarted, Text: s.markers.NotStartedText}
}

// Fail shows a session level error. The ready latch is kept.
func (s *StatusMachine) Fail(message string) {
	s.status.Kind = domain.StatusError
	s.status.Text = s.markers.ErrorPrefix + message
}

// Observe applies one line and reports whether the status changed.
func (s *StatusMachine) Observe(line Line) bool {
	before := s.status

	switch {
	case s.markers.Ready != "" && strings.Contains(line.Text, s.markers.Ready):
		if s.announced {
			return false
		}
		s.announced = true
		s.status = domain.EngineStatus{Kind: domain.StatusReady, Text: s.markers.StartedText, Ready: true}
	case s.markers.Progress != "" && strings.Contains(line.Text, s.markers.Progress):
		s.status = domain.EngineStatus{Kind: domain.StatusReporting, Text: line.Text, Ready: true}
	case s.status.Ready && !line.IsCommunication && !line.IsError:
		s.status = domain.EngineStatus{Kind: domain.StatusReporting, Text: line.Text, Ready: true}
	case line.IsError:
		s.status = domain.EngineStatus{Kind: domain.StatusError, Text: s.markers.ErrorPrefix + line.Text, Ready: s.status.Ready}
	}

	return s.status != before
}
