package domain

import (
	"fmt"
	"time"
)

// LogEntry is one classified line of engine output. Entries are never modified after creation.
type LogEntry struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Message         string    `json:"message"`
	IsError         bool      `json:"is_error"`
	IsCommunication bool      `json:"is_communication"`
}

type StatusKind int

const (
	StatusNotStarted StatusKind = iota
	StatusStarting
	StatusReady
	StatusReporting
	StatusError
)

var statusNames = []string{"not_started", "starting", "ready", "reporting", "error"}

func (k StatusKind) String() string {
	if k >= 0 && int(k) < len(statusNames) {
		return statusNames[k]
	}
	return "unknown"
}

func (k StatusKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *StatusKind) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*k = StatusKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", text)
}

// EngineStatus is the human readable engine state plus the ready latch.
type EngineStatus struct {
	Kind  StatusKind `json:"kind"`
	Text  string     `json:"text"`
	Ready bool       `json:"ready"`
}

// HistoryPoint is a single archived evaluation, always in the Black perspective.
type HistoryPoint struct {
	MoveNumber int     `json:"move_number"`
	Winrate    float64 `json:"winrate"`
	ScoreLead  float64 `json:"score_lead"`
}

// AnalysisRecord is a final analysis kept in the archive.
type AnalysisRecord struct {
	QueryID    string         `json:"query_id" bson:"query_id"`
	GameID     string         `json:"game_id" bson:"game_id"`
	NodeID     string         `json:"node_id" bson:"node_id"`
	MoveNumber int            `json:"move_number" bson:"move_number"`
	ToMove     Color          `json:"to_move" bson:"to_move"`
	Result     AnalysisResult `json:"result" bson:"result"`
	CreatedAt  time.Time      `json:"created_at" bson:"created_at"`
}
