package analysis_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"live_analysis/internal/domain"
	errors2 "live_analysis/internal/errors"
)

type fakeSession struct {
	mu         sync.Mutex
	startErr   error
	analyzeErr error
	startCalls int
	stopped    bool
	payloads   []map[string]any
	logs       []string

	// answerTerminate makes the fake reply to a terminate like KataGo does: with a final
	// result for the terminated query.
	answerTerminate bool
	// terminateGate, when set, holds terminate requests until it is closed.
	terminateGate chan struct{}

	results chan domain.AnalysisResult
	errs    chan error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		results: make(chan domain.AnalysisResult, 16),
		errs:    make(chan error, 4),
	}
}

func (f *fakeSession) Start(_ context.Context, _ string, _ []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	return f.startErr
}

func (f *fakeSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeSession) Analyze(payload []byte) error {
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return err
	}
	terminate := m["action"] == "terminate"

	f.mu.Lock()
	gate := f.terminateGate
	f.mu.Unlock()
	if terminate && gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, m)
	if terminate && f.answerTerminate {
		id, _ := m["terminateId"].(string)
		f.results <- domain.AnalysisResult{ID: id, RootInfo: domain.RootInfo{Winrate: 0.1, Visits: 12}}
	}
	return f.analyzeErr
}

func (f *fakeSession) NextResult(ctx context.Context) (domain.AnalysisResult, error) {
	select {
	case r := <-f.results:
		return r, nil
	case err := <-f.errs:
		return domain.AnalysisResult{}, err
	case <-ctx.Done():
		return domain.AnalysisResult{}, ctx.Err()
	case <-time.After(20 * time.Millisecond):
		return domain.AnalysisResult{}, errors2.ErrPollTimeout
	}
}

func (f *fakeSession) Logs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.logs
	f.logs = nil
	return out
}

func (f *fakeSession) pushLogs(lines ...string) {
	f.mu.Lock()
	f.logs = append(f.logs, lines...)
	f.mu.Unlock()
}

// queries returns submitted analysis queries, terminate requests excluded.
func (f *fakeSession) queries() []map[string]any {
	return f.filter(func(m map[string]any) bool { return m["action"] == nil })
}

func (f *fakeSession) terminates() []map[string]any {
	return f.filter(func(m map[string]any) bool { return m["action"] == "terminate" })
}

func (f *fakeSession) filter(keep func(map[string]any) bool) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, p := range f.payloads {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// sent lists every payload in submission order as "query:<id>" or "terminate:<id>".
func (f *fakeSession) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.payloads))
	for _, p := range f.payloads {
		if p["action"] == "terminate" {
			out = append(out, fmt.Sprintf("terminate:%v", p["terminateId"]))
			continue
		}
		out = append(out, fmt.Sprintf("query:%v", p["id"]))
	}
	return out
}

func (f *fakeSession) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

type fakeResultArchive struct {
	mu      sync.Mutex
	records []domain.AnalysisRecord
}

func (f *fakeResultArchive) SaveAnalysis(_ context.Context, rec domain.AnalysisRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeResultArchive) saved() []domain.AnalysisRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.AnalysisRecord(nil), f.records...)
}

type fakeHistoryArchive struct {
	mu    sync.Mutex
	games map[string][]domain.HistoryPoint
}

func newFakeHistoryArchive() *fakeHistoryArchive {
	return &fakeHistoryArchive{games: make(map[string][]domain.HistoryPoint)}
}

func (f *fakeHistoryArchive) SaveHistory(_ context.Context, gameID string, points []domain.HistoryPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.games[gameID] = points
	return nil
}

func (f *fakeHistoryArchive) LoadHistory(_ context.Context, gameID string) ([]domain.HistoryPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	points, ok := f.games[gameID]
	if !ok {
		return nil, errors2.ErrHistoryNotFound
	}
	return points, nil
}

func (f *fakeHistoryArchive) DeleteHistory(_ context.Context, gameID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.games, gameID)
	return nil
}

func (f *fakeHistoryArchive) get(gameID string) []domain.HistoryPoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.games[gameID]
}

// hookMetrics calls onFinish for every finished attempt, from the attempt goroutine.
type hookMetrics struct {
	onFinish func(state string)
}

func (hookMetrics) QuerySubmitted()    {}
func (hookMetrics) ResultAccepted(int) {}
func (hookMetrics) ResultDiscarded()   {}
func (hookMetrics) PollError()         {}

func (m hookMetrics) AttemptFinished(state string) {
	if m.onFinish != nil {
		m.onFinish(state)
	}
}

func testProfile(t *testing.T) domain.EngineProfile {
	t.Helper()
	exe, err := os.Executable()
	require.NoError(t, err)
	return domain.EngineProfile{Name: "test", Path: exe}
}

func testPosition(nodeID string, move int) domain.Position {
	toMove := domain.Black
	if move%2 == 1 {
		toMove = domain.White
	}
	return domain.Position{
		GameID:     "game-1",
		NodeID:     nodeID,
		MoveNumber: move,
		ToMove:     toMove,
		BoardXSize: 19,
		BoardYSize: 19,
		Komi:       6.5,
		Stones:     []domain.Stone{{X: 3, Y: 3, Color: domain.Black}},
	}
}

func searching(id string, visits int, winrate float64) domain.AnalysisResult {
	return domain.AnalysisResult{
		ID:             id,
		IsDuringSearch: true,
		RootInfo:       domain.RootInfo{Winrate: winrate, ScoreLead: 1.5, Visits: visits},
		MoveInfos:      []domain.MoveInfo{{Move: "Q16", Winrate: winrate, Visits: visits, PV: []string{"Q16"}}},
	}
}
