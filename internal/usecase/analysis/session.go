package analysis

import (
	"context"

	"live_analysis/internal/domain"
)

// EngineSession is a running analysis engine. Analyze and NextResult are never called
// concurrently for the same attempt; Logs returns the raw lines produced since its last call.
type EngineSession interface {
	Start(ctx context.Context, executable string, args []string) error
	Stop() error
	Analyze(payload []byte) error
	NextResult(ctx context.Context) (domain.AnalysisResult, error)
	Logs() []string
}

// HistoryArchive keeps evaluation history per game between restarts.
type HistoryArchive interface {
	SaveHistory(ctx context.Context, gameID string, points []domain.HistoryPoint) error
	LoadHistory(ctx context.Context, gameID string) ([]domain.HistoryPoint, error)
	DeleteHistory(ctx context.Context, gameID string) error
}

// ResultArchive keeps final analyses.
type ResultArchive interface {
	SaveAnalysis(ctx context.Context, rec domain.AnalysisRecord) error
}

type Metrics interface {
	QuerySubmitted()
	ResultAccepted(visits int)
	ResultDiscarded()
	PollError()
	AttemptFinished(state string)
}

type noopMetrics struct{}

func (noopMetrics) QuerySubmitted()        {}
func (noopMetrics) ResultAccepted(int)     {}
func (noopMetrics) ResultDiscarded()       {}
func (noopMetrics) PollError()             {}
func (noopMetrics) AttemptFinished(string) {}
