// Package analysis keeps exactly one analysis query in flight for the position being viewed.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"live_analysis/internal/domain"
	errors2 "live_analysis/internal/errors"
	"live_analysis/internal/usecase/enginelog"
	"live_analysis/internal/usecase/history"
	"live_analysis/internal/usecase/perspective"
	"live_analysis/internal/usecase/query"
)

type Options struct {
	DebounceDelay     time.Duration
	RetryBackoff      time.Duration
	LogPollInterval   time.Duration
	ArchiveTimeout    time.Duration
	DrainTimeout      time.Duration
	ReportedAs        domain.Perspective
	TerminateOnCancel bool
	QueryPrefix       string
	Markers           enginelog.Markers

	HistoryArchive HistoryArchive
	ResultArchive  ResultArchive
	Metrics        Metrics
}

func DefaultOptions() Options {
	return Options{
		DebounceDelay:     500 * time.Millisecond,
		RetryBackoff:      100 * time.Millisecond,
		LogPollInterval:   500 * time.Millisecond,
		ArchiveTimeout:    5 * time.Second,
		DrainTimeout:      time.Second,
		ReportedAs:        domain.PerspectiveBlack,
		TerminateOnCancel: true,
		QueryPrefix:       query.DefaultPrefix,
		Markers:           enginelog.DefaultMarkers(),
	}
}

// Snapshot is what the presentation layer renders.
type Snapshot struct {
	Status     domain.EngineStatus    `json:"status"`
	Running    bool                   `json:"running"`
	Analyzing  bool                   `json:"analyzing"`
	Attempt    AttemptState           `json:"attempt"`
	NodeID     string                 `json:"node_id,omitempty"`
	MoveNumber int                    `json:"move_number"`
	Result     *domain.AnalysisResult `json:"result,omitempty"`
}

type Coordinator struct {
	log     *zap.SugaredLogger
	session EngineSession
	opts    Options
	builder *query.Builder
	feed    *enginelog.Feed
	history *history.Store
	metrics Metrics

	mu        sync.Mutex
	running   bool
	analyzing bool
	position  *domain.Position
	settings  domain.AnalysisSettings
	current   *attempt
	seq       uint64

	// canonical Black perspective, with the position it was computed for
	result    *domain.AnalysisResult
	resultPos domain.Position

	stopLogs context.CancelFunc
	logsDone chan struct{}

	subsMu  sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

func NewCoordinator(log *zap.SugaredLogger, session EngineSession, settings domain.AnalysisSettings, opts Options) *Coordinator {
	if opts.Markers.StderrTag == "" {
		opts.Markers = enginelog.DefaultMarkers()
	}
	if opts.ReportedAs == "" {
		opts.ReportedAs = domain.PerspectiveBlack
	}
	if opts.ArchiveTimeout <= 0 {
		opts.ArchiveTimeout = 5 * time.Second
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = time.Second
	}
	if opts.LogPollInterval <= 0 {
		opts.LogPollInterval = 500 * time.Millisecond
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if settings.Perspective == "" {
		settings.Perspective = domain.PerspectiveCurrent
	}

	return &Coordinator{
		log:      log,
		session:  session,
		opts:     opts,
		builder:  query.NewBuilder(opts.QueryPrefix),
		feed:     enginelog.NewFeed(opts.Markers),
		history:  history.NewStore(),
		metrics:  metrics,
		settings: settings.Clone(),
		subs:     make(map[int]chan struct{}),
	}
}

// Start validates the profile, launches the engine and enables analysis.
// A validation failure is reported before any process is spawned.
func (c *Coordinator) Start(ctx context.Context, profile domain.EngineProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return errors2.ErrEngineAlreadyRunning
	}

	c.feed.Starting()
	c.notify()
	if err := c.session.Start(ctx, profile.Path, profile.Args()); err != nil {
		c.feed.Fail(err)
		c.notify()
		c.log.Errorw("failed to start engine", "path", profile.Path, "error", err)
		return fmt.Errorf("start engine %q: %w", profile.Name, err)
	}
	c.log.Infow("engine started", "path", profile.Path, "args", profile.Args())

	c.running = true
	c.analyzing = true

	logCtx, cancel := context.WithCancel(context.Background())
	c.stopLogs = cancel
	c.logsDone = make(chan struct{})
	go c.pollLogs(logCtx, c.logsDone)

	if c.position != nil {
		c.scheduleLocked()
	}
	c.notify()
	return nil
}

// Stop cancels the active attempt, waits for it, then shuts the engine down.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return errors2.ErrEngineNotRunning
	}
	c.running = false
	c.analyzing = false
	active := c.current
	if active != nil {
		active.cancel()
	}
	stopLogs, logsDone := c.stopLogs, c.logsDone
	c.mu.Unlock()

	if active != nil {
		<-active.done
	}
	stopLogs()
	<-logsDone

	err := c.session.Stop()
	c.drainLogs()
	c.feed.Stopped()
	c.notify()
	if err != nil {
		c.log.Warnw("engine did not stop cleanly", "error", err)
		return fmt.Errorf("stop engine: %w", err)
	}
	c.log.Info("engine stopped")
	return nil
}

// PositionChanged cancels whatever is in flight, clears the visible result and
// schedules analysis of pos after the debounce delay.
func (c *Coordinator) PositionChanged(pos domain.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := pos.Clone()
	c.position = &p
	c.result = nil
	c.scheduleLocked()
	c.notify()
}

// SettingsChanged re-schedules analysis of the last position. The visible result stays.
func (c *Coordinator) SettingsChanged(settings domain.AnalysisSettings) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if settings.Perspective == "" {
		settings.Perspective = c.settings.Perspective
	}
	c.settings = settings.Clone()
	if c.position != nil {
		c.scheduleLocked()
	}
	c.notify()
}

// GameReplaced resets the history, restores what the archive has for the new game
// and then behaves like PositionChanged.
func (c *Coordinator) GameReplaced(ctx context.Context, pos domain.Position) {
	var restored []domain.HistoryPoint
	if c.opts.HistoryArchive != nil && pos.GameID != "" {
		points, err := c.opts.HistoryArchive.LoadHistory(ctx, pos.GameID)
		switch {
		case err == nil:
			restored = points
		case errors.Is(err, errors2.ErrHistoryNotFound):
		default:
			c.log.Warnw("failed to load history", "game_id", pos.GameID, "error", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.history.Reset()
	c.history.Restore(restored)
	p := pos.Clone()
	c.position = &p
	c.result = nil
	c.scheduleLocked()
	c.notify()
}

// ClearHistory drops the evaluations of the current game, the archived copy included.
func (c *Coordinator) ClearHistory(ctx context.Context) error {
	c.mu.Lock()
	c.history.Reset()
	gameID := ""
	if c.position != nil {
		gameID = c.position.GameID
	}
	c.mu.Unlock()
	c.notify()

	if c.opts.HistoryArchive == nil || gameID == "" {
		return nil
	}
	if err := c.opts.HistoryArchive.DeleteHistory(ctx, gameID); err != nil {
		c.log.Warnw("failed to delete archived history", "game_id", gameID, "error", err)
		return fmt.Errorf("delete history of %q: %w", gameID, err)
	}
	return nil
}

func (c *Coordinator) Settings() domain.AnalysisSettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.Clone()
}

// CurrentResult returns the accepted result in the requested perspective, trimmed to
// the configured number of candidates.
func (c *Coordinator) CurrentResult(p domain.Perspective) (domain.AnalysisResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentResultLocked(p)
}

func (c *Coordinator) currentResultLocked(p domain.Perspective) (domain.AnalysisResult, bool) {
	if c.result == nil {
		return domain.AnalysisResult{}, false
	}
	if p == "" {
		p = c.settings.Perspective
	}
	out := perspective.NormalizeResult(*c.result, domain.PerspectiveBlack, p, c.resultPos.IsWhiteToMove())
	if n := c.settings.MaxCandidates; n > 0 && len(out.MoveInfos) > n {
		out.MoveInfos = out.MoveInfos[:n]
	}
	return out, true
}

func (c *Coordinator) Snapshot(p domain.Perspective) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Status:    c.feed.Status(),
		Running:   c.running,
		Analyzing: c.analyzing,
		Attempt:   c.attemptStateLocked(),
	}
	if c.position != nil {
		s.NodeID = c.position.NodeID
		s.MoveNumber = c.position.MoveNumber
	}
	if r, ok := c.currentResultLocked(p); ok {
		s.Result = &r
	}
	return s
}

func (c *Coordinator) Status() domain.EngineStatus {
	return c.feed.Status()
}

func (c *Coordinator) Logs() []domain.LogEntry {
	return c.feed.Entries()
}

// History returns the archived evaluations in the Black perspective.
func (c *Coordinator) History() []domain.HistoryPoint {
	return c.history.Snapshot()
}

func (c *Coordinator) IsAnalyzing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analyzing
}

func (c *Coordinator) AttemptState() AttemptState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attemptStateLocked()
}

func (c *Coordinator) attemptStateLocked() AttemptState {
	if c.current == nil {
		return StateIdle
	}
	return c.current.state
}

// Subscribe returns a channel that receives a signal whenever the snapshot may have changed.
// Signals are coalesced; the returned func unsubscribes.
func (c *Coordinator) Subscribe() (<-chan struct{}, func()) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan struct{}, 1)
	c.subs[id] = ch

	return ch, func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

func (c *Coordinator) notify() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// scheduleLocked cancels the current attempt and starts a new one for the stored position.
// The new attempt waits for the old one to exit before it touches the session.
func (c *Coordinator) scheduleLocked() {
	prev := c.current
	if prev != nil {
		prev.cancel()
	}
	if !c.analyzing || c.position == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.seq++
	a := &attempt{
		seq:      c.seq,
		pos:      c.position.Clone(),
		settings: c.settings.Clone(),
		queryID:  c.builder.QueryID(c.position.NodeID),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		state:    StateDebouncing,
	}
	c.current = a
	go c.run(a, prev)
}

func (c *Coordinator) pollLogs(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.opts.LogPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.drainLogs()
		}
	}
}

func (c *Coordinator) drainLogs() {
	changed := false
	for _, line := range c.session.Logs() {
		if _, ok := c.feed.Ingest(line); ok {
			changed = true
		}
	}
	if changed {
		c.notify()
	}
}
