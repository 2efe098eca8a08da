package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"live_analysis/internal/domain"
	errors2 "live_analysis/internal/errors"
	"live_analysis/internal/usecase/perspective"
)

// archiveJob is what an exhausted attempt leaves for the archives, captured under Coordinator.mu.
type archiveJob struct {
	record domain.AnalysisRecord
	points []domain.HistoryPoint
}

// run drives one attempt: debounce, wait for the previous attempt, submit, poll.
// done is closed only after the previous attempt has exited, so the chain of attempts
// never has two of them touching the session.
func (c *Coordinator) run(a *attempt, prev *attempt) {
	defer func() {
		if prev != nil {
			<-prev.done
		}
		close(a.done)
	}()

	timer := time.NewTimer(c.opts.DebounceDelay)
	defer timer.Stop()

	select {
	case <-a.ctx.Done():
		c.finish(a, StateCanceled)
		return
	case <-timer.C:
	}

	if prev != nil {
		select {
		case <-prev.done:
		case <-a.ctx.Done():
			c.finish(a, StateCanceled)
			return
		}
	}

	_, payload, err := c.builder.Build(a.pos, a.settings)
	if err != nil {
		c.log.Errorw("failed to build analysis query", "query_id", a.queryID, "error", err)
		c.finish(a, StateFailed)
		return
	}

	if !c.transition(a, StateSubmitted) {
		c.finish(a, StateCanceled)
		return
	}
	if err = c.session.Analyze(payload); err != nil {
		c.log.Errorw("failed to submit analysis query", "query_id", a.queryID, "error", err)
		c.finish(a, StateFailed)
		return
	}
	c.metrics.QuerySubmitted()
	c.log.Debugw("analysis query submitted", "attempt", a.seq, "query_id", a.queryID, "move", a.pos.MoveNumber)

	c.poll(a)
}

func (c *Coordinator) poll(a *attempt) {
	if !c.transition(a, StatePolling) {
		c.cancelSubmitted(a)
		return
	}

	for {
		res, err := c.session.NextResult(a.ctx)
		if err != nil {
			switch {
			case a.ctx.Err() != nil || errors.Is(err, context.Canceled):
				c.cancelSubmitted(a)
				return
			case errors.Is(err, errors2.ErrPollTimeout):
			case errors.Is(err, errors2.ErrEngineClosed):
				c.fail(a, err)
				return
			default:
				c.metrics.PollError()
				c.log.Warnw("failed to read analysis result", "query_id", a.queryID, "error", err)
			}
			if !sleepCtx(a.ctx, c.opts.RetryBackoff) {
				c.cancelSubmitted(a)
				return
			}
			continue
		}

		if res.ID == a.queryID && res.Error != "" {
			err = fmt.Errorf("%w: %s", errors2.ErrEngineResponse, res.Error)
			c.log.Errorw("engine rejected analysis query", "query_id", a.queryID, "error", err)
			c.finish(a, StateFailed)
			return
		}
		if res.Warning != "" {
			c.log.Warnw("engine warning", "query_id", res.ID, "warning", res.Warning)
		}

		job, alive := c.apply(a, res)
		if !alive {
			c.cancelSubmitted(a)
			return
		}
		if job != nil {
			c.finish(a, StateExhausted)
			c.archive(*job)
			return
		}
	}
}

// apply stores res if it belongs to the current attempt. alive is false when the attempt
// has been superseded, in which case nothing is touched. A non-nil job means the search
// for this query is over.
func (c *Coordinator) apply(a *attempt, res domain.AnalysisResult) (job *archiveJob, alive bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != a || a.ctx.Err() != nil {
		return nil, false
	}
	if res.ID != a.queryID {
		a.state = StateStaleDiscarded
		c.metrics.ResultDiscarded()
		c.log.Debugw("discarded stale result", "got", res.ID, "want", a.queryID)
		return nil, true
	}

	canonical := perspective.NormalizeResult(res, c.opts.ReportedAs, domain.PerspectiveBlack, a.pos.IsWhiteToMove())
	c.result = &canonical
	c.resultPos = a.pos
	c.history.Record(a.pos.MoveNumber, canonical.RootInfo.Winrate, canonical.RootInfo.ScoreLead)
	a.state = StateAccepted
	c.metrics.ResultAccepted(res.RootInfo.Visits)
	c.notify()

	final := !res.IsDuringSearch
	if mv := a.settings.MaxVisits; mv != nil && *mv > 0 && res.RootInfo.Visits >= *mv {
		final = true
	}
	if !final {
		return nil, true
	}

	return &archiveJob{
		record: domain.AnalysisRecord{
			QueryID:    a.queryID,
			GameID:     a.pos.GameID,
			NodeID:     a.pos.NodeID,
			MoveNumber: a.pos.MoveNumber,
			ToMove:     a.pos.ToMove,
			Result:     canonical.Clone(),
			CreatedAt:  time.Now(),
		},
		points: c.history.Snapshot(),
	}, true
}

func (c *Coordinator) transition(a *attempt, state AttemptState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != a || a.ctx.Err() != nil {
		return false
	}
	a.state = state
	return true
}

func (c *Coordinator) finish(a *attempt, state AttemptState) {
	c.mu.Lock()
	a.state = state
	c.mu.Unlock()
	c.metrics.AttemptFinished(state.String())
	c.notify()
}

// cancelSubmitted ends an attempt whose query already reached the engine. With terminate
// enabled it also waits for the engine to close the query, so the next attempt, which may
// use the same query id, never sees the leftovers.
func (c *Coordinator) cancelSubmitted(a *attempt) {
	c.finish(a, StateCanceled)
	if !c.opts.TerminateOnCancel {
		return
	}
	payload, err := c.builder.BuildTerminate(a.queryID)
	if err != nil {
		c.log.Warnw("failed to build terminate request", "query_id", a.queryID, "error", err)
		return
	}
	if err = c.session.Analyze(payload); err != nil {
		c.log.Debugw("failed to send terminate request", "query_id", a.queryID, "error", err)
		return
	}

	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if running {
		c.drainTerminated(a.queryID)
	}
}

// drainTerminated reads and drops results until the engine sends the last one for queryID
// or DrainTimeout runs out.
func (c *Coordinator) drainTerminated(queryID string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.DrainTimeout)
	defer cancel()

	for {
		res, err := c.session.NextResult(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				c.log.Debugw("terminated query did not finish in time", "query_id", queryID)
				return
			case errors.Is(err, errors2.ErrPollTimeout):
				continue
			case errors.Is(err, errors2.ErrEngineClosed), errors.Is(err, errors2.ErrEngineNotRunning):
				return
			}
			if !sleepCtx(ctx, c.opts.RetryBackoff) {
				return
			}
			continue
		}

		c.metrics.ResultDiscarded()
		if res.ID == queryID && (!res.IsDuringSearch || res.Error != "") {
			c.log.Debugw("terminated query finished", "query_id", queryID, "visits", res.RootInfo.Visits)
			return
		}
	}
}

// fail handles errors that end the session as a whole.
func (c *Coordinator) fail(a *attempt, err error) {
	c.mu.Lock()
	a.state = StateFailed
	if c.current == a {
		c.analyzing = false
	}
	c.mu.Unlock()

	c.feed.Fail(err)
	c.metrics.AttemptFinished(StateFailed.String())
	c.log.Errorw("engine session failed", "query_id", a.queryID, "error", err)
	c.notify()
}

// archive stores the final result and the history of its game in the background.
func (c *Coordinator) archive(job archiveJob) {
	if c.opts.ResultArchive == nil && c.opts.HistoryArchive == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.ArchiveTimeout)
		defer cancel()

		rec := job.record
		if c.opts.ResultArchive != nil {
			if err := c.opts.ResultArchive.SaveAnalysis(ctx, rec); err != nil {
				c.log.Warnw("failed to archive analysis", "query_id", rec.QueryID, "error", err)
			}
		}
		if c.opts.HistoryArchive != nil && rec.GameID != "" {
			if err := c.opts.HistoryArchive.SaveHistory(ctx, rec.GameID, job.points); err != nil {
				c.log.Warnw("failed to archive history", "game_id", rec.GameID, "error", err)
			}
		}
	}()
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
