// Package query builds analysis engine requests from position snapshots.
package query

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"live_analysis/internal/domain"
	"live_analysis/internal/errors"
)

const (
	DefaultPrefix = "qd"

	// reportDuringSearchEvery values below this are ignored by the engine
	minReportInterval = 0.001
	defaultBoardSize  = 19
)

type Builder struct {
	prefix string
}

func NewBuilder(prefix string) *Builder {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Builder{prefix: prefix}
}

// QueryID is the correlation id for a tree node. It is stable for a given node.
func (b *Builder) QueryID(nodeID string) string {
	return b.prefix + "-" + nodeID
}

// Build returns the query and its serialized form for the position as given.
func (b *Builder) Build(pos domain.Position, settings domain.AnalysisSettings) (domain.AnalysisQuery, []byte, error) {
	xSize, ySize := pos.BoardXSize, pos.BoardYSize
	if xSize <= 0 {
		xSize = defaultBoardSize
	}
	if ySize <= 0 {
		ySize = xSize
	}

	stones := make([][2]string, 0, len(pos.Stones))
	for _, s := range pos.Stones {
		if s.X >= xSize {
			return domain.AnalysisQuery{}, nil, fmt.Errorf("%w: stone (%d,%d) is off the board", errors.ErrSubmitFailure, s.X, s.Y)
		}
		coord, err := domain.GTPCoord(s.X, s.Y, ySize)
		if err != nil {
			return domain.AnalysisQuery{}, nil, fmt.Errorf("%w: %v", errors.ErrSubmitFailure, err)
		}
		stones = append(stones, [2]string{string(s.Color), coord})
	}

	player := domain.Black
	if pos.ToMove == domain.White {
		player = domain.White
	}

	q := domain.AnalysisQuery{
		ID:               b.QueryID(pos.NodeID),
		Moves:            [][2]string{},
		InitialStones:    stones,
		InitialPlayer:    string(player),
		Rules:            pos.Rules,
		Komi:             pos.Komi,
		BoardXSize:       xSize,
		BoardYSize:       ySize,
		AnalyzeTurns:     []int{0},
		IncludeOwnership: settings.IncludeOwnership,
		IncludePolicy:    settings.IncludePolicy,
	}
	if q.Rules == "" {
		q.Rules = "chinese"
	}
	if settings.MaxVisits != nil && *settings.MaxVisits > 0 {
		v := *settings.MaxVisits
		q.MaxVisits = &v
	}
	if settings.ReportDuringSearchEvery != nil && *settings.ReportDuringSearchEvery >= minReportInterval {
		v := *settings.ReportDuringSearchEvery
		q.ReportDuringSearchEvery = &v
	}

	overrides := CoerceParams(settings.AdvancedParams)
	if settings.MaxTime != nil && *settings.MaxTime > 0 {
		if overrides == nil {
			overrides = make(map[string]any, 1)
		}
		overrides["maxTime"] = *settings.MaxTime
	}
	q.OverrideSettings = overrides

	payload, err := json.Marshal(q)
	if err != nil {
		return domain.AnalysisQuery{}, nil, fmt.Errorf("%w: failed to marshal query: %v", errors.ErrSubmitFailure, err)
	}
	return q, payload, nil
}

// BuildTerminate returns a request that stops the engine from working on queryID.
func (b *Builder) BuildTerminate(queryID string) ([]byte, error) {
	payload, err := json.Marshal(domain.TerminateRequest{
		ID:          b.prefix + "-terminate-" + uuid.New().String(),
		Action:      "terminate",
		TerminateID: queryID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal terminate: %v", errors.ErrSubmitFailure, err)
	}
	return payload, nil
}

// CoerceParams converts free-form values: boolean literal, then number, else string.
// Returns nil when there is nothing to override.
func CoerceParams(params map[string]string) map[string]any {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		switch {
		case v == "true":
			out[k] = true
		case v == "false":
			out[k] = false
		default:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				out[k] = f
			} else {
				out[k] = v
			}
		}
	}
	return out
}
