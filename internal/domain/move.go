package domain

// AnalysisQuery is a single request line for the KataGo analysis engine.
type AnalysisQuery struct {
	ID                      string         `json:"id"`
	Moves                   [][2]string    `json:"moves"` // always empty, position is given by initialStones
	InitialStones           [][2]string    `json:"initialStones"`
	InitialPlayer           string         `json:"initialPlayer"`
	Rules                   string         `json:"rules"`
	Komi                    float64        `json:"komi"`
	BoardXSize              int            `json:"boardXSize"`
	BoardYSize              int            `json:"boardYSize"`
	AnalyzeTurns            []int          `json:"analyzeTurns"`
	IncludeOwnership        bool           `json:"includeOwnership"`
	IncludePolicy           bool           `json:"includePolicy"`
	ReportDuringSearchEvery *float64       `json:"reportDuringSearchEvery,omitempty"`
	MaxVisits               *int           `json:"maxVisits,omitempty"`
	OverrideSettings        map[string]any `json:"overrideSettings,omitempty"`
}

// TerminateRequest asks the engine to stop working on a previously submitted query.
type TerminateRequest struct {
	ID          string `json:"id"`
	Action      string `json:"action"`
	TerminateID string `json:"terminateId"`
}

// AnalysisResult is one response line of the analysis engine.
type AnalysisResult struct {
	ID             string     `json:"id"`
	TurnNumber     int        `json:"turnNumber"`
	IsDuringSearch bool       `json:"isDuringSearch"`
	RootInfo       RootInfo   `json:"rootInfo"`
	MoveInfos      []MoveInfo `json:"moveInfos"`
	Ownership      []float64  `json:"ownership,omitempty"`
	Error          string     `json:"error,omitempty"`
	Warning        string     `json:"warning,omitempty"`
}

// RootInfo describes the analyzed position as a whole.
type RootInfo struct {
	CurrentPlayer string  `json:"currentPlayer"` // "W" или "B"
	Winrate       float64 `json:"winrate"`
	ScoreLead     float64 `json:"scoreLead"`
	Visits        int     `json:"visits"`
}

// MoveInfo describes one candidate move.
type MoveInfo struct {
	Move      string   `json:"move"`
	Winrate   float64  `json:"winrate"`
	ScoreLead float64  `json:"scoreLead"`
	Visits    int      `json:"visits"`
	Order     int      `json:"order"`
	Prior     float64  `json:"prior,omitempty"`
	PV        []string `json:"pv"` // principal variation
}

// Clone returns a deep copy so callers can hand results out without sharing slices.
func (r AnalysisResult) Clone() AnalysisResult {
	out := r
	if r.MoveInfos != nil {
		out.MoveInfos = make([]MoveInfo, len(r.MoveInfos))
		for i, m := range r.MoveInfos {
			m.PV = append([]string(nil), m.PV...)
			out.MoveInfos[i] = m
		}
	}
	if r.Ownership != nil {
		out.Ownership = append([]float64(nil), r.Ownership...)
	}
	return out
}
