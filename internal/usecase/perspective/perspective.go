// Package perspective converts engine evaluations between reporting conventions.
package perspective

import "live_analysis/internal/domain"

// ConvertWinRate maps a win rate reported as reportedAs into target.
// isSecondPlayerToMove is true when White is to move in the evaluated position.
func ConvertWinRate(value float64, reportedAs, target domain.Perspective, isSecondPlayerToMove bool) float64 {
	black := value
	if reportedAs == domain.PerspectiveCurrent && isSecondPlayerToMove {
		black = 1.0 - value
	}
	if target == domain.PerspectiveCurrent && isSecondPlayerToMove {
		return 1.0 - black
	}
	return black
}

// ConvertScoreLead maps a score lead reported as reportedAs into target.
func ConvertScoreLead(value float64, reportedAs, target domain.Perspective, isSecondPlayerToMove bool) float64 {
	black := value
	if reportedAs == domain.PerspectiveCurrent && isSecondPlayerToMove {
		black = -value
	}
	if target == domain.PerspectiveCurrent && isSecondPlayerToMove {
		return -black
	}
	return black
}

// NormalizeResult converts the root and every candidate of r. The input is left untouched.
func NormalizeResult(r domain.AnalysisResult, reportedAs, target domain.Perspective, isSecondPlayerToMove bool) domain.AnalysisResult {
	out := r.Clone()
	if reportedAs == target || !isSecondPlayerToMove {
		return out
	}
	out.RootInfo.Winrate = ConvertWinRate(r.RootInfo.Winrate, reportedAs, target, isSecondPlayerToMove)
	out.RootInfo.ScoreLead = ConvertScoreLead(r.RootInfo.ScoreLead, reportedAs, target, isSecondPlayerToMove)
	for i := range out.MoveInfos {
		out.MoveInfos[i].Winrate = ConvertWinRate(r.MoveInfos[i].Winrate, reportedAs, target, isSecondPlayerToMove)
		out.MoveInfos[i].ScoreLead = ConvertScoreLead(r.MoveInfos[i].ScoreLead, reportedAs, target, isSecondPlayerToMove)
	}
	// ownership is reported per point as black-positive or side-to-move-positive as well
	for i := range out.Ownership {
		out.Ownership[i] = ConvertScoreLead(r.Ownership[i], reportedAs, target, isSecondPlayerToMove)
	}
	return out
}
