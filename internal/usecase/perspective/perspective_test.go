package perspective_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"live_analysis/internal/domain"
	"live_analysis/internal/usecase/perspective"
)

var samples = []float64{0, 0.001, 0.1, 0.25, 0.5, 0.73, 0.999, 1}

func TestConvertWinRate(t *testing.T) {
	t.Parallel()

	t.Run("round trip through current player is identity", func(t *testing.T) {
		t.Parallel()
		for _, whiteToMove := range []bool{false, true} {
			for _, v := range samples {
				current := perspective.ConvertWinRate(v, domain.PerspectiveBlack, domain.PerspectiveCurrent, whiteToMove)
				back := perspective.ConvertWinRate(current, domain.PerspectiveCurrent, domain.PerspectiveBlack, whiteToMove)
				assert.InDelta(t, v, back, 1e-12, "v=%v whiteToMove=%v", v, whiteToMove)
			}
		}
	})

	t.Run("same perspective is identity", func(t *testing.T) {
		t.Parallel()
		for _, p := range []domain.Perspective{domain.PerspectiveBlack, domain.PerspectiveCurrent} {
			for _, v := range samples {
				assert.Equal(t, v, perspective.ConvertWinRate(v, p, p, false))
				assert.InDelta(t, v, perspective.ConvertWinRate(v, p, p, true), 1e-12)
			}
		}
	})

	t.Run("current player value is complemented on white's turn", func(t *testing.T) {
		t.Parallel()
		assert.InDelta(t, 0.3, perspective.ConvertWinRate(0.7, domain.PerspectiveBlack, domain.PerspectiveCurrent, true), 1e-12)
		assert.Equal(t, 0.7, perspective.ConvertWinRate(0.7, domain.PerspectiveBlack, domain.PerspectiveCurrent, false))
		assert.InDelta(t, 0.3, perspective.ConvertWinRate(0.7, domain.PerspectiveCurrent, domain.PerspectiveBlack, true), 1e-12)
	})
}

func TestConvertScoreLead(t *testing.T) {
	t.Parallel()

	leads := []float64{-30.5, -1, 0, 0.5, 7.25, 120}

	t.Run("black to black is identity on any turn", func(t *testing.T) {
		t.Parallel()
		for _, v := range leads {
			assert.Equal(t, v, perspective.ConvertScoreLead(v, domain.PerspectiveBlack, domain.PerspectiveBlack, false))
			assert.Equal(t, v, perspective.ConvertScoreLead(v, domain.PerspectiveBlack, domain.PerspectiveBlack, true))
		}
	})

	t.Run("round trip is exact", func(t *testing.T) {
		t.Parallel()
		for _, whiteToMove := range []bool{false, true} {
			for _, v := range leads {
				current := perspective.ConvertScoreLead(v, domain.PerspectiveBlack, domain.PerspectiveCurrent, whiteToMove)
				assert.Equal(t, v, perspective.ConvertScoreLead(current, domain.PerspectiveCurrent, domain.PerspectiveBlack, whiteToMove))
			}
		}
	})

	t.Run("negated on white's turn", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, -3.5, perspective.ConvertScoreLead(3.5, domain.PerspectiveCurrent, domain.PerspectiveBlack, true))
		assert.Equal(t, 3.5, perspective.ConvertScoreLead(3.5, domain.PerspectiveCurrent, domain.PerspectiveBlack, false))
	})
}

func TestNormalizeResult(t *testing.T) {
	t.Parallel()

	in := domain.AnalysisResult{
		ID:        "qd-1",
		RootInfo:  domain.RootInfo{Winrate: 0.8, ScoreLead: 4, Visits: 10},
		MoveInfos: []domain.MoveInfo{{Move: "D4", Winrate: 0.6, ScoreLead: 2, PV: []string{"D4", "Q16"}}},
		Ownership: []float64{0.5, -0.25},
	}

	out := perspective.NormalizeResult(in, domain.PerspectiveCurrent, domain.PerspectiveBlack, true)

	assert.InDelta(t, 0.2, out.RootInfo.Winrate, 1e-12)
	assert.Equal(t, -4.0, out.RootInfo.ScoreLead)
	assert.InDelta(t, 0.4, out.MoveInfos[0].Winrate, 1e-12)
	assert.Equal(t, -2.0, out.MoveInfos[0].ScoreLead)
	assert.Equal(t, []float64{-0.5, 0.25}, out.Ownership)
	assert.Equal(t, 10, out.RootInfo.Visits)

	// input is not modified
	assert.Equal(t, 0.8, in.RootInfo.Winrate)
	assert.Equal(t, 0.6, in.MoveInfos[0].Winrate)
	assert.Equal(t, 0.5, in.Ownership[0])

	same := perspective.NormalizeResult(in, domain.PerspectiveBlack, domain.PerspectiveBlack, true)
	assert.Equal(t, in, same)
}
