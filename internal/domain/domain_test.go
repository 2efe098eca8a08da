package domain_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live_analysis/internal/domain"
	"live_analysis/internal/errors"
)

func TestGTPCoord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		x, y, size int
		want       string
	}{
		{0, 18, 19, "A1"},
		{3, 15, 19, "D4"},
		{8, 0, 19, "J19"},
		{18, 0, 19, "T19"},
		{4, 4, 9, "E5"},
	}
	for _, tt := range tests {
		got, err := domain.GTPCoord(tt.x, tt.y, tt.size)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)

		x, y, ok, err := domain.ParseGTPCoord(got, tt.size)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, tt.x, x)
		assert.Equal(t, tt.y, y)
	}

	_, err := domain.GTPCoord(3, 19, 19)
	assert.Error(t, err)
	_, err = domain.GTPCoord(-1, 0, 19)
	assert.Error(t, err)
}

func TestParseGTPCoord(t *testing.T) {
	t.Parallel()

	_, _, ok, err := domain.ParseGTPCoord("pass", 19)
	require.NoError(t, err)
	assert.False(t, ok)

	for _, bad := range []string{"", "I5", "D0", "D20", "Z", "Dx"} {
		_, _, _, err = domain.ParseGTPCoord(bad, 19)
		assert.Error(t, err, bad)
	}
}

func TestPosition(t *testing.T) {
	t.Parallel()

	pos := domain.Position{
		NodeID: "n1",
		ToMove: domain.White,
		Stones: []domain.Stone{{X: 1, Y: 1, Color: domain.Black}},
	}
	require.NoError(t, pos.Validate())
	assert.True(t, pos.IsWhiteToMove())

	clone := pos.Clone()
	clone.Stones[0].X = 5
	assert.Equal(t, 1, pos.Stones[0].X)

	pos.ToMove = "X"
	assert.ErrorIs(t, pos.Validate(), errors.ErrConfigValidation)

	pos.ToMove = domain.Black
	pos.NodeID = ""
	assert.ErrorIs(t, pos.Validate(), errors.ErrConfigValidation)
}

func TestEngineProfile(t *testing.T) {
	t.Parallel()

	p := domain.EngineProfile{Path: "katago", Model: "m.bin.gz", Config: "analysis.cfg", ExtraArgs: " -quit-without-waiting "}
	assert.Equal(t, []string{"analysis", "-model", "m.bin.gz", "-config", "analysis.cfg", "-quit-without-waiting"}, p.Args())
	assert.Equal(t, []string{"analysis"}, domain.EngineProfile{Path: "katago"}.Args())

	exe, err := os.Executable()
	require.NoError(t, err)
	assert.NoError(t, domain.EngineProfile{Path: exe}.Validate())
	assert.ErrorIs(t, domain.EngineProfile{}.Validate(), errors.ErrConfigValidation)
	assert.ErrorIs(t, domain.EngineProfile{Path: exe, Model: "/nonexistent/model.bin.gz"}.Validate(), errors.ErrConfigValidation)
}

func TestAnalysisSettings(t *testing.T) {
	t.Parallel()

	s := domain.DefaultAnalysisSettings()
	require.NoError(t, s.Validate())

	s.AdvancedParams = map[string]string{"a": "1"}
	clone := s.Clone()
	*clone.MaxVisits = 5
	clone.AdvancedParams["a"] = "2"
	assert.Equal(t, 1000, *s.MaxVisits)
	assert.Equal(t, "1", s.AdvancedParams["a"])

	s.Perspective = "white"
	assert.ErrorIs(t, s.Validate(), errors.ErrConfigValidation)

	p, ok := domain.ParsePerspective(" Current ")
	assert.True(t, ok)
	assert.Equal(t, domain.PerspectiveCurrent, p)
	_, ok = domain.ParsePerspective("white")
	assert.False(t, ok)
}

func TestAnalysisResultClone(t *testing.T) {
	t.Parallel()

	r := domain.AnalysisResult{
		MoveInfos: []domain.MoveInfo{{Move: "D4", PV: []string{"D4", "Q16"}}},
		Ownership: []float64{0.5},
	}
	c := r.Clone()
	c.MoveInfos[0].PV[0] = "C3"
	c.Ownership[0] = -1

	assert.Equal(t, "D4", r.MoveInfos[0].PV[0])
	assert.Equal(t, 0.5, r.Ownership[0])
}
