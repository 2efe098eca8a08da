package enginelog_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live_analysis/internal/domain"
	"live_analysis/internal/usecase/enginelog"
)

func TestFeed(t *testing.T) {
	t.Parallel()

	f := enginelog.NewFeed(enginelog.DefaultMarkers())
	f.Starting()

	_, ok := f.Ingest("[STDERR]   ")
	assert.False(t, ok)

	entry, ok := f.Ingest("[STDERR] Error: something bad")
	require.True(t, ok)
	assert.True(t, entry.IsError)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())

	f.Ingest(">>> analyze")
	f.Ingest("[STDERR] Started, ready to begin handling requests")

	entries := f.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "Error: something bad", entries[0].Message)
	assert.True(t, entries[1].IsCommunication)
	assert.False(t, entries[1].IsError)
	assert.Equal(t, domain.StatusReady, f.Status().Kind)

	f.Fail(errors.New("engine closed its output"))
	assert.Equal(t, "Error: engine closed its output", f.Status().Text)

	f.Stopped()
	assert.Equal(t, domain.StatusNotStarted, f.Status().Kind)
}
