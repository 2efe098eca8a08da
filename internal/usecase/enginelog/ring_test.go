package enginelog_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live_analysis/internal/domain"
	"live_analysis/internal/usecase/enginelog"
)

func TestRing_Append(t *testing.T) {
	t.Parallel()

	t.Run("evicts the oldest batch at once", func(t *testing.T) {
		t.Parallel()

		r := enginelog.NewRing(enginelog.DefaultCapacity, enginelog.DefaultEvictBatch)
		for i := 0; i < 501; i++ {
			r.Append(domain.LogEntry{Message: strconv.Itoa(i)})
		}

		entries := r.Entries()
		require.Len(t, entries, 401)
		assert.Equal(t, "100", entries[0].Message)
		assert.Equal(t, "500", entries[len(entries)-1].Message)
	})

	t.Run("keeps everything up to capacity", func(t *testing.T) {
		t.Parallel()

		r := enginelog.NewRing(0, 0)
		for i := 0; i < 500; i++ {
			r.Append(domain.LogEntry{Message: strconv.Itoa(i)})
		}
		assert.Equal(t, 500, r.Len())
	})

	t.Run("entries is a copy", func(t *testing.T) {
		t.Parallel()

		r := enginelog.NewRing(10, 2)
		r.Append(domain.LogEntry{Message: "a"})
		entries := r.Entries()
		entries[0].Message = "changed"

		assert.Equal(t, "a", r.Entries()[0].Message)
	})
}
