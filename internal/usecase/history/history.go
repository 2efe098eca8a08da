// Package history keeps the sparse per-move evaluation archive used for charting.
package history

import (
	"sort"
	"sync"

	"live_analysis/internal/domain"
)

// Store maps move numbers to evaluations. Values are always in the Black perspective.
// Entries are only ever added or overwritten; editing the game tree does not renumber them.
type Store struct {
	mu        sync.RWMutex
	winrates  map[int]float64
	scoreLead map[int]float64
}

func NewStore() *Store {
	return &Store{
		winrates:  make(map[int]float64),
		scoreLead: make(map[int]float64),
	}
}

func (s *Store) Record(moveNumber int, winrate, scoreLead float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.winrates[moveNumber] = winrate
	s.scoreLead[moveNumber] = scoreLead
}

func (s *Store) Lookup(moveNumber int) (domain.HistoryPoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.winrates[moveNumber]
	if !ok {
		return domain.HistoryPoint{}, false
	}
	return domain.HistoryPoint{MoveNumber: moveNumber, Winrate: w, ScoreLead: s.scoreLead[moveNumber]}, true
}

// Reset clears the store. Only replacing the game calls it, navigation never does.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.winrates = make(map[int]float64)
	s.scoreLead = make(map[int]float64)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.winrates)
}

// Snapshot returns all points ordered by move number.
func (s *Store) Snapshot() []domain.HistoryPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := make([]domain.HistoryPoint, 0, len(s.winrates))
	for move, w := range s.winrates {
		points = append(points, domain.HistoryPoint{MoveNumber: move, Winrate: w, ScoreLead: s.scoreLead[move]})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].MoveNumber < points[j].MoveNumber
	})
	return points
}

// Restore merges archived points without removing what is already recorded.
func (s *Store) Restore(points []domain.HistoryPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		if _, ok := s.winrates[p.MoveNumber]; ok {
			continue
		}
		s.winrates[p.MoveNumber] = p.Winrate
		s.scoreLead[p.MoveNumber] = p.ScoreLead
	}
}
