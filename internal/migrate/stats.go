package migrate

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Stats holds the counters of a single run. A fresh run needs fresh Stats.
type Stats struct {
	total        atomic.Int64
	updated      atomic.Int64
	notUpdated   atomic.Int64
	cannotUpdate atomic.Int64

	mu      sync.Mutex
	authors map[int64]struct{}
}

// NewStats creates zeroed counters.
func NewStats() *Stats {
	return &Stats{authors: make(map[int64]struct{})}
}

func (s *Stats) observeAuthor(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authors[id] = struct{}{}
}

func (s *Stats) record(outcome Outcome) {
	switch outcome {
	case OutcomeUpdated, OutcomeDryRun:
		s.updated.Add(1)
	case OutcomeSkipped:
		s.notUpdated.Add(1)
	default:
		s.cannotUpdate.Add(1)
	}
	s.total.Add(1)
}

// Total is the number of records processed.
func (s *Stats) Total() int64 { return s.total.Load() }

// Updated is the number of records whose author was rewritten.
func (s *Stats) Updated() int64 { return s.updated.Load() }

// NotUpdated is the number of records whose author was already correct.
func (s *Stats) NotUpdated() int64 { return s.notUpdated.Load() }

// CannotUpdate is the number of records left alone because no mapping
// applied or the store rejected the write.
func (s *Stats) CannotUpdate() int64 { return s.cannotUpdate.Load() }

// AuthorsFound is the number of distinct current authors seen.
func (s *Stats) AuthorsFound() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.authors)
}

// Authors returns the distinct current author IDs, sorted.
func (s *Stats) Authors() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.authors))
	for id := range s.authors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Reconciles reports whether every processed record landed in exactly one
// of the updated, not updated and cannot update counters.
func (s *Stats) Reconciles() bool {
	return s.Total() == s.Updated()+s.NotUpdated()+s.CannotUpdate()
}
