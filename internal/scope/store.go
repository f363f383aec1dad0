// Package scope holds the per-scan deduplication and scoping store. It is
// the gate that keeps transitive discovery from re-processing facts the scan
// has already handled.
package scope

import (
	"sync"

	"github.com/hakim/recongraph/internal/event"
	"github.com/hakim/recongraph/internal/target"
)

// Store tracks which facts a scan has seen, per-collector co-host counters,
// and the target alias set. All methods are safe for concurrent use.
type Store struct {
	target    *target.Target
	maxCohost int

	mu sync.Mutex
	// seen maps dedup keys to the set of source-event hashes that led to
	// the fact. The key includes the ancestral root hash for non-raw types.
	seen map[string]map[string]struct{}
	// cohosts counts CO_HOSTED_SITE emissions per collector.
	cohosts map[string]int
}

// New creates a store for one scan. maxCohost caps CO_HOSTED_SITE emissions
// per collector; zero or negative means unlimited.
func New(t *target.Target, maxCohost int) *Store {
	return &Store{
		target:    t,
		maxCohost: maxCohost,
		seen:      make(map[string]map[string]struct{}),
		cohosts:   make(map[string]int),
	}
}

// MarkSeen records the event and reports whether it is the first occurrence
// of its fact within the scan. The check-and-insert is atomic.
//
// Policy:
//  1. The root event always passes.
//  2. Raw container types deduplicate by exact (type, data) only.
//  3. Everything else deduplicates by (type, data) scoped to the ancestral
//     root hash.
//  4. CO_HOSTED_SITE emissions above the per-collector ceiling are
//     suppressed.
func (s *Store) MarkSeen(e *event.Event) bool {
	if e.Type == event.TypeRoot {
		return true
	}

	key := e.Hash()
	if !event.IsRaw(e.Type) {
		key += ":" + e.RootHash()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sources, ok := s.seen[key]; ok {
		sources[e.SourceHash] = struct{}{}
		return false
	}

	// Only first occurrences consume the ceiling; duplicates are suppressed
	// above regardless.
	if e.Type == "CO_HOSTED_SITE" && s.maxCohost > 0 {
		if s.cohosts[e.Module] >= s.maxCohost {
			return false
		}
		s.cohosts[e.Module]++
	}

	s.seen[key] = map[string]struct{}{e.SourceHash: {}}
	return true
}

// SeenFrom reports whether the fact carried by e was already produced from
// the given source-event hash.
func (s *Store) SeenFrom(e *event.Event, sourceHash string) bool {
	key := e.Hash()
	if !event.IsRaw(e.Type) {
		key += ":" + e.RootHash()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sources, ok := s.seen[key]
	if !ok {
		return false
	}
	_, ok = sources[sourceHash]
	return ok
}

// CohostCount returns how many CO_HOSTED_SITE facts the collector has
// emitted this scan.
func (s *Store) CohostCount(collector string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cohosts[collector]
}

// RecordAlias adds an alias to the scan target.
func (s *Store) RecordAlias(value, typeName string) {
	s.target.SetAlias(value, typeName)
}

// Target returns the scan target.
func (s *Store) Target() *target.Target {
	return s.target
}
