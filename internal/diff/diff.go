// Package diff computes the delta between two scans of the same target.
// It compares the stored event sets fact by fact and reports what appeared,
// what disappeared, and how the per-type counts shifted between runs.
package diff

import (
	"sort"

	"github.com/hakim/recongraph/internal/event"
	"github.com/hakim/recongraph/internal/models"
)

// Change is a single fact present in one scan but not the other.
type Change struct {
	Type   string `json:"type"`
	Data   string `json:"data"`
	Module string `json:"module"`
}

// TypeShift captures how the unique-fact count of one event type moved
// between the two scans.
type TypeShift struct {
	Type     string `json:"type"`
	Previous int    `json:"previous"`
	Current  int    `json:"current"`
}

// Result holds the complete delta between a previous and a current scan.
// Slice fields are non-nil so callers can range over them unconditionally.
type Result struct {
	Appeared    []Change    `json:"appeared"`
	Disappeared []Change    `json:"disappeared"`
	Shifts      []TypeShift `json:"shifts"`

	PreviousTotal int `json:"previous_total"`
	CurrentTotal  int `json:"current_total"`
}

// Unchanged reports whether the two scans discovered the same fact set.
func (r *Result) Unchanged() bool {
	return len(r.Appeared) == 0 && len(r.Disappeared) == 0
}

// Compare calculates the delta from previous to current. Events are keyed
// by their (type, data) fingerprint, so re-discoveries of the same fact via
// different provenance chains count once. The ROOT seed is ignored.
func Compare(previous, current []*models.StoredEvent) *Result {
	prev := uniqueFacts(previous)
	curr := uniqueFacts(current)

	res := &Result{
		Appeared:    []Change{},
		Disappeared: []Change{},
		Shifts:      []TypeShift{},

		PreviousTotal: len(prev),
		CurrentTotal:  len(curr),
	}

	for key, e := range curr {
		if _, exists := prev[key]; !exists {
			res.Appeared = append(res.Appeared, Change{Type: e.Type, Data: e.Data, Module: e.Module})
		}
	}
	for key, e := range prev {
		if _, exists := curr[key]; !exists {
			res.Disappeared = append(res.Disappeared, Change{Type: e.Type, Data: e.Data, Module: e.Module})
		}
	}

	sortChanges(res.Appeared)
	sortChanges(res.Disappeared)
	res.Shifts = typeShifts(prev, curr)

	return res
}

// uniqueFacts collapses a scan's stored events into one record per
// (type, data) pair, dropping the seed event.
func uniqueFacts(events []*models.StoredEvent) map[string]*models.StoredEvent {
	out := make(map[string]*models.StoredEvent, len(events))
	for _, e := range events {
		if e.Type == event.TypeRoot {
			continue
		}
		key := e.Hash
		if key == "" {
			key = event.Fingerprint(e.Type, e.Data)
		}
		if _, seen := out[key]; !seen {
			out[key] = e
		}
	}
	return out
}

func sortChanges(changes []Change) {
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Type != changes[j].Type {
			return changes[i].Type < changes[j].Type
		}
		return changes[i].Data < changes[j].Data
	})
}

// typeShifts builds the per-type count comparison, covering every type seen
// in either scan and sorted by type name.
func typeShifts(prev, curr map[string]*models.StoredEvent) []TypeShift {
	prevCounts := make(map[string]int)
	for _, e := range prev {
		prevCounts[e.Type]++
	}
	currCounts := make(map[string]int)
	for _, e := range curr {
		currCounts[e.Type]++
	}

	types := make(map[string]struct{}, len(prevCounts)+len(currCounts))
	for t := range prevCounts {
		types[t] = struct{}{}
	}
	for t := range currCounts {
		types[t] = struct{}{}
	}

	out := make([]TypeShift, 0, len(types))
	for t := range types {
		out = append(out, TypeShift{Type: t, Previous: prevCounts[t], Current: currCounts[t]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
