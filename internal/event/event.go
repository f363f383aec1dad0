package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is a single fact discovered during a scan. Events are immutable once
// published: collectors may adjust confidence/visibility/risk between
// construction and publication, never after.
type Event struct {
	// ID uniquely identifies this event instance within the scan.
	ID string `json:"id"`

	// Type is a tag from the registry, e.g. IP_ADDRESS.
	Type string `json:"type"`

	// Data is the payload, interpreted per type. Complex types carry a
	// JSON-encoded blob.
	Data string `json:"data"`

	// Module names the collector that produced the event; empty only for
	// the ROOT event.
	Module string `json:"module"`

	// Source is the parent event that caused this one; nil only for ROOT.
	// Children always reference an earlier-constructed event, so the
	// provenance chain is acyclic by construction.
	Source *Event `json:"-"`

	// SourceHash is the fingerprint of Source, or "ROOT".
	SourceHash string `json:"source_hash"`

	// Generated is the creation timestamp.
	Generated time.Time `json:"generated"`

	Confidence int `json:"confidence"`
	Visibility int `json:"visibility"`
	Risk       int `json:"risk"`

	// ActualSource optionally documents where the fact physically came
	// from, e.g. a URL.
	ActualSource string `json:"actual_source,omitempty"`

	// ModuleDataSource optionally names the upstream data source.
	ModuleDataSource string `json:"module_data_source,omitempty"`
}

// New constructs an event. source must be nil only when eventType is ROOT.
// Confidence, visibility and risk are inherited from the source event;
// the root defaults to 100/100/0.
func New(eventType, data, module string, source *Event) (*Event, error) {
	if eventType == "" {
		return nil, fmt.Errorf("event: type is empty")
	}
	if !IsRegistered(eventType) {
		return nil, fmt.Errorf("event: unknown type %q", eventType)
	}
	if data == "" {
		return nil, fmt.Errorf("event: data is empty for type %s", eventType)
	}

	e := &Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		Data:       data,
		Module:     module,
		Generated:  time.Now(),
		Confidence: 100,
		Visibility: 100,
		Risk:       0,
	}

	if eventType == TypeRoot {
		e.SourceHash = TypeRoot
		return e, nil
	}

	if source == nil {
		return nil, fmt.Errorf("event: %s has no source event", eventType)
	}
	if module == "" {
		return nil, fmt.Errorf("event: module is empty for non-root type %s", eventType)
	}

	e.Source = source
	e.SourceHash = source.Hash()
	e.Confidence = source.Confidence
	e.Visibility = source.Visibility
	e.Risk = source.Risk

	return e, nil
}

// SetConfidence overrides the inherited confidence. Valid before publication only.
func (e *Event) SetConfidence(v int) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("event: confidence %d out of range 0-100", v)
	}
	e.Confidence = v
	return nil
}

// SetVisibility overrides the inherited visibility.
func (e *Event) SetVisibility(v int) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("event: visibility %d out of range 0-100", v)
	}
	e.Visibility = v
	return nil
}

// SetRisk overrides the inherited risk.
func (e *Event) SetRisk(v int) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("event: risk %d out of range 0-100", v)
	}
	e.Risk = v
	return nil
}

// Fingerprint is the stable hash of a (type, data) pair, used by the dedup
// store and as the event hash.
func Fingerprint(eventType, data string) string {
	h := sha256.New()
	h.Write([]byte(eventType))
	h.Write([]byte{0})
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the event's fingerprint, or the literal "ROOT" for the root
// event.
func (e *Event) Hash() string {
	if e.Type == TypeRoot {
		return TypeRoot
	}
	return Fingerprint(e.Type, e.Data)
}

// RootHash returns the hash of the event's furthest ancestor. It feeds the
// scoping decision: the same fact reached from two different roots is two
// distinct discoveries.
func (e *Event) RootHash() string {
	cur := e
	for cur.Source != nil {
		cur = cur.Source
	}
	return cur.Hash()
}

// Ancestors returns the provenance chain from the immediate parent up to the
// root, nearest first.
func (e *Event) Ancestors() []*Event {
	var out []*Event
	for cur := e.Source; cur != nil; cur = cur.Source {
		out = append(out, cur)
	}
	return out
}

// InAncestry reports whether an ancestor of this event already carries the
// same (type, data) pair, data compared case-insensitively. Such events are
// stored for the provenance graph but not re-delivered, since the original
// occurrence has already triggered every interested collector.
func (e *Event) InAncestry() bool {
	data := strings.ToLower(e.Data)
	for cur := e.Source; cur != nil; cur = cur.Source {
		if cur.Type == e.Type && strings.ToLower(cur.Data) == data {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer for log output. Long payloads are truncated.
func (e *Event) String() string {
	data := e.Data
	if len(data) > 80 {
		data = data[:77] + "..."
	}
	return fmt.Sprintf("%s: %s", e.Type, data)
}
