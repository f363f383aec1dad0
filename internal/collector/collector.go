// Package collector defines the contract every intelligence collector
// implements and the shared base most of them embed.
package collector

import (
	"log/slog"

	"github.com/hakim/recongraph/internal/cache"
	"github.com/hakim/recongraph/internal/event"
	"github.com/hakim/recongraph/internal/netutil"
	"github.com/hakim/recongraph/internal/target"
)

// Meta describes a collector for listings and option screens.
type Meta struct {
	// Name is the human-readable title, distinct from the collector id.
	Name    string
	Summary string

	// Flags classify behavior, e.g. "apikey", "slow", "invasive", "errorprone".
	Flags []string

	// UseCases are the scan profiles the collector belongs to, e.g.
	// "Footprint", "Investigate", "Passive".
	UseCases []string

	// Categories groups collectors in listings, e.g. "DNS",
	// "Search Engines", "Reputation Systems".
	Categories []string

	// DataSource describes the external source, when there is one.
	DataSource *DataSource
}

// DataSource documents the external service a collector queries.
type DataSource struct {
	Website    string
	Model      string // e.g. FREE_NOAUTH_UNLIMITED, FREE_AUTH_LIMITED
	References []string

	// APIKeyInstructions tell the user how to obtain a key, one step per
	// entry. Empty for sources that need no authentication.
	APIKeyInstructions []string
}

// Context bundles the capabilities collectors are permitted to use for side
// effects. Anything beyond these is a contract violation.
type Context struct {
	Fetcher  *netutil.Fetcher
	Resolver *netutil.Resolver
	Cache    *cache.Cache
	TLDs     *netutil.SuffixSet
	Log      *slog.Logger
}

// Collector is implemented by every adapter. The controller calls the
// setters, then Setup, before any event flows; the bus then invokes
// HandleEvent concurrently for distinct events, so implementations must
// guard any mutable state of their own.
type Collector interface {
	// Name is the stable collector id used in subscriptions, options and
	// persistence.
	Name() string
	Meta() Meta

	// Opts returns the collector's option defaults; OptDescs the
	// human-readable description of each. The two maps must have
	// identical key sets.
	Opts() map[string]any
	OptDescs() map[string]string

	// Setup is called once per scan after the setters. It merges userOpts
	// over the defaults and prepares per-scan state. Calling it again
	// within the same scan must be harmless.
	Setup(ctx *Context, userOpts map[string]any) error

	// WatchedEvents declares the event types the collector consumes.
	// The single entry "*" means all types.
	WatchedEvents() []string

	// ProducedEvents declares every event type the collector may emit.
	// Emitting an undeclared type is dropped at the bus.
	ProducedEvents() []string

	// HandleEvent processes one delivered event. Long-running work must
	// poll CheckForStop between units and return early when it signals.
	HandleEvent(e *event.Event) error

	// Controller-called setters.
	SetTarget(t *target.Target)
	SetScanID(id string)
	SetEmitter(emit func(*event.Event))
	SetStop(stop func() bool)

	// ErrorState reports whether the collector has given up for this scan
	// (quota exhausted, repeated failures, missing key).
	ErrorState() bool
	SetErrorState()
}

// ValidateOptions checks the static invariant that every option has a
// description and vice versa.
func ValidateOptions(c Collector) bool {
	opts, descs := c.Opts(), c.OptDescs()
	if len(opts) != len(descs) {
		return false
	}
	for k := range opts {
		if _, ok := descs[k]; !ok {
			return false
		}
	}
	return true
}
