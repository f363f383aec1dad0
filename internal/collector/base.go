package collector

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cast"

	"github.com/hakim/recongraph/internal/event"
	"github.com/hakim/recongraph/internal/target"
)

// Base carries the state and plumbing shared by every collector: merged
// options, the capability context, the emitter callback, the stop predicate
// and the per-scan result memory. Embed it and override the contract
// methods that matter.
type Base struct {
	id string

	ctx    *Context
	opts   map[string]any
	target *target.Target
	scanID string

	emit func(*event.Event)
	stop func() bool

	errorState atomic.Bool

	// results is optional per-collector dedupe so a collector can skip
	// values it already processed. Not a correctness requirement; the
	// scope store enforces the real invariant.
	resultsMu sync.Mutex
	results   map[string]struct{}
}

// Init sets the collector id. Called from each collector's constructor.
func (b *Base) Init(id string) {
	b.id = id
}

// Name returns the collector id.
func (b *Base) Name() string { return b.id }

// Configure merges userOpts over defaults and stores the capability
// context. Idempotent within a scan: a second call rebuilds the same state.
func (b *Base) Configure(ctx *Context, defaults, userOpts map[string]any) {
	b.ctx = ctx
	b.opts = make(map[string]any, len(defaults)+len(userOpts))
	for k, v := range defaults {
		b.opts[k] = v
	}
	for k, v := range userOpts {
		b.opts[k] = v
	}
	b.resultsMu.Lock()
	b.results = make(map[string]struct{})
	b.resultsMu.Unlock()
	b.errorState.Store(false)
}

// Ctx returns the capability context.
func (b *Base) Ctx() *Context { return b.ctx }

// SetTarget assigns the scan target.
func (b *Base) SetTarget(t *target.Target) { b.target = t }

// Target returns the scan target.
func (b *Base) Target() *target.Target { return b.target }

// SetScanID assigns the scan id.
func (b *Base) SetScanID(id string) { b.scanID = id }

// ScanID returns the scan id.
func (b *Base) ScanID() string { return b.scanID }

// SetEmitter installs the publication callback the bus provides.
func (b *Base) SetEmitter(emit func(*event.Event)) { b.emit = emit }

// SetStop installs the cancellation predicate.
func (b *Base) SetStop(stop func() bool) { b.stop = stop }

// CheckForStop reports whether the collector should stop working: either
// the scan was cancelled or the collector is in error state.
func (b *Base) CheckForStop() bool {
	if b.errorState.Load() {
		return true
	}
	return b.stop != nil && b.stop()
}

// ErrorState reports whether the collector has given up for this scan.
func (b *Base) ErrorState() bool { return b.errorState.Load() }

// SetErrorState marks the collector as done for this scan.
func (b *Base) SetErrorState() { b.errorState.Store(true) }

// Notify publishes a new event to the bus. Events from a collector in error
// state or a cancelled scan are dropped.
func (b *Base) Notify(e *event.Event) {
	if e == nil || b.emit == nil {
		return
	}
	if b.CheckForStop() {
		return
	}
	b.emit(e)
}

// NewEvent builds an event attributed to this collector, parented to the
// event currently being handled.
func (b *Base) NewEvent(eventType, data string, source *event.Event) (*event.Event, error) {
	return event.New(eventType, data, b.id, source)
}

// EmitEvent is NewEvent followed by Notify; construction failures are
// logged at debug and swallowed, which suits the common "emit if valid"
// call sites.
func (b *Base) EmitEvent(eventType, data string, source *event.Event) {
	e, err := b.NewEvent(eventType, data, source)
	if err != nil {
		b.Debug("dropping malformed event", "type", eventType, "err", err)
		return
	}
	b.Notify(e)
}

// AlreadyProcessed records the value and reports whether this collector had
// processed it before within the scan.
func (b *Base) AlreadyProcessed(value string) bool {
	key := strings.ToLower(value)
	b.resultsMu.Lock()
	defer b.resultsMu.Unlock()
	if _, ok := b.results[key]; ok {
		return true
	}
	b.results[key] = struct{}{}
	return false
}

// Option accessors. Missing options yield zero values; collectors declare
// their defaults in Opts so lookups normally hit.

func (b *Base) OptString(name string) string {
	return cast.ToString(b.opts[name])
}

func (b *Base) OptInt(name string) int {
	return cast.ToInt(b.opts[name])
}

func (b *Base) OptBool(name string) bool {
	return cast.ToBool(b.opts[name])
}

// FetchTimeout returns the framework HTTP timeout as a duration.
func (b *Base) FetchTimeout() time.Duration {
	secs := b.OptInt("_fetchtimeout")
	if secs <= 0 {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}

// CacheGet reads from this collector's cache namespace.
func (b *Base) CacheGet(key string, maxAgeHours int) []byte {
	if b.ctx == nil || b.ctx.Cache == nil {
		return nil
	}
	return b.ctx.Cache.Get(b.id, key, time.Duration(maxAgeHours)*time.Hour)
}

// CachePut writes to this collector's cache namespace.
func (b *Base) CachePut(key string, value []byte) {
	if b.ctx == nil || b.ctx.Cache == nil {
		return
	}
	if err := b.ctx.Cache.Put(b.id, key, value); err != nil {
		b.Debug("cache write failed", "key", key, "err", err)
	}
}

// Logger returns this collector's logger, scoped with the collector id and
// scan id.
func (b *Base) Logger() *slog.Logger {
	if b.ctx == nil || b.ctx.Log == nil {
		return slog.Default()
	}
	return b.ctx.Log.With("collector", b.id, "scan_id", b.scanID)
}

// Debug, Info and Error log through the collector's scoped logger.
func (b *Base) Debug(msg string, args ...any) { b.Logger().Debug(msg, args...) }
func (b *Base) Info(msg string, args ...any)  { b.Logger().Info(msg, args...) }
func (b *Base) Error(msg string, args ...any) { b.Logger().Error(msg, args...) }

// Errorf logs the error and returns it, for handler tails.
func (b *Base) Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	b.Error(err.Error())
	return err
}
