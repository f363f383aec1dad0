// Package bus routes published events to every collector subscribed to
// their type. It owns the delivery queue, the worker pool, the idle barrier
// used for termination detection, and failure isolation around collector
// handlers.
package bus

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hakim/recongraph/internal/collector"
	"github.com/hakim/recongraph/internal/event"
	"github.com/hakim/recongraph/internal/scope"
)

// EventStore receives every event that passes the registry gate, duplicates
// included, so the provenance graph stays complete.
type EventStore interface {
	AppendEvent(scanID string, e *event.Event) error
}

// Config controls a Bus for one scan.
type Config struct {
	ScanID string

	// Workers bounds the delivery pool.
	Workers int

	// MaxHandlerErrors flips a collector into error state once its
	// recovered failure count passes this threshold.
	MaxHandlerErrors int

	// Store persists events; optional.
	Store EventStore

	// Sink observes every published event as it is accepted; optional.
	Sink func(*event.Event)

	Log *slog.Logger
}

// Bus is the per-scan dispatcher. Publish may be called from any goroutine;
// delivery fans out each event to its subscribers in collector-id order,
// with distinct events progressing in parallel across the worker pool.
type Bus struct {
	cfg   Config
	scope *scope.Store
	log   *slog.Logger

	collectors map[string]collector.Collector
	subs       map[string][]string // watched type -> sorted collector ids

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*event.Event
	pending int // queued + in delivery
	stopped bool

	errMu     sync.Mutex
	errCounts map[string]int

	workers sync.WaitGroup
	started bool
}

// New builds a bus over the given collectors and scope store.
func New(cfg Config, sc *scope.Store, collectors []collector.Collector) *Bus {
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.MaxHandlerErrors <= 0 {
		cfg.MaxHandlerErrors = 5
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	b := &Bus{
		cfg:        cfg,
		scope:      sc,
		log:        log.With("scan_id", cfg.ScanID),
		collectors: make(map[string]collector.Collector, len(collectors)),
		subs:       make(map[string][]string),
		errCounts:  make(map[string]int),
	}
	b.cond = sync.NewCond(&b.mu)

	for _, c := range collectors {
		b.collectors[c.Name()] = c
		for _, watched := range c.WatchedEvents() {
			b.subs[watched] = append(b.subs[watched], c.Name())
		}
	}
	for t := range b.subs {
		sort.Strings(b.subs[t])
	}
	return b
}

// Start launches the worker pool. Must be called once before Publish.
func (b *Bus) Start() {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	for i := 0; i < b.cfg.Workers; i++ {
		b.workers.Add(1)
		go b.worker()
	}
}

// Publish runs an event through the registry, producer-declaration and
// scoping gates, persists it, and enqueues it for delivery. Events that
// fail a gate are dropped (or stored without delivery, for duplicates and
// ancestry repeats).
func (b *Bus) Publish(e *event.Event) {
	if e == nil {
		return
	}

	if !event.IsRegistered(e.Type) {
		b.log.Warn("dropping event with unregistered type", "type", e.Type, "module", e.Module)
		return
	}

	// A collector may only emit types it declared. Seed events carry an
	// empty module or one the bus does not manage.
	if c, ok := b.collectors[e.Module]; ok && !produces(c, e.Type) {
		b.log.Warn("dropping undeclared event type; collector bug",
			"type", e.Type, "collector", e.Module)
		return
	}

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	// Persist and surface everything that passed the registry gate, so
	// the stored graph keeps duplicate source->fact edges.
	if b.cfg.Store != nil {
		if err := b.cfg.Store.AppendEvent(b.cfg.ScanID, e); err != nil {
			b.log.Error("failed to persist event", "type", e.Type, "err", err)
		}
	}
	if b.cfg.Sink != nil {
		b.cfg.Sink(e)
	}

	// A fact that already appears in its own ancestry was fully processed
	// when it first occurred; re-delivering it would loop the graph.
	if e.InAncestry() {
		b.log.Debug("event repeats its own ancestry; stored only", "type", e.Type)
		return
	}

	if !b.scope.MarkSeen(e) {
		b.log.Debug("duplicate fact; stored only", "type", e.Type)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.queue = append(b.queue, e)
	b.pending++
	b.cond.Broadcast()
}

// worker pops queued events and fans each one out to its subscribers.
func (b *Bus) worker() {
	defer b.workers.Done()
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.stopped {
			b.cond.Wait()
		}
		if b.stopped && len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		e := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()

		b.deliver(e)

		b.mu.Lock()
		b.pending--
		if b.pending == 0 {
			b.cond.Broadcast()
		}
		b.mu.Unlock()
	}
}

// deliver invokes every subscriber's handler for the event, in collector-id
// ascending order. A failing handler never suppresses delivery to the rest.
func (b *Bus) deliver(e *event.Event) {
	for _, id := range b.subscribers(e.Type) {
		b.mu.Lock()
		stopped := b.stopped
		b.mu.Unlock()
		if stopped {
			return
		}

		c := b.collectors[id]
		if c.ErrorState() {
			continue
		}

		if err := b.handleSafe(c, e); err != nil {
			b.recordFailure(c, e, err)
		}
	}
}

// subscribers resolves the collectors interested in an event type: direct
// watchers, watchers of any parent tag, and wildcard watchers.
func (b *Bus) subscribers(eventType string) []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(list []string) {
		for _, id := range list {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	add(b.subs[eventType])
	for _, parent := range event.Parents(eventType) {
		add(b.subs[parent])
	}
	add(b.subs["*"])

	sort.Strings(ids)
	return ids
}

// handleSafe isolates one handler invocation: a panic becomes an error and
// the scan continues.
func (b *Bus) handleSafe(c collector.Collector, e *event.Event) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("collector %q panicked handling %s: %v", c.Name(), e.Type, r)
		}
	}()
	return c.HandleEvent(e)
}

// recordFailure logs a handler error and flips the collector into error
// state once it has failed too often.
func (b *Bus) recordFailure(c collector.Collector, e *event.Event, err error) {
	b.errMu.Lock()
	b.errCounts[c.Name()]++
	count := b.errCounts[c.Name()]
	b.errMu.Unlock()

	b.log.Warn("collector handler failed",
		"collector", c.Name(), "event", e.Type, "failures", count, "err", err)

	if count >= b.cfg.MaxHandlerErrors && !c.ErrorState() {
		b.log.Warn("collector exceeded failure budget; disabling for this scan",
			"collector", c.Name())
		c.SetErrorState()
	}
}

// FailureCount returns how many handler failures the collector accumulated.
func (b *Bus) FailureCount(collectorID string) int {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	return b.errCounts[collectorID]
}

// WaitIdle blocks until the idle barrier rises: the queue is empty and no
// handler is in flight. Returns false if the wait exceeded timeout
// (zero means wait forever).
func (b *Bus) WaitIdle(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		b.mu.Lock()
		for b.pending > 0 {
			b.cond.Wait()
		}
		b.mu.Unlock()
		close(done)
	}()

	if timeout <= 0 {
		<-done
		return true
	}
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Stop drains the queue of undelivered events and wakes everything up.
// In-flight handlers run to their next cooperative check; Publish becomes a
// no-op from this instant.
func (b *Bus) Stop() {
	b.mu.Lock()
	b.stopped = true
	b.pending -= len(b.queue)
	b.queue = nil
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Shutdown stops the bus and waits up to grace for workers to exit.
// Returns false when workers were still busy past the grace period.
func (b *Bus) Shutdown(grace time.Duration) bool {
	b.Stop()

	done := make(chan struct{})
	go func() {
		b.workers.Wait()
		close(done)
	}()
	if grace <= 0 {
		<-done
		return true
	}
	select {
	case <-done:
		return true
	case <-time.After(grace):
		return false
	}
}

func produces(c collector.Collector, eventType string) bool {
	for _, t := range c.ProducedEvents() {
		if t == eventType {
			return true
		}
	}
	return false
}
