package bus

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakim/recongraph/internal/collector"
	"github.com/hakim/recongraph/internal/event"
	"github.com/hakim/recongraph/internal/scope"
	"github.com/hakim/recongraph/internal/target"
)

// stubCollector is a minimal collector whose routing and handler behavior
// each test configures directly.
type stubCollector struct {
	collector.Base
	watches  []string
	produces []string
	handler  func(*event.Event) error

	mu       sync.Mutex
	received []*event.Event
}

func newStub(id string, watches, produces []string, handler func(*event.Event) error) *stubCollector {
	s := &stubCollector{watches: watches, produces: produces, handler: handler}
	s.Init(id)
	s.Configure(nil, nil, nil)
	return s
}

func (s *stubCollector) Meta() collector.Meta        { return collector.Meta{Name: s.Name()} }
func (s *stubCollector) Opts() map[string]any        { return map[string]any{} }
func (s *stubCollector) OptDescs() map[string]string { return map[string]string{} }
func (s *stubCollector) Setup(ctx *collector.Context, opts map[string]any) error {
	s.Configure(ctx, s.Opts(), opts)
	return nil
}
func (s *stubCollector) WatchedEvents() []string  { return s.watches }
func (s *stubCollector) ProducedEvents() []string { return s.produces }

func (s *stubCollector) HandleEvent(e *event.Event) error {
	s.mu.Lock()
	s.received = append(s.received, e)
	s.mu.Unlock()
	if s.handler != nil {
		return s.handler(e)
	}
	return nil
}

func (s *stubCollector) events() []*event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*event.Event, len(s.received))
	copy(out, s.received)
	return out
}

func (s *stubCollector) eventData() []string {
	var out []string
	for _, e := range s.events() {
		out = append(out, e.Data)
	}
	return out
}

func newTestScope(t *testing.T) *scope.Store {
	t.Helper()
	tgt, err := target.New("example.com", "INTERNET_NAME")
	require.NoError(t, err)
	return scope.New(tgt, 0)
}

func newTestBus(t *testing.T, cfg Config, cols ...collector.Collector) *Bus {
	t.Helper()
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	b := New(cfg, newTestScope(t), cols)
	for _, c := range cols {
		c.SetEmitter(b.Publish)
	}
	b.Start()
	t.Cleanup(func() { b.Shutdown(time.Second) })
	return b
}

func mustRoot(t *testing.T) *event.Event {
	t.Helper()
	root, err := event.New(event.TypeRoot, "example.com", "", nil)
	require.NoError(t, err)
	return root
}

func TestPublish_DeliversToWatchers(t *testing.T) {
	watcher := newStub("watcher", []string{"IP_ADDRESS"}, nil, nil)
	other := newStub("other", []string{"DOMAIN_NAME"}, nil, nil)
	b := newTestBus(t, Config{ScanID: "s1"}, watcher, other)

	root := mustRoot(t)
	b.Publish(root)
	e, err := event.New("IP_ADDRESS", "192.0.2.1", "seedmod", root)
	require.NoError(t, err)
	b.Publish(e)

	require.True(t, b.WaitIdle(2*time.Second))
	assert.Equal(t, []string{"192.0.2.1"}, watcher.eventData())
	assert.Empty(t, other.events())
}

func TestPublish_WildcardAndParentSubscriptions(t *testing.T) {
	wildcard := newStub("wildcard", []string{"*"}, nil, nil)
	parent := newStub("parent", []string{"INTERNET_NAME"}, nil, nil)
	b := newTestBus(t, Config{}, wildcard, parent)

	root := mustRoot(t)
	b.Publish(root)
	// DOMAIN_NAME specializes INTERNET_NAME, so both stubs receive it.
	e, err := event.New("DOMAIN_NAME", "example.com", "seedmod", root)
	require.NoError(t, err)
	b.Publish(e)

	require.True(t, b.WaitIdle(2*time.Second))
	assert.Equal(t, []string{"example.com"}, parent.eventData())
	// The wildcard watcher sees the root event too.
	assert.Len(t, wildcard.events(), 2)
}

func TestPublish_DropsUnregisteredType(t *testing.T) {
	wildcard := newStub("wildcard", []string{"*"}, nil, nil)
	b := newTestBus(t, Config{}, wildcard)

	b.Publish(&event.Event{Type: "NO_SUCH_TYPE", Data: "x"})

	require.True(t, b.WaitIdle(time.Second))
	assert.Empty(t, wildcard.events())
}

func TestPublish_DropsUndeclaredProducerType(t *testing.T) {
	producer := newStub("producer", nil, []string{"IP_ADDRESS"}, nil)
	watcher := newStub("watcher", []string{"DOMAIN_NAME", "IP_ADDRESS"}, nil, nil)
	b := newTestBus(t, Config{}, producer, watcher)

	root := mustRoot(t)
	b.Publish(root)

	declared, err := event.New("IP_ADDRESS", "192.0.2.1", "producer", root)
	require.NoError(t, err)
	b.Publish(declared)

	undeclared, err := event.New("DOMAIN_NAME", "example.com", "producer", root)
	require.NoError(t, err)
	b.Publish(undeclared)

	// Events from modules the bus does not manage pass the gate.
	seed, err := event.New("DOMAIN_NAME", "seed.example.com", "framework", root)
	require.NoError(t, err)
	b.Publish(seed)

	require.True(t, b.WaitIdle(2*time.Second))
	assert.ElementsMatch(t, []string{"192.0.2.1", "seed.example.com"}, watcher.eventData())
}

func TestPublish_DeduplicatesAcrossCollectors(t *testing.T) {
	watcher := newStub("watcher", []string{"IP_ADDRESS"}, nil, nil)
	b := newTestBus(t, Config{}, watcher)

	root := mustRoot(t)
	b.Publish(root)

	first, err := event.New("IP_ADDRESS", "192.0.2.1", "modA", root)
	require.NoError(t, err)
	dup, err := event.New("IP_ADDRESS", "192.0.2.1", "modB", root)
	require.NoError(t, err)

	b.Publish(first)
	b.Publish(dup)

	require.True(t, b.WaitIdle(2*time.Second))
	assert.Equal(t, []string{"192.0.2.1"}, watcher.eventData())
}

func TestPublish_StoresDuplicatesWithoutDelivery(t *testing.T) {
	store := &memStore{}
	watcher := newStub("watcher", []string{"IP_ADDRESS"}, nil, nil)
	b := newTestBus(t, Config{ScanID: "s1", Store: store}, watcher)

	root := mustRoot(t)
	b.Publish(root)

	first, err := event.New("IP_ADDRESS", "192.0.2.1", "modA", root)
	require.NoError(t, err)
	dup, err := event.New("IP_ADDRESS", "192.0.2.1", "modB", root)
	require.NoError(t, err)
	b.Publish(first)
	b.Publish(dup)

	require.True(t, b.WaitIdle(2*time.Second))
	// Both edges persisted, one delivery.
	assert.Equal(t, 3, store.count())
	assert.Len(t, watcher.events(), 1)
}

func TestPublish_AncestryRepeatStoredOnly(t *testing.T) {
	watcher := newStub("watcher", []string{"INTERNET_NAME"}, nil, nil)
	b := newTestBus(t, Config{}, watcher)

	root := mustRoot(t)
	b.Publish(root)

	name, err := event.New("INTERNET_NAME", "www.example.com", "modA", root)
	require.NoError(t, err)
	b.Publish(name)
	require.True(t, b.WaitIdle(2*time.Second))

	ip, err := event.New("IP_ADDRESS", "192.0.2.1", "modA", name)
	require.NoError(t, err)
	loop, err := event.New("INTERNET_NAME", "WWW.EXAMPLE.COM", "modB", ip)
	require.NoError(t, err)
	b.Publish(loop)

	require.True(t, b.WaitIdle(2*time.Second))
	assert.Equal(t, []string{"www.example.com"}, watcher.eventData())
}

func TestTransitiveEmission(t *testing.T) {
	// resolver turns names into addresses; scanner consumes addresses.
	var resolver *stubCollector
	resolver = newStub("resolver", []string{"INTERNET_NAME"}, []string{"IP_ADDRESS"},
		func(e *event.Event) error {
			resolver.EmitEvent("IP_ADDRESS", "192.0.2.1", e)
			return nil
		})
	scanner := newStub("scanner", []string{"IP_ADDRESS"}, nil, nil)
	b := newTestBus(t, Config{}, resolver, scanner)

	root := mustRoot(t)
	b.Publish(root)
	name, err := event.New("INTERNET_NAME", "www.example.com", "framework", root)
	require.NoError(t, err)
	b.Publish(name)

	require.True(t, b.WaitIdle(2*time.Second))
	assert.Equal(t, []string{"192.0.2.1"}, scanner.eventData())
	// Provenance chains through the intermediate event.
	require.Len(t, scanner.events(), 1)
	assert.Equal(t, name.Hash(), scanner.events()[0].SourceHash)
}

func TestErrorBudget_DisablesCollector(t *testing.T) {
	flaky := newStub("flaky", []string{"IP_ADDRESS"}, nil,
		func(e *event.Event) error { return errors.New("boom") })
	healthy := newStub("healthy", []string{"IP_ADDRESS"}, nil, nil)
	b := newTestBus(t, Config{MaxHandlerErrors: 3}, flaky, healthy)

	root := mustRoot(t)
	b.Publish(root)
	for i := 0; i < 6; i++ {
		e, err := event.New("IP_ADDRESS", fmt.Sprintf("192.0.2.%d", i), "framework", root)
		require.NoError(t, err)
		b.Publish(e)
		require.True(t, b.WaitIdle(2*time.Second))
	}

	// The failing collector was cut off at its budget; the healthy one saw
	// every event.
	assert.True(t, flaky.ErrorState())
	assert.Equal(t, 3, b.FailureCount("flaky"))
	assert.Len(t, flaky.events(), 3)
	assert.Len(t, healthy.events(), 6)
}

func TestPanicIsolation(t *testing.T) {
	panicky := newStub("panicky", []string{"IP_ADDRESS"}, nil,
		func(e *event.Event) error { panic("kaboom") })
	healthy := newStub("zhealthy", []string{"IP_ADDRESS"}, nil, nil)
	b := newTestBus(t, Config{MaxHandlerErrors: 5}, panicky, healthy)

	root := mustRoot(t)
	b.Publish(root)
	e, err := event.New("IP_ADDRESS", "192.0.2.1", "framework", root)
	require.NoError(t, err)
	b.Publish(e)

	require.True(t, b.WaitIdle(2*time.Second))
	// Delivery order is collector-id ascending, so the panic happened before
	// the healthy collector's turn and must not have suppressed it.
	assert.Len(t, healthy.events(), 1)
	assert.Equal(t, 1, b.FailureCount("panicky"))
}

func TestStop_DropsQueuedAndFutureEvents(t *testing.T) {
	release := make(chan struct{})
	slow := newStub("slow", []string{"IP_ADDRESS"}, nil,
		func(e *event.Event) error {
			<-release
			return nil
		})
	b := newTestBus(t, Config{Workers: 1}, slow)

	root := mustRoot(t)
	b.Publish(root)
	for i := 0; i < 5; i++ {
		e, err := event.New("IP_ADDRESS", fmt.Sprintf("192.0.2.%d", i), "framework", root)
		require.NoError(t, err)
		b.Publish(e)
	}

	// Let the single worker pick up the first event, then stop.
	time.Sleep(50 * time.Millisecond)
	b.Stop()
	close(release)

	require.True(t, b.WaitIdle(2*time.Second))
	assert.LessOrEqual(t, len(slow.events()), 2)

	// Publish after stop is a no-op.
	late, err := event.New("IP_ADDRESS", "198.51.100.1", "framework", root)
	require.NoError(t, err)
	b.Publish(late)
	assert.NotContains(t, slow.eventData(), "198.51.100.1")
}

func TestWaitIdle_Timeout(t *testing.T) {
	release := make(chan struct{})
	slow := newStub("slow", []string{"IP_ADDRESS"}, nil,
		func(e *event.Event) error {
			<-release
			return nil
		})
	defer close(release)
	b := newTestBus(t, Config{Workers: 1}, slow)

	root := mustRoot(t)
	b.Publish(root)
	e, err := event.New("IP_ADDRESS", "192.0.2.1", "framework", root)
	require.NoError(t, err)
	b.Publish(e)

	assert.False(t, b.WaitIdle(100*time.Millisecond))
}

func TestSinkObservesEverything(t *testing.T) {
	var mu sync.Mutex
	var sunk []string
	sink := func(e *event.Event) {
		mu.Lock()
		sunk = append(sunk, e.Type)
		mu.Unlock()
	}
	watcher := newStub("watcher", []string{"IP_ADDRESS"}, nil, nil)
	b := newTestBus(t, Config{Sink: sink}, watcher)

	root := mustRoot(t)
	b.Publish(root)
	e, err := event.New("IP_ADDRESS", "192.0.2.1", "framework", root)
	require.NoError(t, err)
	b.Publish(e)
	dup, err := event.New("IP_ADDRESS", "192.0.2.1", "framework", root)
	require.NoError(t, err)
	b.Publish(dup)

	require.True(t, b.WaitIdle(2*time.Second))
	mu.Lock()
	defer mu.Unlock()
	// Duplicates reach the sink even though they are not re-delivered.
	assert.Equal(t, []string{"ROOT", "IP_ADDRESS", "IP_ADDRESS"}, sunk)
}

// memStore is an in-memory EventStore for bus tests.
type memStore struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *memStore) AppendEvent(scanID string, e *event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}
