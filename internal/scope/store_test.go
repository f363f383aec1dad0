package scope

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakim/recongraph/internal/event"
	"github.com/hakim/recongraph/internal/target"
)

func newStore(t *testing.T, maxCohost int) (*Store, *event.Event) {
	t.Helper()
	tgt, err := target.New("example.com", "INTERNET_NAME")
	require.NoError(t, err)
	root, err := event.New(event.TypeRoot, "example.com", "", nil)
	require.NoError(t, err)
	return New(tgt, maxCohost), root
}

func mustEvent(t *testing.T, typ, data, module string, source *event.Event) *event.Event {
	t.Helper()
	e, err := event.New(typ, data, module, source)
	require.NoError(t, err)
	return e
}

func TestMarkSeen_RootAlwaysPasses(t *testing.T) {
	store, root := newStore(t, 0)
	assert.True(t, store.MarkSeen(root))
	assert.True(t, store.MarkSeen(root))
}

func TestMarkSeen_DeduplicatesAcrossCollectors(t *testing.T) {
	store, root := newStore(t, 0)

	first := mustEvent(t, "IP_ADDRESS", "192.0.2.1", "dnsresolve", root)
	second := mustEvent(t, "IP_ADDRESS", "192.0.2.1", "portscan", root)

	assert.True(t, store.MarkSeen(first))
	assert.False(t, store.MarkSeen(second))
}

func TestMarkSeen_RecordsEverySource(t *testing.T) {
	store, root := newStore(t, 0)

	parentA := mustEvent(t, "INTERNET_NAME", "a.example.com", "dnsresolve", root)
	parentB := mustEvent(t, "INTERNET_NAME", "b.example.com", "dnsresolve", root)
	require.True(t, store.MarkSeen(parentA))
	require.True(t, store.MarkSeen(parentB))

	fromA := mustEvent(t, "IP_ADDRESS", "192.0.2.1", "dnsresolve", parentA)
	fromB := mustEvent(t, "IP_ADDRESS", "192.0.2.1", "dnsresolve", parentB)

	assert.True(t, store.MarkSeen(fromA))
	assert.False(t, store.MarkSeen(fromB))

	// Both provenance edges survive even though only the first delivery won.
	assert.True(t, store.SeenFrom(fromA, parentA.Hash()))
	assert.True(t, store.SeenFrom(fromB, parentB.Hash()))
	assert.False(t, store.SeenFrom(fromA, "unknown"))
}

func TestMarkSeen_RawTypesIgnoreAncestry(t *testing.T) {
	store, root := newStore(t, 0)

	name := mustEvent(t, "INTERNET_NAME", "www.example.com", "dnsresolve", root)
	require.True(t, store.MarkSeen(name))

	// Same page body reached via two different parents is still one fact.
	viaRoot := mustEvent(t, "TARGET_WEB_CONTENT", "<html>hi</html>", "webfetch", root)
	viaName := mustEvent(t, "TARGET_WEB_CONTENT", "<html>hi</html>", "webfetch", name)

	assert.True(t, store.MarkSeen(viaRoot))
	assert.False(t, store.MarkSeen(viaName))
}

func TestMarkSeen_CohostCeilingPerCollector(t *testing.T) {
	store, root := newStore(t, 3)

	for i := 0; i < 3; i++ {
		e := mustEvent(t, "CO_HOSTED_SITE", fmt.Sprintf("site%d.example.org", i), "cohost", root)
		assert.True(t, store.MarkSeen(e), "emission %d", i)
	}

	over := mustEvent(t, "CO_HOSTED_SITE", "site99.example.org", "cohost", root)
	assert.False(t, store.MarkSeen(over))
	assert.Equal(t, 3, store.CohostCount("cohost"))

	// A different collector has its own budget.
	other := mustEvent(t, "CO_HOSTED_SITE", "site100.example.org", "sslcert", root)
	assert.True(t, store.MarkSeen(other))
}

func TestMarkSeen_CohostDuplicatesDoNotConsumeBudget(t *testing.T) {
	store, root := newStore(t, 2)

	site := mustEvent(t, "CO_HOSTED_SITE", "site1.example.org", "cohost", root)
	assert.True(t, store.MarkSeen(site))

	// Re-emitting the same fact is suppressed without spending the ceiling.
	repeat := mustEvent(t, "CO_HOSTED_SITE", "site1.example.org", "cohost", root)
	assert.False(t, store.MarkSeen(repeat))
	assert.Equal(t, 1, store.CohostCount("cohost"))

	second := mustEvent(t, "CO_HOSTED_SITE", "site2.example.org", "cohost", root)
	assert.True(t, store.MarkSeen(second))
	assert.Equal(t, 2, store.CohostCount("cohost"))
}

func TestMarkSeen_CohostUnlimitedWhenZero(t *testing.T) {
	store, root := newStore(t, 0)
	for i := 0; i < 50; i++ {
		e := mustEvent(t, "CO_HOSTED_SITE", fmt.Sprintf("site%d.example.org", i), "cohost", root)
		require.True(t, store.MarkSeen(e))
	}
	assert.Equal(t, 0, store.CohostCount("cohost"))
}

func TestMarkSeen_Concurrent(t *testing.T) {
	store, root := newStore(t, 0)

	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan int, workers)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			count := 0
			for i := 0; i < 100; i++ {
				e := mustEvent(t, "IP_ADDRESS", fmt.Sprintf("192.0.2.%d", i%250), "dnsresolve", root)
				if store.MarkSeen(e) {
					count++
				}
			}
			wins <- count
		}()
	}
	wg.Wait()
	close(wins)

	total := 0
	for c := range wins {
		total += c
	}
	// 100 distinct facts, each accepted exactly once across all workers.
	assert.Equal(t, 100, total)
}

func TestRecordAlias(t *testing.T) {
	store, _ := newStore(t, 0)
	store.RecordAlias("192.0.2.1", "IP_ADDRESS")
	assert.True(t, store.Target().Matches("192.0.2.1", false, false))
}
