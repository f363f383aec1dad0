// Package collectors contains the built-in collector implementations and
// the registry through which the framework discovers them.
package collectors

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hakim/recongraph/internal/collector"
)

var (
	regMu     sync.Mutex
	factories = make(map[string]func() collector.Collector)
)

// Register makes a collector constructor available under its id. Called
// from init functions; registering the same id twice is a programming error.
func Register(id string, factory func() collector.Collector) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, dup := factories[id]; dup {
		panic(fmt.Sprintf("collectors: duplicate registration of %q", id))
	}
	factories[id] = factory
}

// IDs returns every registered collector id, sorted.
func IDs() []string {
	regMu.Lock()
	defer regMu.Unlock()
	out := make([]string, 0, len(factories))
	for id := range factories {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Create instantiates one collector by id.
func Create(id string) (collector.Collector, error) {
	regMu.Lock()
	factory, ok := factories[id]
	regMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("collectors: unknown collector %q", id)
	}
	return factory(), nil
}

// CreateSet instantiates the named collectors; an empty list means all
// registered collectors.
func CreateSet(ids []string) ([]collector.Collector, error) {
	if len(ids) == 0 {
		ids = IDs()
	}
	out := make([]collector.Collector, 0, len(ids))
	for _, id := range ids {
		c, err := Create(id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
