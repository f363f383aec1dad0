package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakim/recongraph/internal/event"
	"github.com/hakim/recongraph/internal/models"
)

func stored(eventType, data, module string) *models.StoredEvent {
	return &models.StoredEvent{
		Type:   eventType,
		Data:   data,
		Module: module,
		Hash:   event.Fingerprint(eventType, data),
	}
}

func TestCompare_AppearedAndDisappeared(t *testing.T) {
	previous := []*models.StoredEvent{
		stored("ROOT", "example.com", ""),
		stored("IP_ADDRESS", "192.0.2.1", "dnsresolve"),
		stored("INTERNET_NAME", "old.example.com", "dnsresolve"),
	}
	current := []*models.StoredEvent{
		stored("ROOT", "example.com", ""),
		stored("IP_ADDRESS", "192.0.2.1", "dnsresolve"),
		stored("INTERNET_NAME", "new.example.com", "dnsresolve"),
		stored("TCP_PORT_OPEN", "192.0.2.1:443", "portscan"),
	}

	res := Compare(previous, current)

	require.Len(t, res.Appeared, 2)
	assert.Equal(t, Change{Type: "INTERNET_NAME", Data: "new.example.com", Module: "dnsresolve"}, res.Appeared[0])
	assert.Equal(t, Change{Type: "TCP_PORT_OPEN", Data: "192.0.2.1:443", Module: "portscan"}, res.Appeared[1])

	require.Len(t, res.Disappeared, 1)
	assert.Equal(t, "old.example.com", res.Disappeared[0].Data)

	assert.Equal(t, 2, res.PreviousTotal)
	assert.Equal(t, 3, res.CurrentTotal)
	assert.False(t, res.Unchanged())
}

func TestCompare_RediscoveryCountsOnce(t *testing.T) {
	// The same fact stored twice for provenance is still one result.
	current := []*models.StoredEvent{
		stored("IP_ADDRESS", "192.0.2.1", "dnsresolve"),
		stored("IP_ADDRESS", "192.0.2.1", "sslcert"),
	}

	res := Compare(nil, current)

	assert.Equal(t, 1, res.CurrentTotal)
	require.Len(t, res.Appeared, 1)
	assert.Equal(t, "dnsresolve", res.Appeared[0].Module)
}

func TestCompare_SeedIgnored(t *testing.T) {
	previous := []*models.StoredEvent{stored("ROOT", "example.com", "")}
	current := []*models.StoredEvent{stored("ROOT", "example.com", "")}

	res := Compare(previous, current)

	assert.True(t, res.Unchanged())
	assert.Equal(t, 0, res.PreviousTotal)
	assert.Equal(t, 0, res.CurrentTotal)
	assert.Empty(t, res.Shifts)
}

func TestCompare_MissingHashRecomputed(t *testing.T) {
	withHash := stored("IP_ADDRESS", "192.0.2.1", "dnsresolve")
	noHash := &models.StoredEvent{Type: "IP_ADDRESS", Data: "192.0.2.1", Module: "dnsresolve"}

	res := Compare([]*models.StoredEvent{withHash}, []*models.StoredEvent{noHash})
	assert.True(t, res.Unchanged())
}

func TestCompare_Shifts(t *testing.T) {
	previous := []*models.StoredEvent{
		stored("INTERNET_NAME", "a.example.com", "dnsresolve"),
		stored("INTERNET_NAME", "b.example.com", "dnsresolve"),
	}
	current := []*models.StoredEvent{
		stored("INTERNET_NAME", "a.example.com", "dnsresolve"),
		stored("EMAILADDR", "x@example.com", "email"),
	}

	res := Compare(previous, current)

	require.Len(t, res.Shifts, 2)
	assert.Equal(t, TypeShift{Type: "EMAILADDR", Previous: 0, Current: 1}, res.Shifts[0])
	assert.Equal(t, TypeShift{Type: "INTERNET_NAME", Previous: 2, Current: 1}, res.Shifts[1])
}
