package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakim/recongraph/internal/event"
	"github.com/hakim/recongraph/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndGetScan(t *testing.T) {
	store := newTestStore(t)

	meta := models.NewScanMeta("first", "example.com", "INTERNET_NAME")
	meta.Collectors = []string{"dnsresolve", "whois"}
	require.NoError(t, store.SaveScan(meta))

	got, err := store.GetScan(meta.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, meta.ID, got.ID)
	assert.Equal(t, "example.com", got.Target)
	assert.Equal(t, "INTERNET_NAME", got.TargetType)
	assert.Equal(t, models.StatusInitializing, got.Status)
	assert.Equal(t, []string{"dnsresolve", "whois"}, got.Collectors)
}

func TestGetScan_Missing(t *testing.T) {
	store := newTestStore(t)
	got, err := store.GetScan("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListScans_NewestFirst(t *testing.T) {
	store := newTestStore(t)

	older := models.NewScanMeta("older", "example.com", "INTERNET_NAME")
	older.StartedAt = time.Now().Add(-time.Hour)
	newer := models.NewScanMeta("newer", "example.com", "INTERNET_NAME")
	other := models.NewScanMeta("other", "other.org", "INTERNET_NAME")

	require.NoError(t, store.SaveScan(older))
	require.NoError(t, store.SaveScan(newer))
	require.NoError(t, store.SaveScan(other))

	scans, err := store.ListScans("example.com")
	require.NoError(t, err)
	require.Len(t, scans, 2)
	assert.Equal(t, newer.ID, scans[0].ID)
	assert.Equal(t, older.ID, scans[1].ID)

	none, err := store.ListScans("unknown.example")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveScan_ReindexIsIdempotent(t *testing.T) {
	store := newTestStore(t)

	meta := models.NewScanMeta("scan", "example.com", "INTERNET_NAME")
	require.NoError(t, store.SaveScan(meta))
	meta.Status = models.StatusRunning
	require.NoError(t, store.SaveScan(meta))

	scans, err := store.ListScans("example.com")
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, models.StatusRunning, scans[0].Status)
}

func TestUpdateScanStatus(t *testing.T) {
	store := newTestStore(t)

	meta := models.NewScanMeta("scan", "example.com", "INTERNET_NAME")
	require.NoError(t, store.SaveScan(meta))

	require.NoError(t, store.UpdateScanStatus(meta.ID, models.StatusRunning))
	got, err := store.GetScan(meta.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, got.Status)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, store.UpdateScanStatus(meta.ID, models.StatusFinished))
	got, err = store.GetScan(meta.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, got.Status)
	require.NotNil(t, got.CompletedAt)

	// Unknown scan id is a no-op, not an error.
	assert.NoError(t, store.UpdateScanStatus("nope", models.StatusFinished))
}

func TestAppendAndListEvents(t *testing.T) {
	store := newTestStore(t)

	root, err := event.New(event.TypeRoot, "example.com", "", nil)
	require.NoError(t, err)
	name, err := event.New("INTERNET_NAME", "www.example.com", "dnsresolve", root)
	require.NoError(t, err)
	ip, err := event.New("IP_ADDRESS", "192.0.2.1", "dnsresolve", name)
	require.NoError(t, err)

	for _, e := range []*event.Event{root, name, ip} {
		require.NoError(t, store.AppendEvent("scan-1", e))
	}

	events, err := store.ScanEvents("scan-1")
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Publication order is preserved.
	assert.Equal(t, "ROOT", events[0].Type)
	assert.Equal(t, "INTERNET_NAME", events[1].Type)
	assert.Equal(t, "IP_ADDRESS", events[2].Type)

	// The parent pointer is flattened into hashes.
	assert.Equal(t, "ROOT", events[1].SourceHash)
	assert.Equal(t, name.Hash(), events[2].SourceHash)
	assert.Equal(t, ip.Hash(), events[2].Hash)
}

func TestScanEvents_Isolation(t *testing.T) {
	store := newTestStore(t)

	root, err := event.New(event.TypeRoot, "example.com", "", nil)
	require.NoError(t, err)
	require.NoError(t, store.AppendEvent("scan-a", root))

	events, err := store.ScanEvents("scan-b")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEventsByType(t *testing.T) {
	store := newTestStore(t)

	root, err := event.New(event.TypeRoot, "example.com", "", nil)
	require.NoError(t, err)
	require.NoError(t, store.AppendEvent("s", root))
	for _, ipAddr := range []string{"192.0.2.1", "192.0.2.2"} {
		e, err := event.New("IP_ADDRESS", ipAddr, "dnsresolve", root)
		require.NoError(t, err)
		require.NoError(t, store.AppendEvent("s", e))
	}

	ips, err := store.EventsByType("s", "IP_ADDRESS")
	require.NoError(t, err)
	require.Len(t, ips, 2)
	assert.Equal(t, "192.0.2.1", ips[0].Data)
	assert.Equal(t, "192.0.2.2", ips[1].Data)

	none, err := store.EventsByType("s", "DOMAIN_NAME")
	require.NoError(t, err)
	assert.Empty(t, none)
}
