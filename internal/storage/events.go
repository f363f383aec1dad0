package storage

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/hakim/recongraph/internal/event"
	"github.com/hakim/recongraph/internal/models"
)

// AppendEvent stores one published event under its scan. Events are
// append-only: keys are a per-scan sequence number so insertion order is
// preserved on iteration.
func (s *Store) AppendEvent(scanID string, e *event.Event) error {
	rec := models.StoredEvent{
		ID:               e.ID,
		Type:             e.Type,
		Data:             e.Data,
		Module:           e.Module,
		Hash:             e.Hash(),
		SourceHash:       e.SourceHash,
		Generated:        e.Generated,
		Confidence:       e.Confidence,
		Visibility:       e.Visibility,
		Risk:             e.Risk,
		ActualSource:     e.ActualSource,
		ModuleDataSource: e.ModuleDataSource,
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		events := tx.Bucket([]byte(bucketEvents))
		scanBucket, err := events.CreateBucketIfNotExists([]byte(scanID))
		if err != nil {
			return err
		}

		seq, err := scanBucket.NextSequence()
		if err != nil {
			return err
		}

		data, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		return scanBucket.Put([]byte(fmt.Sprintf("%016d", seq)), data)
	})
}

// ScanEvents returns every stored event of a scan in publication order.
func (s *Store) ScanEvents(scanID string) ([]*models.StoredEvent, error) {
	var out []*models.StoredEvent

	err := s.db.View(func(tx *bbolt.Tx) error {
		events := tx.Bucket([]byte(bucketEvents))
		scanBucket := events.Bucket([]byte(scanID))
		if scanBucket == nil {
			return nil // No events for this scan
		}

		return scanBucket.ForEach(func(_, v []byte) error {
			var rec models.StoredEvent
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, &rec)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

// EventsByType returns a scan's stored events of one type, in publication
// order. Later correlation queries go through here.
func (s *Store) EventsByType(scanID, eventType string) ([]*models.StoredEvent, error) {
	all, err := s.ScanEvents(scanID)
	if err != nil {
		return nil, err
	}

	var out []*models.StoredEvent
	for _, rec := range all {
		if rec.Type == eventType {
			out = append(out, rec)
		}
	}
	return out, nil
}
