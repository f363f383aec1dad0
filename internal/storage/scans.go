package storage

import (
	"encoding/json"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/hakim/recongraph/internal/models"
)

// SaveScan persists a scan metadata record and indexes it under its target.
func (s *Store) SaveScan(meta *models.ScanMeta) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}

		scans := tx.Bucket([]byte(bucketScans))
		if err := scans.Put([]byte(meta.ID), data); err != nil {
			return err
		}

		// Update scan index (target -> []scan_id mapping)
		index := tx.Bucket([]byte(bucketScanIndex))
		targetKey := []byte(meta.Target)

		var scanIDs []string
		if existing := index.Get(targetKey); existing != nil {
			if err := json.Unmarshal(existing, &scanIDs); err != nil {
				return err
			}
		}

		found := false
		for _, id := range scanIDs {
			if id == meta.ID {
				found = true
				break
			}
		}
		if !found {
			scanIDs = append(scanIDs, meta.ID)
		}

		indexData, err := json.Marshal(scanIDs)
		if err != nil {
			return err
		}
		return index.Put(targetKey, indexData)
	})
}

// GetScan retrieves a scan metadata record by ID. Returns nil when missing.
func (s *Store) GetScan(id string) (*models.ScanMeta, error) {
	var meta *models.ScanMeta

	err := s.db.View(func(tx *bbolt.Tx) error {
		scans := tx.Bucket([]byte(bucketScans))
		data := scans.Get([]byte(id))
		if data == nil {
			return nil // Not found
		}

		meta = &models.ScanMeta{}
		return json.Unmarshal(data, meta)
	})

	return meta, err
}

// ListScans retrieves all scan metadata records for a target, newest first.
func (s *Store) ListScans(target string) ([]*models.ScanMeta, error) {
	var scans []*models.ScanMeta

	err := s.db.View(func(tx *bbolt.Tx) error {
		index := tx.Bucket([]byte(bucketScanIndex))
		data := index.Get([]byte(target))
		if data == nil {
			return nil // No scans for this target
		}

		var scanIDs []string
		if err := json.Unmarshal(data, &scanIDs); err != nil {
			return err
		}

		scansBucket := tx.Bucket([]byte(bucketScans))
		for _, id := range scanIDs {
			scanData := scansBucket.Get([]byte(id))
			if scanData != nil {
				var meta models.ScanMeta
				if err := json.Unmarshal(scanData, &meta); err != nil {
					return err
				}
				scans = append(scans, &meta)
			}
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	sort.Slice(scans, func(i, j int) bool {
		return scans[i].StartedAt.After(scans[j].StartedAt)
	})

	return scans, nil
}

// UpdateScanStatus updates the status of a scan and stamps CompletedAt when
// the status is terminal.
func (s *Store) UpdateScanStatus(id string, status models.ScanStatus) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		scans := tx.Bucket([]byte(bucketScans))

		data := scans.Get([]byte(id))
		if data == nil {
			return nil // Not found, no-op
		}

		var meta models.ScanMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}

		meta.Status = status

		if status.Terminal() && meta.CompletedAt == nil {
			now := time.Now()
			meta.CompletedAt = &now
		}

		updatedData, err := json.Marshal(&meta)
		if err != nil {
			return err
		}
		return scans.Put([]byte(id), updatedData)
	})
}
