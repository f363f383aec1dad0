// Package models holds the persisted record types shared by the storage
// layer and the scan controller.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ScanStatus represents the current state of a scan.
type ScanStatus string

const (
	StatusInitializing   ScanStatus = "INITIALIZING"
	StatusStarting       ScanStatus = "STARTING"
	StatusRunning        ScanStatus = "RUNNING"
	StatusAbortRequested ScanStatus = "ABORT-REQUESTED"
	StatusAborting       ScanStatus = "ABORTING"
	StatusAborted        ScanStatus = "ABORTED"
	StatusFinished       ScanStatus = "FINISHED"
	StatusErrorFailed    ScanStatus = "ERROR-FAILED"
	StatusFailedInit     ScanStatus = "FAILED-INIT"
)

// Terminal reports whether the status is an end state.
func (s ScanStatus) Terminal() bool {
	switch s {
	case StatusAborted, StatusFinished, StatusErrorFailed, StatusFailedInit:
		return true
	}
	return false
}

// ScanMeta contains metadata about a scan.
type ScanMeta struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Target      string     `json:"target"`
	TargetType  string     `json:"target_type"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      ScanStatus `json:"status"`
	Collectors  []string   `json:"collectors,omitempty"`
}

// NewScanMeta creates scan metadata with a fresh id.
func NewScanMeta(name, targetValue, targetType string) *ScanMeta {
	if name == "" {
		name = targetValue
	}
	return &ScanMeta{
		ID:         uuid.New().String(),
		Name:       name,
		Target:     targetValue,
		TargetType: targetType,
		StartedAt:  time.Now(),
		Status:     StatusInitializing,
	}
}

// StoredEvent is the flattened form of an event for persistence. The
// in-memory parent pointer becomes the source hash so records stay
// self-contained.
type StoredEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Data       string    `json:"data"`
	Module     string    `json:"module"`
	Hash       string    `json:"hash"`
	SourceHash string    `json:"source_hash"`
	Generated  time.Time `json:"generated"`
	Confidence int       `json:"confidence"`
	Visibility int       `json:"visibility"`
	Risk       int       `json:"risk"`

	ActualSource     string `json:"actual_source,omitempty"`
	ModuleDataSource string `json:"module_data_source,omitempty"`
}
