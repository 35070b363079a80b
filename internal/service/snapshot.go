package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/msomdec/habit-tracker/internal/domain"
)

// SnapshotService reads and writes a user's monthly snapshots. It never
// creates defaults on read; that is the Bootstrapper's job.
type SnapshotService struct {
	snapshots domain.SnapshotRepository
}

// NewSnapshotService creates a new SnapshotService.
func NewSnapshotService(snapshots domain.SnapshotRepository) *SnapshotService {
	return &SnapshotService{snapshots: snapshots}
}

// Get returns domain.ErrNotFound when the month has never been saved.
func (s *SnapshotService) Get(ctx context.Context, userID int64, year, month int) (*domain.Snapshot, error) {
	if err := validateMonth(month); err != nil {
		return nil, err
	}
	return s.snapshots.Get(ctx, userID, year, month)
}

// Save replaces the month's payload, creating the snapshot if needed.
func (s *SnapshotService) Save(ctx context.Context, userID int64, year, month int, payload json.RawMessage) (*domain.Snapshot, error) {
	if err := validateMonth(month); err != nil {
		return nil, err
	}
	if !isJSONObject(payload) {
		return nil, fmt.Errorf("%w: payload must be an object", domain.ErrInvalidInput)
	}

	snapshot := &domain.Snapshot{
		UserID:  userID,
		Year:    year,
		Month:   month,
		Payload: payload,
	}
	if err := s.snapshots.Upsert(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	return snapshot, nil
}

// SavedMonths returns the months of year that have a snapshot, ascending.
func (s *SnapshotService) SavedMonths(ctx context.Context, userID int64, year int) ([]int, error) {
	snapshots, err := s.snapshots.ListYear(ctx, userID, year)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	months := make([]int, 0, len(snapshots))
	for _, sn := range snapshots {
		months = append(months, sn.Month)
	}
	return months, nil
}

func validateMonth(month int) error {
	if month < 0 || month > 11 {
		return fmt.Errorf("%w: month must be between 0 and 11", domain.ErrInvalidInput)
	}
	return nil
}

func isJSONObject(payload json.RawMessage) bool {
	trimmed := bytes.TrimSpace(payload)
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}
