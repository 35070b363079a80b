package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Snapshot is one month of a user's habit tracking state. Month is 0-based
// (0 = January). Payload is stored and returned as an opaque JSON document.
type Snapshot struct {
	ID        int64
	UserID    int64
	Year      int
	Month     int
	Payload   json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SnapshotRepository persists at most one snapshot per (user, year, month).
type SnapshotRepository interface {
	// Get returns ErrNotFound when the key has no snapshot.
	Get(ctx context.Context, userID int64, year, month int) (*Snapshot, error)
	// Upsert inserts the snapshot or replaces the payload of the existing
	// row for the same key in a single statement. ID and timestamps are set
	// on the passed snapshot.
	Upsert(ctx context.Context, snapshot *Snapshot) error
	// InsertIfAbsent inserts the snapshot only when the key has no row and
	// reports whether it did. An existing row is left untouched.
	InsertIfAbsent(ctx context.Context, snapshot *Snapshot) (bool, error)
	// ReplaceIf replaces the payload only while the stored payload still
	// equals expected, and reports whether it did.
	ReplaceIf(ctx context.Context, snapshot *Snapshot, expected json.RawMessage) (bool, error)
	// ListYear returns the user's snapshots for a year ordered by month.
	ListYear(ctx context.Context, userID int64, year int) ([]Snapshot, error)
}
