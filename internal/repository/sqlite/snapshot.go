package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/habit-tracker/internal/domain"
)

// SnapshotRepository implements domain.SnapshotRepository using SQLite.
// Payloads are stored as JSON text.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new SQLite-backed SnapshotRepository.
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db.SqlDB}
}

func (r *SnapshotRepository) Get(ctx context.Context, userID int64, year, month int) (*domain.Snapshot, error) {
	s, err := scanSnapshot(r.db.QueryRowContext(ctx,
		`SELECT id, user_id, year, month, payload, created_at, updated_at
		 FROM snapshots WHERE user_id = ? AND year = ? AND month = ?`,
		userID, year, month,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	return s, nil
}

// Upsert relies on the UNIQUE (user_id, year, month) constraint: a second
// writer for the same key lands in the DO UPDATE branch instead of inserting.
func (r *SnapshotRepository) Upsert(ctx context.Context, snapshot *domain.Snapshot) error {
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO snapshots (user_id, year, month, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, year, month) DO UPDATE SET
		   payload = excluded.payload,
		   updated_at = excluded.updated_at
		 RETURNING id`,
		snapshot.UserID, snapshot.Year, snapshot.Month, string(snapshot.Payload), now, now,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}

	var createdAt time.Time
	if err := tx.QueryRowContext(ctx,
		`SELECT created_at FROM snapshots WHERE id = ?`, id,
	).Scan(&createdAt); err != nil {
		return fmt.Errorf("query snapshot created_at: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	snapshot.ID = id
	snapshot.CreatedAt = createdAt
	snapshot.UpdatedAt = now
	return nil
}

// InsertIfAbsent uses DO NOTHING on conflict, so RETURNING yields no row
// when another writer got there first.
func (r *SnapshotRepository) InsertIfAbsent(ctx context.Context, snapshot *domain.Snapshot) (bool, error) {
	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO snapshots (user_id, year, month, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, year, month) DO NOTHING
		 RETURNING id`,
		snapshot.UserID, snapshot.Year, snapshot.Month, string(snapshot.Payload), now, now,
	).Scan(&snapshot.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert snapshot: %w", err)
	}
	snapshot.CreatedAt = now
	snapshot.UpdatedAt = now
	return true, nil
}

func (r *SnapshotRepository) ReplaceIf(ctx context.Context, snapshot *domain.Snapshot, expected json.RawMessage) (bool, error) {
	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx,
		`UPDATE snapshots SET payload = ?, updated_at = ?
		 WHERE user_id = ? AND year = ? AND month = ? AND payload = ?
		 RETURNING id, created_at`,
		string(snapshot.Payload), now, snapshot.UserID, snapshot.Year, snapshot.Month, string(expected),
	).Scan(&snapshot.ID, &snapshot.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("replace snapshot: %w", err)
	}
	snapshot.UpdatedAt = now
	return true, nil
}

func (r *SnapshotRepository) ListYear(ctx context.Context, userID int64, year int) ([]domain.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, year, month, payload, created_at, updated_at
		 FROM snapshots WHERE user_id = ? AND year = ? ORDER BY month`,
		userID, year,
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshots for year: %w", err)
	}
	defer rows.Close()

	var snapshots []domain.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, *s)
	}
	return snapshots, rows.Err()
}

func scanSnapshot(row rowScanner) (*domain.Snapshot, error) {
	s := &domain.Snapshot{}
	var payload string
	if err := row.Scan(&s.ID, &s.UserID, &s.Year, &s.Month, &payload, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Payload = json.RawMessage(payload)
	return s, nil
}
