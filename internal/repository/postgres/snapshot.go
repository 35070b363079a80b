package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/msomdec/habit-tracker/internal/domain"
)

// SnapshotRepository implements domain.SnapshotRepository using PostgreSQL.
// Payloads live in a JSONB column, so key order and whitespace are
// normalized by the server.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new Postgres-backed SnapshotRepository.
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) Get(ctx context.Context, userID int64, year, month int) (*domain.Snapshot, error) {
	s := &domain.Snapshot{}
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, year, month, payload, created_at, updated_at
		 FROM snapshots WHERE user_id = $1 AND year = $2 AND month = $3`,
		userID, year, month,
	).Scan(&s.ID, &s.UserID, &s.Year, &s.Month, &payload, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	s.Payload = payload
	return s, nil
}

// Upsert is a single INSERT ... ON CONFLICT statement; the unique constraint
// on (user_id, year, month) turns a racing insert into an update.
func (r *SnapshotRepository) Upsert(ctx context.Context, snapshot *domain.Snapshot) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO snapshots (user_id, year, month, payload)
		 VALUES ($1, $2, $3, $4::jsonb)
		 ON CONFLICT (user_id, year, month) DO UPDATE SET
		   payload = EXCLUDED.payload,
		   updated_at = now()
		 RETURNING id, created_at, updated_at`,
		snapshot.UserID, snapshot.Year, snapshot.Month, string(snapshot.Payload),
	).Scan(&snapshot.ID, &snapshot.CreatedAt, &snapshot.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) InsertIfAbsent(ctx context.Context, snapshot *domain.Snapshot) (bool, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO snapshots (user_id, year, month, payload)
		 VALUES ($1, $2, $3, $4::jsonb)
		 ON CONFLICT (user_id, year, month) DO NOTHING
		 RETURNING id, created_at, updated_at`,
		snapshot.UserID, snapshot.Year, snapshot.Month, string(snapshot.Payload),
	).Scan(&snapshot.ID, &snapshot.CreatedAt, &snapshot.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert snapshot: %w", err)
	}
	return true, nil
}

// ReplaceIf compares as jsonb, so formatting differences in expected do not
// matter.
func (r *SnapshotRepository) ReplaceIf(ctx context.Context, snapshot *domain.Snapshot, expected json.RawMessage) (bool, error) {
	err := r.db.QueryRowContext(ctx,
		`UPDATE snapshots SET payload = $1::jsonb, updated_at = now()
		 WHERE user_id = $2 AND year = $3 AND month = $4 AND payload = $5::jsonb
		 RETURNING id, created_at, updated_at`,
		string(snapshot.Payload), snapshot.UserID, snapshot.Year, snapshot.Month, string(expected),
	).Scan(&snapshot.ID, &snapshot.CreatedAt, &snapshot.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("replace snapshot: %w", err)
	}
	return true, nil
}

func (r *SnapshotRepository) ListYear(ctx context.Context, userID int64, year int) ([]domain.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, year, month, payload, created_at, updated_at
		 FROM snapshots WHERE user_id = $1 AND year = $2 ORDER BY month`,
		userID, year,
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshots for year: %w", err)
	}
	defer rows.Close()

	var snapshots []domain.Snapshot
	for rows.Next() {
		var s domain.Snapshot
		var payload []byte
		if err := rows.Scan(&s.ID, &s.UserID, &s.Year, &s.Month, &payload, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		s.Payload = payload
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}
