// Package postgres implements the domain repositories on PostgreSQL through
// the pgx database/sql driver, with schema migrations applied by goose.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/msomdec/habit-tracker/internal/domain"
	"github.com/msomdec/habit-tracker/internal/repository/postgres/migrations"
	"github.com/pressly/goose/v3"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// DB is the PostgreSQL implementation of domain.Database.
type DB struct {
	SqlDB *sql.DB

	users     *UserRepository
	snapshots *SnapshotRepository
}

var _ domain.Database = (*DB)(nil)

// Open connects to the database at dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*DB, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return NewWithDB(sqlDB), nil
}

// NewWithDB wraps an existing connection pool.
func NewWithDB(sqlDB *sql.DB) *DB {
	return &DB{
		SqlDB:     sqlDB,
		users:     NewUserRepository(sqlDB),
		snapshots: NewSnapshotRepository(sqlDB),
	}
}

// gooseUp is a seam for testing goose.UpContext.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded goose migrations.
func (db *DB) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := gooseUp(ctx, db.SqlDB, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.SqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.SqlDB.Close()
}

// Users returns the user repository.
func (db *DB) Users() domain.UserRepository {
	return db.users
}

// Snapshots returns the monthly snapshot repository.
func (db *DB) Snapshots() domain.SnapshotRepository {
	return db.snapshots
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
