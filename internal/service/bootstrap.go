package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/msomdec/habit-tracker/internal/domain"
	"github.com/msomdec/habit-tracker/internal/metrics"
)

// Habit is one tracked habit inside a snapshot payload.
type Habit struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// ChartLine is the chart mode written into default payloads. Clients may
// store any other mode; the server passes chartType through untouched.
const ChartLine = "line"

// MonthPayload is the typed view of the snapshot document written by
// bootstrap. Day keys in Data are days of the month.
type MonthPayload struct {
	Habits    []Habit                    `json:"habits"`
	Data      map[string]map[string]bool `json:"data"`
	ChartType string                     `json:"chartType,omitempty"`
}

// DefaultHabits seed every newly initialized month.
var DefaultHabits = []Habit{
	{ID: 1, Name: "Meditation", Color: "#8ecae6"},
	{ID: 2, Name: "Workout", Color: "#219ebc"},
	{ID: 3, Name: "Read 30 min", Color: "#ffd166"},
	{ID: 4, Name: "No sugar", Color: "#06d6a0"},
}

// DefaultPayload returns the document stored for a month that has no usable
// snapshot: the default habits, each with an empty completion map.
func DefaultPayload() json.RawMessage {
	p := MonthPayload{
		Habits:    DefaultHabits,
		Data:      make(map[string]map[string]bool, len(DefaultHabits)),
		ChartType: ChartLine,
	}
	for _, h := range DefaultHabits {
		p.Data[strconv.Itoa(h.ID)] = map[string]bool{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		panic(fmt.Sprintf("marshal default payload: %v", err))
	}
	return b
}

const maxEnsureAttempts = 3

// Bootstrapper makes sure a user has a usable snapshot for a month without
// overwriting state the user saved on purpose.
type Bootstrapper struct {
	snapshots domain.SnapshotRepository
	now       func() time.Time
}

// NewBootstrapper creates a Bootstrapper backed by the snapshot repository.
func NewBootstrapper(snapshots domain.SnapshotRepository) *Bootstrapper {
	return &Bootstrapper{snapshots: snapshots, now: time.Now}
}

// EnsureCurrent runs Ensure for the server clock's current year and month.
func (b *Bootstrapper) EnsureCurrent(ctx context.Context, userID int64) (*domain.Snapshot, error) {
	now := b.now()
	return b.Ensure(ctx, userID, now.Year(), int(now.Month())-1)
}

// Ensure returns the snapshot for the key, first writing the default
// payload when the snapshot is absent, is not a JSON object, or lacks the
// "habits" or "data" keys. Present-but-empty values are kept as they are.
func (b *Bootstrapper) Ensure(ctx context.Context, userID int64, year, month int) (*domain.Snapshot, error) {
	if month < 0 || month > 11 {
		return nil, fmt.Errorf("%w: month must be between 0 and 11", domain.ErrInvalidInput)
	}

	// Writes are conditional on what was read, so a save that lands between
	// the read and the write wins and is returned instead of the defaults.
	for range maxEnsureAttempts {
		existing, err := b.snapshots.Get(ctx, userID, year, month)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("get snapshot: %w", err)
		}

		if existing != nil && !NeedsDefaults(existing.Payload) {
			metrics.RecordBootstrap(false)
			return existing, nil
		}

		created := &domain.Snapshot{
			UserID:  userID,
			Year:    year,
			Month:   month,
			Payload: DefaultPayload(),
		}

		var written bool
		if existing == nil {
			written, err = b.snapshots.InsertIfAbsent(ctx, created)
		} else {
			written, err = b.snapshots.ReplaceIf(ctx, created, existing.Payload)
		}
		if err != nil {
			return nil, fmt.Errorf("create default snapshot: %w", err)
		}
		if !written {
			continue
		}

		slog.Info("snapshot initialized with defaults",
			"user_id", userID, "year", year, "month", month, "replaced", existing != nil)
		metrics.RecordBootstrap(true)
		return created, nil
	}

	return nil, fmt.Errorf("snapshot for %d-%02d kept changing during bootstrap", year, month+1)
}

// NeedsDefaults reports whether a stored payload must be replaced by the
// default document. Only structural absence counts: {"habits":[],"data":{}}
// is a legitimate saved state.
func NeedsDefaults(payload json.RawMessage) bool {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return true
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return true
	}

	_, hasHabits := fields["habits"]
	_, hasData := fields["data"]
	return !hasHabits || !hasData
}
