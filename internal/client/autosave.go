package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Saver is the part of Client the AutoSaver needs.
type Saver interface {
	Save(ctx context.Context, year, month int, payload json.RawMessage) (*Snapshot, error)
}

type monthKey struct{ year, month int }

// AutoSaver pushes local edits to the server after a quiet period. Saves are
// fire-and-forget: failures are logged and never reach the caller, and the
// next edit simply tries again with the newest payload.
type AutoSaver struct {
	saver   Saver
	delay   time.Duration
	timeout time.Duration

	mu      sync.Mutex
	pending map[monthKey]json.RawMessage
	timer   *time.Timer
	wg      sync.WaitGroup
	closed  bool
}

// NewAutoSaver creates an AutoSaver that waits delay after the last edit
// before saving.
func NewAutoSaver(saver Saver, delay time.Duration) *AutoSaver {
	return &AutoSaver{
		saver:   saver,
		delay:   delay,
		timeout: 10 * time.Second,
		pending: make(map[monthKey]json.RawMessage),
	}
}

// Push records the latest payload for a month and (re)arms the timer.
// Only the newest payload per month is sent.
func (a *AutoSaver) Push(year, month int, payload json.RawMessage) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	a.pending[monthKey{year, month}] = payload
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, a.flushAsync)
}

func (a *AutoSaver) flushAsync() {
	a.mu.Lock()
	batch := a.takePending()
	if len(batch) > 0 {
		a.wg.Add(1)
	}
	a.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	defer a.wg.Done()
	a.save(context.Background(), batch)
}

// Flush saves everything pending now and waits for in-flight saves.
func (a *AutoSaver) Flush(ctx context.Context) {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
	}
	batch := a.takePending()
	a.mu.Unlock()

	a.save(ctx, batch)
	a.wg.Wait()
}

// Close flushes and stops accepting edits.
func (a *AutoSaver) Close(ctx context.Context) {
	a.Flush(ctx)
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
}

// takePending must be called with mu held.
func (a *AutoSaver) takePending() map[monthKey]json.RawMessage {
	batch := a.pending
	a.pending = make(map[monthKey]json.RawMessage)
	return batch
}

func (a *AutoSaver) save(ctx context.Context, batch map[monthKey]json.RawMessage) {
	for key, payload := range batch {
		saveCtx, cancel := context.WithTimeout(ctx, a.timeout)
		if _, err := a.saver.Save(saveCtx, key.year, key.month, payload); err != nil {
			slog.Warn("autosave failed", "year", key.year, "month", key.month, "error", err)
		} else {
			slog.Debug("autosaved", "year", key.year, "month", key.month)
		}
		cancel()
	}
}
