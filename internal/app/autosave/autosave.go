// Package autosave keeps a user's stored gamification document in sync with
// in-memory state. Changes are detected by comparing full JSON snapshots,
// writes are debounced through a single re-armable timer, and failures are
// surfaced as a sticky status instead of rolling state back.
package autosave

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/myeasy-ai/fitquest/internal/domain"
	"github.com/myeasy-ai/fitquest/internal/infra/metrics"
)

// DefaultDebounce is the quiet period before a pending change is written.
const DefaultDebounce = 2 * time.Second

// Save triggers, used as a metrics label.
const (
	triggerDebounce = "debounce"
	triggerFlush    = "flush"
	triggerClose    = "close"
)

// Status is a point-in-time view of the saver.
type Status struct {
	Pending     bool      `json:"pending"`
	Saving      bool      `json:"saving"`
	LastSavedAt time.Time `json:"lastSavedAt,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
}

// Option configures an AutoSaver.
type Option func(*AutoSaver)

// WithDebounce sets the quiet period. Non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(a *AutoSaver) {
		if d > 0 {
			a.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *AutoSaver) {
		if l != nil {
			a.log = l
		}
	}
}

// WithSaveTimeout bounds a single timer-driven write.
func WithSaveTimeout(d time.Duration) Option {
	return func(a *AutoSaver) {
		if d > 0 {
			a.saveTimeout = d
		}
	}
}

// AutoSaver debounces writes of one user's state.
type AutoSaver struct {
	userID      string
	store       domain.StateSaver
	debounce    time.Duration
	saveTimeout time.Duration
	log         *slog.Logger

	mu          sync.Mutex
	timer       *time.Timer
	gen         uint64 // bumped whenever the armed timer is superseded
	pending     *domain.GamificationState
	pendingJSON []byte
	lastSaved   []byte
	lastSavedAt time.Time
	lastErr     error
	saving      int
	closed      bool

	saveMu sync.Mutex // one write at a time
}

// New creates an AutoSaver for userID.
func New(userID string, store domain.StateSaver, opts ...Option) *AutoSaver {
	a := &AutoSaver{
		userID:      userID,
		store:       store,
		debounce:    DefaultDebounce,
		saveTimeout: 10 * time.Second,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With("component", "autosave", "user_id", userID)
	return a
}

// MarkSaved records state as the stored baseline without writing it.
func (a *AutoSaver) MarkSaved(state domain.GamificationState) {
	raw, err := json.Marshal(state)
	if err != nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastSaved = raw
}

// Observe schedules a write of state after the quiet period. A state equal
// to the last saved one clears any pending write. It reports whether a
// write is now scheduled.
func (a *AutoSaver) Observe(state domain.GamificationState) bool {
	raw, err := json.Marshal(state)
	if err != nil {
		a.log.Error("encode state", "error", err)
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return false
	}
	if bytes.Equal(raw, a.lastSaved) {
		a.stopLocked()
		a.pending, a.pendingJSON = nil, nil
		return false
	}

	a.pending, a.pendingJSON = &state, raw
	a.stopLocked()
	gen := a.gen
	a.timer = time.AfterFunc(a.debounce, func() { a.fire(gen) })
	return true
}

// Flush cancels the timer and writes any pending state now. It returns true
// when nothing is left unsaved.
func (a *AutoSaver) Flush(ctx context.Context) bool {
	return a.flush(ctx, triggerFlush)
}

// Cancel drops the armed timer. The pending state stays pending.
func (a *AutoSaver) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

// Close flushes pending state and refuses further observations. The write
// is best effort: ctx bounds how long it may take.
func (a *AutoSaver) Close(ctx context.Context) bool {
	ok := a.flush(ctx, triggerClose)
	a.mu.Lock()
	a.closed = true
	a.stopLocked()
	a.mu.Unlock()
	return ok
}

// Status reports pending, in-flight and sticky error state.
func (a *AutoSaver) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Status{
		Pending:     a.pending != nil,
		Saving:      a.saving > 0,
		LastSavedAt: a.lastSavedAt,
	}
	if a.lastErr != nil {
		s.LastError = a.lastErr.Error()
	}
	return s
}

// LastError returns the sticky error of the most recent failed write, or nil
// once a later write succeeded.
func (a *AutoSaver) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

func (a *AutoSaver) stopLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.gen++
}

func (a *AutoSaver) fire(gen uint64) {
	a.mu.Lock()
	if gen != a.gen || a.pending == nil {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), a.saveTimeout)
	defer cancel()
	a.write(ctx, triggerDebounce)
}

func (a *AutoSaver) flush(ctx context.Context, trigger string) bool {
	a.Cancel()
	a.mu.Lock()
	hasPending := a.pending != nil
	a.mu.Unlock()
	if !hasPending {
		return true
	}
	return a.write(ctx, trigger)
}

// write saves the pending state. Writes are serialized; whichever state is
// pending when the write lock is taken is the one written.
func (a *AutoSaver) write(ctx context.Context, trigger string) bool {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	if a.pending == nil {
		a.mu.Unlock()
		return true
	}
	state, raw := *a.pending, a.pendingJSON
	a.saving++
	a.mu.Unlock()

	start := time.Now()
	err := a.store.Save(ctx, a.userID, state)
	metrics.SaveLatency.Observe(time.Since(start).Seconds())

	a.mu.Lock()
	defer a.mu.Unlock()
	a.saving--

	if err != nil {
		a.lastErr = fmt.Errorf("%w: %w", domain.ErrSaveFailed, err)
		metrics.StateSaves.WithLabelValues(trigger, "error").Inc()
		a.log.Warn("save failed", "trigger", trigger, "error", err)
		return false
	}

	a.lastSaved = raw
	a.lastSavedAt = time.Now()
	a.lastErr = nil
	if bytes.Equal(a.pendingJSON, raw) {
		a.pending, a.pendingJSON = nil, nil
	}
	metrics.StateSaves.WithLabelValues(trigger, "ok").Inc()
	a.log.Debug("state saved", "trigger", trigger, "duration", time.Since(start))
	return true
}
