// Package retention drops aged-out calls from the ledger and optionally
// moves them to a cold archive.
package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/newthinker/verdict/internal/core"
	"github.com/newthinker/verdict/internal/storage/archive"
	"go.uber.org/zap"
)

// DefaultWindow is how long a call stays in the ledger.
const DefaultWindow = 90 * 24 * time.Hour

// Trim splits calls into those still inside the window and those older
// than it. Order is preserved in both.
func Trim(calls []core.Call, now time.Time, window time.Duration) (kept, purged []core.Call) {
	if window <= 0 {
		window = DefaultWindow
	}
	kept = make([]core.Call, 0, len(calls))
	for _, c := range calls {
		if c.Age(now) > window {
			purged = append(purged, c)
			continue
		}
		kept = append(kept, c)
	}
	return kept, purged
}

// Batch is one archived set of purged calls.
type Batch struct {
	PurgedAt time.Time   `json:"purgedAt"`
	Calls    []core.Call `json:"calls"`
}

// Manager applies the retention window and archives what it removes.
type Manager struct {
	window  time.Duration
	archive archive.Storage
	logger  *zap.Logger
}

// NewManager creates a Manager. A nil store disables archiving.
func NewManager(window time.Duration, store archive.Storage, logger *zap.Logger) *Manager {
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{window: window, archive: store, logger: logger}
}

// Window returns the retention window.
func (m *Manager) Window() time.Duration {
	return m.window
}

// Trim applies the manager's window.
func (m *Manager) Trim(calls []core.Call, now time.Time) (kept, purged []core.Call) {
	return Trim(calls, now, m.window)
}

// BatchPath returns the archive path for calls purged at cycle time t.
func BatchPath(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("purged/%04d/%02d/%02d/%s.json", t.Year(), t.Month(), t.Day(), t.Format("20060102T150405.000Z"))
}

// Archive writes purged calls to cold storage. It is best effort: failures
// are logged and returned but the ledger is already committed.
func (m *Manager) Archive(ctx context.Context, purged []core.Call, at time.Time) error {
	if m.archive == nil || len(purged) == 0 {
		return nil
	}

	data, err := json.MarshalIndent(Batch{PurgedAt: at, Calls: purged}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding purged batch: %w", err)
	}

	path := BatchPath(at)
	if err := m.archive.Write(ctx, path, data); err != nil {
		m.logger.Warn("failed to archive purged calls",
			zap.String("path", path),
			zap.Int("count", len(purged)),
			zap.Error(err),
		)
		return fmt.Errorf("archiving purged calls: %w", err)
	}

	m.logger.Info("archived purged calls", zap.String("path", path), zap.Int("count", len(purged)))
	return nil
}
