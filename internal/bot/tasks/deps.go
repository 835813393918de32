// Package tasks implements the scheduled tasks of keywatch: the daily
// eviction of suppression and rate-limit state, and journal maintenance.
package tasks

import (
	"log/slog"
	"time"

	"github.com/edgard/keywatch/internal/config"
	"github.com/edgard/keywatch/internal/database"
)

// Resetter is state cleared at every eviction boundary.
type Resetter interface {
	Reset()
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Config *config.Config
	// Resetters are cleared by cache_eviction, in order.
	Resetters []Resetter
	// Store is nil when the journal is disabled.
	Store database.Store
	// Clock defaults to time.Now.
	Clock func() time.Time
}
