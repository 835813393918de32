package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the journal operations.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveAlert inserts one alert record.
	SaveAlert(ctx context.Context, alert *Alert) error

	// RecentAlerts returns up to limit alerts, newest first.
	RecentAlerts(ctx context.Context, limit int) ([]Alert, error)

	// CountAlertsByOutcome returns alert counts per outcome created at or after since.
	CountAlertsByOutcome(ctx context.Context, since time.Time) ([]OutcomeCount, error)

	// PruneAlerts deletes alerts created before cutoff and returns how many were removed.
	PruneAlerts(ctx context.Context, cutoff time.Time) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Store backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) SaveAlert(ctx context.Context, alert *Alert) error {
	if alert == nil {
		return fmt.Errorf("cannot save nil alert")
	}
	if alert.ID == "" {
		return fmt.Errorf("alert must have an id")
	}
	if alert.Outcome == "" {
		return fmt.Errorf("alert must have an outcome")
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	alert.CreatedAt = alert.CreatedAt.UTC()

	query := `
        INSERT INTO alerts (id, group_name, recipient, sender_id, chat_id, message_id, text, outcome, error, created_at)
        VALUES (:id, :group_name, :recipient, :sender_id, :chat_id, :message_id, :text, :outcome, :error, :created_at);
    `

	if _, err := s.db.NamedExecContext(ctx, query, alert); err != nil {
		s.logger.ErrorContext(ctx, "Error saving alert", "alert_id", alert.ID, "error", err)
		return fmt.Errorf("failed to save alert %s: %w", alert.ID, err)
	}

	s.logger.DebugContext(ctx, "Alert saved", "alert_id", alert.ID, "outcome", alert.Outcome)
	return nil
}

func (s *sqlxStore) RecentAlerts(ctx context.Context, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = 20
	} else if limit > 100 {
		limit = 100
	}

	var alerts []Alert
	query := `
        SELECT id, group_name, recipient, sender_id, chat_id, message_id, text, outcome, error, created_at
        FROM alerts
        ORDER BY created_at DESC
        LIMIT ?;
    `
	if err := s.db.SelectContext(ctx, &alerts, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get recent alerts: %w", err)
	}
	return alerts, nil
}

func (s *sqlxStore) CountAlertsByOutcome(ctx context.Context, since time.Time) ([]OutcomeCount, error) {
	var counts []OutcomeCount
	query := `
        SELECT outcome, COUNT(*) AS count
        FROM alerts
        WHERE created_at >= ?
        GROUP BY outcome
        ORDER BY outcome;
    `
	if err := s.db.SelectContext(ctx, &counts, query, since.UTC()); err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}
	return counts, nil
}

func (s *sqlxStore) PruneAlerts(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE created_at < ?;`, cutoff.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error pruning alerts", "cutoff", cutoff, "error", err)
		return 0, fmt.Errorf("failed to prune alerts: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not read rows affected after prune", "error", err)
		return 0, nil
	}
	return n, nil
}

// RunSQLMaintenance runs VACUUM, which SQLite requires outside a transaction.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)")

	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		s.logger.WarnContext(ctx, "Failed to set busy timeout", "error", err)
	}

	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case errors.Is(err, sql.ErrConnDone):
		return fmt.Errorf("database connection closed: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed")
	return nil
}
