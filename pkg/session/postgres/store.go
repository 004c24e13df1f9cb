// Package postgres provides PostgreSQL storage for closed-session records.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/txn2/mcp-git-server/pkg/session"
)

const (
	defaultRetentionDays = 90
	defaultQueryCapacity = 100
	maxQueryCapacity     = 10000
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// archiveColumns lists columns returned by archive SELECT queries.
var archiveColumns = []string{
	"id", "session_id", "user_id", "reason",
	"created_at", "closed_at", "heartbeat_count", "message_count",
}

// Store implements session.Archiver using PostgreSQL.
type Store struct {
	db            *sql.DB
	retentionDays int
	cancel        context.CancelFunc
	done          chan struct{}
}

// Config configures the PostgreSQL archive store.
type Config struct {
	RetentionDays int
}

// QueryFilter narrows archive queries. Zero-valued fields are ignored.
type QueryFilter struct {
	SessionID   string
	User        string
	Reason      string
	ClosedAfter *time.Time
	ClosedUntil *time.Time
	Limit       int
	Offset      int
}

// ArchivedSession is a stored archive row.
type ArchivedSession struct {
	ID string
	session.ArchiveRecord
}

// New creates a new PostgreSQL archive store.
func New(db *sql.DB, cfg Config) *Store {
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = defaultRetentionDays
	}
	return &Store{
		db:            db,
		retentionDays: cfg.RetentionDays,
	}
}

// Archive records a closed session.
func (s *Store) Archive(ctx context.Context, rec session.ArchiveRecord) error {
	query := `
		INSERT INTO sessions_archive
		(id, session_id, user_id, reason, created_at, closed_at, heartbeat_count, message_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.NewString(),
		rec.SessionID,
		rec.User,
		rec.Reason,
		rec.CreatedAt,
		rec.ClosedAt,
		rec.HeartbeatCount,
		rec.MessageCount,
	)
	if err != nil {
		return fmt.Errorf("inserting archived session: %w", err)
	}
	return nil
}

// applyFilter adds filter conditions to a SELECT builder.
func applyFilter(qb sq.SelectBuilder, filter QueryFilter) sq.SelectBuilder {
	if filter.SessionID != "" {
		qb = qb.Where(sq.Eq{"session_id": filter.SessionID})
	}
	if filter.User != "" {
		qb = qb.Where(sq.Eq{"user_id": filter.User})
	}
	if filter.Reason != "" {
		qb = qb.Where(sq.Eq{"reason": filter.Reason})
	}
	if filter.ClosedAfter != nil {
		qb = qb.Where(sq.GtOrEq{"closed_at": *filter.ClosedAfter})
	}
	if filter.ClosedUntil != nil {
		qb = qb.Where(sq.LtOrEq{"closed_at": *filter.ClosedUntil})
	}
	return qb
}

// Query retrieves archived sessions matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]ArchivedSession, error) {
	qb := applyFilter(psq.Select(archiveColumns...).From("sessions_archive"), filter)
	qb = qb.OrderBy("closed_at DESC")
	if filter.Limit > 0 {
		qb = qb.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		qb = qb.Offset(uint64(filter.Offset))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building archive query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying archived sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	allocCap := defaultQueryCapacity
	if filter.Limit > 0 && filter.Limit <= maxQueryCapacity {
		allocCap = filter.Limit
	}
	records := make([]ArchivedSession, 0, allocCap)

	for rows.Next() {
		rec, err := scanArchived(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating archive rows: %w", err)
	}
	return records, nil
}

// Count returns the number of archived sessions matching the filter.
func (s *Store) Count(ctx context.Context, filter QueryFilter) (int, error) {
	qb := applyFilter(psq.Select("COUNT(*)").From("sessions_archive"), filter)

	query, args, err := qb.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting archived sessions: %w", err)
	}
	return count, nil
}

// Cleanup removes archive rows older than the retention period.
func (s *Store) Cleanup(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	query := `DELETE FROM sessions_archive WHERE closed_at < $1`
	_, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return fmt.Errorf("cleaning up archived sessions: %w", err)
	}
	return nil
}

// StartCleanupRoutine starts a background goroutine that periodically deletes
// old archive rows. The goroutine is stopped when Close is called.
func (s *Store) StartCleanupRoutine(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Cleanup(ctx); err != nil {
					slog.Warn("archive cleanup failed", "error", err)
				}
			}
		}
	}()
}

// Close stops the cleanup goroutine and waits for it to exit.
// It is safe to call Close even if StartCleanupRoutine was never called.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

func scanArchived(rows *sql.Rows) (ArchivedSession, error) {
	var rec ArchivedSession
	err := rows.Scan(
		&rec.ID,
		&rec.SessionID,
		&rec.User,
		&rec.Reason,
		&rec.CreatedAt,
		&rec.ClosedAt,
		&rec.HeartbeatCount,
		&rec.MessageCount,
	)
	if err != nil {
		return rec, fmt.Errorf("scanning archive row: %w", err)
	}
	return rec, nil
}

// Verify interface compliance.
var _ session.Archiver = (*Store)(nil)
