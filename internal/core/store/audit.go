package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
	apperrors "github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/errors"
)

// DefaultAuditLimit caps ListAuditRows when no limit is given.
const DefaultAuditLimit = 50

// AuditFilter narrows ListAuditRows. Zero values match everything.
type AuditFilter struct {
	Identity core.Identity
	Outcome  core.Outcome
	Since    time.Time
	Limit    int
}

// RecentCommands returns the latest limit audit rows for id, newest first.
func (s *Store) RecentCommands(ctx context.Context, id core.Identity, limit int) ([]core.AuditEvent, error) {
	if id <= 0 {
		return nil, apperrors.NewInvalidInputError("identity is required")
	}
	return s.ListAuditRows(ctx, AuditFilter{Identity: id, Limit: limit})
}

// AppendAuditRow records one handled command.
func (s *Store) AppendAuditRow(ctx context.Context, event core.AuditEvent) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	command := strings.TrimSpace(event.Command)
	if command == "" {
		command = "unknown"
	}
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO command_logs (telegram_id, command, event_type, outcome, latency_ms, error, correlation_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, int64(event.Identity), command, string(event.EventType), string(event.Outcome), event.LatencyMS,
		nullString(event.Error), nullString(event.CorrelationID), createdAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("append audit row: %w", err)
	}
	return nil
}

// ListAuditRows returns audit rows newest first.
func (s *Store) ListAuditRows(ctx context.Context, filter AuditFilter) ([]core.AuditEvent, error) {
	if s == nil || s.DB == nil {
		return nil, ErrNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var (
		clauses []string
		args    []any
	)
	if filter.Identity != 0 {
		clauses = append(clauses, "telegram_id = ?")
		args = append(args, int64(filter.Identity))
	}
	if filter.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.Since.UTC().UnixMilli())
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultAuditLimit
	}

	query := `SELECT telegram_id, command, event_type, outcome, latency_ms, error, correlation_id, created_at FROM command_logs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit rows: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var events []core.AuditEvent
	for rows.Next() {
		var (
			id            int64
			command       string
			eventType     string
			outcome       string
			latency       int64
			errText       sql.NullString
			correlationID sql.NullString
			createdAt     int64
		)
		if err := rows.Scan(&id, &command, &eventType, &outcome, &latency, &errText, &correlationID, &createdAt); err != nil {
			return nil, fmt.Errorf("list audit rows: %w", err)
		}
		events = append(events, core.AuditEvent{
			Identity:      core.Identity(id),
			Command:       command,
			EventType:     core.EventType(eventType),
			Outcome:       core.Outcome(outcome),
			LatencyMS:     latency,
			Error:         errText.String,
			CorrelationID: correlationID.String,
			CreatedAt:     time.UnixMilli(createdAt).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit rows: %w", err)
	}

	return events, nil
}
