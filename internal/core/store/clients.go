package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
)

// ErrClientExists is returned when an active client already uses the name.
var ErrClientExists = errors.New("client name already in use")

const clientColumns = `name, owner_id, ip_address, is_active, created_at, deleted_at`

// CreateClient records a newly provisioned client as active.
func (s *Store) CreateClient(ctx context.Context, client core.VPNClient) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	name := strings.TrimSpace(client.Name)
	if name == "" {
		return errors.New("client name is required")
	}
	createdAt := client.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO vpn_clients (name, owner_id, ip_address, is_active, created_at)
		VALUES (?, ?, ?, 1, ?)
	`, name, int64(client.Owner), nullString(client.IPAddress), createdAt.UTC().Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrClientExists
		}
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

// GetActiveClient returns the active client with name, or nil.
func (s *Store) GetActiveClient(ctx context.Context, name string) (*core.VPNClient, error) {
	if s == nil || s.DB == nil {
		return nil, ErrNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM vpn_clients WHERE name = ? AND is_active = 1`, strings.TrimSpace(name))
	client, err := scanClient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch client: %w", err)
	}
	return client, nil
}

// ListClients returns clients ordered by creation time. A zero owner lists
// every owner.
func (s *Store) ListClients(ctx context.Context, owner core.Identity, includeInactive bool) ([]core.VPNClient, error) {
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
	if owner != 0 {
		clauses = append(clauses, "owner_id = ?")
		args = append(args, int64(owner))
	}
	if !includeInactive {
		clauses = append(clauses, "is_active = 1")
	}

	query := `SELECT ` + clientColumns + ` FROM vpn_clients`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var clients []core.VPNClient
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("list clients: %w", err)
		}
		clients = append(clients, *client)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clients, nil
}

// CountActiveClients returns the number of active clients across owners.
func (s *Store) CountActiveClients(ctx context.Context) (int, error) {
	if s == nil || s.DB == nil {
		return 0, ErrNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var count int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM vpn_clients WHERE is_active = 1`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count clients: %w", err)
	}
	return count, nil
}

// DeactivateClient soft-deletes the active client with name. A zero owner
// matches any owner. It reports whether a row changed.
func (s *Store) DeactivateClient(ctx context.Context, name string, owner core.Identity, now time.Time) (bool, error) {
	if s == nil || s.DB == nil {
		return false, ErrNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	query := `UPDATE vpn_clients SET is_active = 0, deleted_at = ? WHERE name = ? AND is_active = 1`
	args := []any{now.UTC().Unix(), strings.TrimSpace(name)}
	if owner != 0 {
		query += " AND owner_id = ?"
		args = append(args, int64(owner))
	}

	result, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("deactivate client: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate client: %w", err)
	}
	return affected > 0, nil
}

func scanClient(row rowScanner) (*core.VPNClient, error) {
	var (
		name      string
		owner     int64
		ip        sql.NullString
		isActive  int
		createdAt int64
		deletedAt sql.NullInt64
	)
	if err := row.Scan(&name, &owner, &ip, &isActive, &createdAt, &deletedAt); err != nil {
		return nil, err
	}

	client := &core.VPNClient{
		Name:      name,
		Owner:     core.Identity(owner),
		IPAddress: ip.String,
		IsActive:  isActive == 1,
		CreatedAt: time.Unix(createdAt, 0).UTC(),
	}
	if deletedAt.Valid {
		value := time.Unix(deletedAt.Int64, 0).UTC()
		client.DeletedAt = &value
	}
	return client, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToUpper(err.Error()), "UNIQUE CONSTRAINT")
}
