package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/core"
	apperrors "github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/errors"
)

const profileColumns = `telegram_id, username, first_name, last_name, is_admin, is_active, created_at, last_active`

// FindOrCreateProfile upserts the profile for id, refreshing its display
// metadata and last activity. The admin flag only ever moves from false to
// true here.
func (s *Store) FindOrCreateProfile(ctx context.Context, id core.Identity, meta core.DisplayMeta, isAdmin bool, now time.Time) (*core.Profile, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if s == nil || s.DB == nil {
		return nil, apperrors.WrapPersistence(ctx, ErrNotInitialized, "Profile store unavailable")
	}

	if id <= 0 {
		return nil, apperrors.NewInvalidInputError("identity is required")
	}

	ts := now.UTC().Unix()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO users (telegram_id, username, first_name, last_name, is_admin, is_active, created_at, last_active)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			is_admin = MAX(users.is_admin, excluded.is_admin),
			last_active = excluded.last_active
	`, int64(id), nullString(meta.Username), nullString(meta.FirstName), nullString(meta.LastName), boolInt(isAdmin), ts, ts)
	if err != nil {
		return nil, apperrors.WrapPersistence(ctx, err, "Failed to upsert profile")
	}

	profile, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, apperrors.WrapPersistence(ctx, err, "Failed to read profile after upsert")
	}
	if profile == nil {
		return nil, apperrors.NewPersistenceError(fmt.Sprintf("profile %s missing after upsert", id))
	}
	return profile, nil
}

// GetProfile returns the profile for id, or nil when it is unknown.
func (s *Store) GetProfile(ctx context.Context, id core.Identity) (*core.Profile, error) {
	if s == nil || s.DB == nil {
		return nil, ErrNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM users WHERE telegram_id = ?`, int64(id))
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	return profile, nil
}

// ListProfiles returns all known profiles, most recently active first.
func (s *Store) ListProfiles(ctx context.Context) ([]core.Profile, error) {
	if s == nil || s.DB == nil {
		return nil, ErrNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+profileColumns+` FROM users ORDER BY last_active DESC, telegram_id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var profiles []core.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("list profiles: %w", err)
		}
		profiles = append(profiles, *profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	return profiles, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*core.Profile, error) {
	var (
		id         int64
		username   sql.NullString
		firstName  sql.NullString
		lastName   sql.NullString
		isAdmin    int
		isActive   int
		createdAt  int64
		lastActive int64
	)
	if err := row.Scan(&id, &username, &firstName, &lastName, &isAdmin, &isActive, &createdAt, &lastActive); err != nil {
		return nil, err
	}

	return &core.Profile{
		Identity: core.Identity(id),
		Meta: core.DisplayMeta{
			Username:  username.String,
			FirstName: firstName.String,
			LastName:  lastName.String,
		},
		IsAdmin:    isAdmin == 1,
		IsActive:   isActive == 1,
		CreatedAt:  time.Unix(createdAt, 0).UTC(),
		LastActive: time.Unix(lastActive, 0).UTC(),
	}, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func boolInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
