package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// CreateToken stores a new auth token for a user.
func (s *Store) CreateToken(ctx context.Context, userID int64, token string, expiresAt time.Time) (*Token, error) {
	builder := s.stbl.
		Insert("tokens").
		Columns("token", "user_id", "expires_at").
		Values(token, userID, expiresAt)

	id, err := s.insert(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}

	return s.GetTokenByID(ctx, id)
}

// GetToken looks a token up by its value.
func (s *Store) GetToken(ctx context.Context, value string) (*Token, error) {
	return s.getToken(ctx, sq.Eq{"token": value})
}

// GetTokenByID looks a token up by id.
func (s *Store) GetTokenByID(ctx context.Context, id int64) (*Token, error) {
	return s.getToken(ctx, sq.Eq{"id": id})
}

func (s *Store) getToken(ctx context.Context, pred sq.Sqlizer) (*Token, error) {
	query, args, err := s.stbl.
		Select("id", "token", "user_id", "expires_at", "last_used_at", "created_at").
		From("tokens").
		Where(pred).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build token query: %w", err)
	}

	var token Token

	row := s.db.QueryRowContext(ctx, query, args...)
	err = row.Scan(
		&token.ID,
		&token.Token,
		&token.UserID,
		timeScanner{&token.ExpiresAt},
		nullTimeScanner{&token.LastUsedAt},
		timeScanner{&token.CreatedAt},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("scan token: %w", err)
	}

	return &token, nil
}

// TouchToken updates the token's last-used timestamp.
func (s *Store) TouchToken(ctx context.Context, id int64) error {
	query, args, err := s.stbl.
		Update("tokens").
		Set("last_used_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch token query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("touch token: %w", err)
	}

	return nil
}

// DeleteToken removes a token, typically because it expired.
func (s *Store) DeleteToken(ctx context.Context, id int64) error {
	query, args, err := s.stbl.
		Delete("tokens").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete token query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}

	return nil
}
