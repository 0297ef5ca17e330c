package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/robolike/portal/internal/models"
)

// CreateSession сохраняет новую сессию.
func (s *Storage) CreateSession(ctx context.Context, session *models.Session) error {
	const op = "storage.CreateSession"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO sessions (id, user_id, expires_at, created_at)
			  VALUES ($1, $2, $3, $4)`
	if _, err := s.DB.ExecContext(ctx, query,
		session.ID, session.UserID, session.ExpiresAt, session.CreatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	return nil
}

// GetSession возвращает сессию по ID. Истёкшие сессии не возвращаются.
func (s *Storage) GetSession(ctx context.Context, id string, now time.Time) (*models.Session, error) {
	const op = "storage.GetSession"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, expires_at, created_at
			  FROM sessions
			  WHERE id = $1 AND expires_at > $2`
	var sess models.Session
	if err := s.DB.QueryRowContext(ctx, query, id, now).
		Scan(&sess.ID, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return &sess, nil
}

// TouchSession продлевает сессию до expiresAt.
func (s *Storage) TouchSession(ctx context.Context, id string, expiresAt time.Time) error {
	const op = "storage.TouchSession"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE sessions SET expires_at = $1 WHERE id = $2`, expiresAt, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// DeleteSession удаляет сессию. Отсутствие строки ошибкой не является.
func (s *Storage) DeleteSession(ctx context.Context, id string) error {
	const op = "storage.DeleteSession"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
