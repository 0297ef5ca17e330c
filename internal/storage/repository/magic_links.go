package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robolike/portal/internal/models"
)

// CreateMagicLinkKey сохраняет новый ключ входа.
func (s *Storage) CreateMagicLinkKey(ctx context.Context, key *models.MagicLinkKey) error {
	const op = "storage.CreateMagicLinkKey"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO magic_link_keys (key, user_id, expires_at, utilized, created_at)
			  VALUES ($1, $2, $3, FALSE, $4)`
	if _, err := s.DB.ExecContext(ctx, query,
		key.Key, key.UserID, key.ExpiresAt, key.CreatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	return nil
}

// ConsumeMagicLinkKey одним запросом помечает ключ использованным и
// возвращает владельца. Если ключа нет, он уже использован или истёк,
// возвращается ErrNotFound. Из двух конкурирующих вызовов успешен ровно один.
func (s *Storage) ConsumeMagicLinkKey(ctx context.Context, key string, now time.Time) (uuid.UUID, error) {
	const op = "storage.ConsumeMagicLinkKey"
	select {
	case <-ctx.Done():
		return uuid.Nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE magic_link_keys
			  SET utilized = TRUE
			  WHERE key = $1 AND NOT utilized AND expires_at > $2
			  RETURNING user_id`
	var userID uuid.UUID
	if err := s.DB.QueryRowContext(ctx, query, key, now).Scan(&userID); err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return userID, nil
}

// DeleteMagicLinkKey удаляет ключ, письмо с которым не удалось отправить.
func (s *Storage) DeleteMagicLinkKey(ctx context.Context, key string) error {
	const op = "storage.DeleteMagicLinkKey"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM magic_link_keys WHERE key = $1`, key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
