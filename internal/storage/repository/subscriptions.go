package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/robolike/portal/internal/models"
)

const subscriptionColumns = `id, user_id, external_id, status, price_id, current_period_start,
	current_period_end, cancel_at_period_end, created_at, updated_at`

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var sub models.Subscription
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.ExternalID, &sub.Status, &sub.PriceID,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CancelAtPeriodEnd,
		&sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertSubscription вставляет подписку или обновляет существующую с тем же
// external_id. Владелец существующей строки не меняется. Повторная доставка
// одного и того же события не создаёт дубликатов.
func (s *Storage) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	const op = "storage.UpsertSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	query := `INSERT INTO subscriptions (id, user_id, external_id, status, price_id,
			      current_period_start, current_period_end, cancel_at_period_end, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
			  ON CONFLICT (external_id) DO UPDATE SET
			      status = EXCLUDED.status,
			      price_id = EXCLUDED.price_id,
			      current_period_start = EXCLUDED.current_period_start,
			      current_period_end = EXCLUDED.current_period_end,
			      cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			      updated_at = NOW()
			  RETURNING id, user_id, created_at, updated_at`
	if err := s.DB.QueryRowContext(ctx, query,
		sub.ID, sub.UserID, sub.ExternalID, sub.Status, sub.PriceID,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd,
	).Scan(&sub.ID, &sub.UserID, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	return nil
}

// GetActiveSubscriptionByUser возвращает активную подписку пользователя.
func (s *Storage) GetActiveSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	const op = "storage.GetActiveSubscriptionByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE user_id = $1 AND status = $2
			  ORDER BY updated_at DESC
			  LIMIT 1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userID, models.SubscriptionActive))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return sub, nil
}

// GetSubscriptionByExternalID возвращает подписку по идентификатору платёжной системы.
func (s *Storage) GetSubscriptionByExternalID(ctx context.Context, externalID string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByExternalID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE external_id = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, externalID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return sub, nil
}

// SetCancelAtPeriodEnd отражает локально флаг отмены в конце периода.
func (s *Storage) SetCancelAtPeriodEnd(ctx context.Context, externalID string, cancel bool) error {
	const op = "storage.SetCancelAtPeriodEnd"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE subscriptions SET cancel_at_period_end = $1, updated_at = NOW() WHERE external_id = $2`,
		cancel, externalID)
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

// CountActiveSubscriptions возвращает число активных подписок.
func (s *Storage) CountActiveSubscriptions(ctx context.Context) (int64, error) {
	const op = "storage.CountActiveSubscriptions"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var count int64
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE status = $1`, models.SubscriptionActive).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}
