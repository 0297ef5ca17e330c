package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robolike/portal/internal/models"
)

// SaveEvent сохраняет событие аналитики. Повтор с тем же ID игнорируется.
func (s *Storage) SaveEvent(ctx context.Context, event *models.AnalyticsEvent) error {
	const op = "storage.SaveEvent"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	props := event.Properties
	if props == nil {
		props = map[string]string{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO analytics_events (id, name, user_id, path, properties, occurred_at)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (id) DO NOTHING`
	if _, err = s.DB.ExecContext(ctx, query,
		event.ID, event.Name, event.UserID, event.Path, string(raw), event.OccurredAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CountEventsSince группирует события по имени начиная с since.
func (s *Storage) CountEventsSince(ctx context.Context, since time.Time) ([]models.EventCount, error) {
	const op = "storage.CountEventsSince"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT name, COUNT(*)
			  FROM analytics_events
			  WHERE occurred_at >= $1
			  GROUP BY name
			  ORDER BY COUNT(*) DESC, name`, since)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.EventCount
	for rows.Next() {
		var ec models.EventCount
		if err := rows.Scan(&ec.Name, &ec.Count); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, ec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
