package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/robolike/portal/internal/lib/metrics"
	"github.com/robolike/portal/internal/lib/sl"
	"github.com/robolike/portal/internal/models"
)

const saveTimeout = 5 * time.Second

// EventSaver сохраняет событие.
type EventSaver interface {
	SaveEvent(ctx context.Context, event *models.AnalyticsEvent) error
}

// Consumer обработчик сообщений очереди аналитики.
type Consumer struct {
	repo EventSaver
	log  *slog.Logger
}

// NewConsumer создаёт обработчик.
func NewConsumer(repo EventSaver, log *slog.Logger) *Consumer {
	return &Consumer{repo: repo, log: log}
}

// Handle сохраняет событие из сообщения. Нечитаемое сообщение логируется и
// подтверждается, чтобы не вернуться в очередь. Ошибка базы возвращается,
// сообщение вернётся в очередь один раз, затем будет отброшено.
func (c *Consumer) Handle(body []byte) error {
	const op = "analytics.Consumer.Handle"

	var event models.AnalyticsEvent
	if err := json.Unmarshal(body, &event); err != nil {
		metrics.AnalyticsEventsConsumed.WithLabelValues(metrics.ResultInvalid).Inc()
		c.log.Error("dropping malformed analytics message", slog.String("op", op), sl.Err(err))
		return nil
	}
	if event.Name == "" || event.ID == uuid.Nil {
		metrics.AnalyticsEventsConsumed.WithLabelValues(metrics.ResultInvalid).Inc()
		c.log.Error("dropping analytics message without name or id", slog.String("op", op))
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := c.repo.SaveEvent(ctx, &event); err != nil {
		metrics.AnalyticsEventsConsumed.WithLabelValues(metrics.ResultError).Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.AnalyticsEventsConsumed.WithLabelValues(metrics.ResultOK).Inc()
	return nil
}
