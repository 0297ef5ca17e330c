// Package analytics собирает события первой стороны: публикует их в очередь
// из портала и сохраняет в базу в отдельном потребителе.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/robolike/portal/internal/lib/rabbitmq"
	"github.com/robolike/portal/internal/models"
)

var (
	// ErrEventNotAllowed событие нельзя отправлять с публичной ручки.
	ErrEventNotAllowed = errors.New("event name is not allowed")
	// ErrEmptyName у события нет имени.
	ErrEmptyName = errors.New("event name is empty")
)

// Publisher отправляет сообщение в брокер.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Recorder публикует события в exchange аналитики.
type Recorder struct {
	publisher Publisher
	log       *slog.Logger
	now       func() time.Time
}

// NewRecorder создаёт Recorder.
func NewRecorder(publisher Publisher, log *slog.Logger) *Recorder {
	return &Recorder{
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Record дополняет событие ID и временем и публикует его.
func (r *Recorder) Record(ctx context.Context, event models.AnalyticsEvent) error {
	const op = "analytics.Record"

	if event.Name == "" {
		return ErrEmptyName
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = r.now()
	}
	if err := r.publisher.Publish(ctx, rabbitmq.AnalyticsRoutingKey, event); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	r.log.Debug("analytics event published", slog.String("event", event.Name), slog.String("id", event.ID.String()))
	return nil
}

// Discard публикатор, который отбрасывает сообщения. Подставляется,
// когда брокер недоступен при старте портала.
type Discard struct{}

// Publish ничего не делает.
func (Discard) Publish(context.Context, string, any) error { return nil }
