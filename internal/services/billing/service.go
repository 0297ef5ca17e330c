// Package billing сверяет локальные подписки с платёжной системой:
// показывает состояние подписки, применяет события вебхука и выполняет
// действия пользователя со страницы оплаты.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/robolike/portal/internal/lib/sl"
	"github.com/robolike/portal/internal/models"
	"github.com/robolike/portal/internal/paymentprovider"
	"github.com/robolike/portal/internal/storage/repository"
)

var (
	// ErrMissingMetadata в объекте провайдера нет ID пользователя портала.
	ErrMissingMetadata = errors.New("user id is missing in provider metadata")
	// ErrSubscriptionNotFound подписки нет или она принадлежит другому пользователю.
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrNoCustomer у пользователя ещё нет клиента в платёжной системе.
	ErrNoCustomer = errors.New("user has no billing customer")
	// ErrUnknownAction неизвестное действие со страницы оплаты.
	ErrUnknownAction = errors.New("unknown billing action")
	// ErrSubscriptionIDRequired действию нужен ID подписки.
	ErrSubscriptionIDRequired = errors.New("subscription id is required")
)

// Repository хранилище подписок и ссылок на клиентов провайдера.
type Repository interface {
	GetActiveSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	GetSubscriptionByExternalID(ctx context.Context, externalID string) (*models.Subscription, error)
	UpsertSubscription(ctx context.Context, sub *models.Subscription) error
	SetCancelAtPeriodEnd(ctx context.Context, externalID string, cancel bool) error
	SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error
}

// Provider операции платёжной системы.
type Provider interface {
	CreateCustomer(ctx context.Context, userID uuid.UUID, email string) (string, error)
	GetCustomer(ctx context.Context, customerID string) (*paymentprovider.Customer, error)
	CreateCheckoutSession(ctx context.Context, customerID string, userID uuid.UUID) (string, error)
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*paymentprovider.Subscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*paymentprovider.Subscription, error)
	ConstructEvent(payload []byte, signature string) (*paymentprovider.Event, error)
}

// EventRecorder публикует события аналитики.
type EventRecorder interface {
	Record(ctx context.Context, event models.AnalyticsEvent) error
}

// Service сверка подписок.
type Service struct {
	log      *slog.Logger
	repo     Repository
	provider Provider
	events   EventRecorder
}

// NewService создаёт сервис подписок.
func NewService(log *slog.Logger, repo Repository, provider Provider, events EventRecorder) *Service {
	return &Service{
		log:      log,
		repo:     repo,
		provider: provider,
		events:   events,
	}
}

// Details состояние подписки пользователя по живым данным провайдера.
type Details struct {
	Subscribed        bool                      `json:"subscribed"`
	SubscriptionID    string                    `json:"subscription_id,omitempty"`
	Status            models.SubscriptionStatus `json:"status,omitempty"`
	CurrentPeriodEnd  *time.Time                `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool                      `json:"cancel_at_period_end"`
}

// GetSubscriptionDetails сообщает, подписан ли пользователь.
// Без локальной активной подписки провайдер не вызывается. Ошибка провайдера
// даёт "не подписан": временный сбой может закрыть доступ, но не откроет его.
func (s *Service) GetSubscriptionDetails(ctx context.Context, userID uuid.UUID) (*Details, error) {
	const op = "billing.GetSubscriptionDetails"

	local, err := s.repo.GetActiveSubscriptionByUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return &Details{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	live, err := s.provider.GetSubscription(ctx, local.ExternalID)
	if err != nil {
		s.log.Error("failed to fetch live subscription",
			slog.String("op", op),
			slog.String("subscription_id", local.ExternalID),
			sl.Err(err),
		)
		return &Details{SubscriptionID: local.ExternalID}, nil
	}

	d := &Details{
		Subscribed:        live.Status == models.SubscriptionActive,
		SubscriptionID:    live.ID,
		Status:            live.Status,
		CancelAtPeriodEnd: live.CancelAtPeriodEnd,
	}
	if !live.CurrentPeriodEnd.IsZero() {
		end := live.CurrentPeriodEnd
		d.CurrentPeriodEnd = &end
	}
	return d, nil
}

func (s *Service) record(ctx context.Context, name string, userID uuid.UUID, subscriptionID string) {
	if s.events == nil {
		return
	}
	id := userID
	err := s.events.Record(ctx, models.AnalyticsEvent{
		Name:       name,
		UserID:     &id,
		Properties: map[string]string{"subscription_id": subscriptionID},
	})
	if err != nil {
		s.log.Warn("failed to record analytics event", slog.String("event", name), sl.Err(err))
	}
}

func parseUserID(metadata map[string]string) (uuid.UUID, error) {
	raw, ok := metadata[paymentprovider.MetadataUserID]
	if !ok || raw == "" {
		return uuid.Nil, ErrMissingMetadata
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrMissingMetadata, err)
	}
	return id, nil
}

func toLocal(userID uuid.UUID, sub *paymentprovider.Subscription) *models.Subscription {
	return &models.Subscription{
		UserID:             userID,
		ExternalID:         sub.ID,
		Status:             sub.Status,
		PriceID:            sub.PriceID,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
}
