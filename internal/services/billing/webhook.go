package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/robolike/portal/internal/lib/metrics"
	"github.com/robolike/portal/internal/lib/sl"
	"github.com/robolike/portal/internal/models"
	"github.com/robolike/portal/internal/paymentprovider"
)

// HandleWebhook проверяет подпись события и применяет его. До проверки
// подписи состояние не меняется. Необрабатываемые типы игнорируются.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	const op = "billing.HandleWebhook"

	event, err := s.provider.ConstructEvent(payload, signature)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", metrics.ResultInvalid).Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	log := s.log.With(
		slog.String("op", op),
		slog.String("event_id", event.ID),
		slog.String("event_type", event.Type),
	)

	switch event.Type {
	case paymentprovider.EventCheckoutCompleted:
		err = s.ApplyCheckoutCompleted(ctx, event.CheckoutSession)
	case paymentprovider.EventSubscriptionUpdated:
		err = s.ApplySubscriptionUpdated(ctx, event.Subscription)
	case paymentprovider.EventSubscriptionDeleted:
		err = s.ApplySubscriptionDeleted(ctx, event.Subscription)
	default:
		metrics.WebhookEvents.WithLabelValues(event.Type, metrics.ResultIgnored).Inc()
		log.Debug("webhook event ignored")
		return nil
	}

	if err != nil {
		result := metrics.ResultError
		if errors.Is(err, ErrMissingMetadata) {
			result = metrics.ResultInvalid
		}
		metrics.WebhookEvents.WithLabelValues(event.Type, result).Inc()
		log.Error("failed to apply webhook event", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.WebhookEvents.WithLabelValues(event.Type, metrics.ResultOK).Inc()
	log.Info("webhook event applied")
	return nil
}

// ApplyCheckoutCompleted сохраняет подписку, оформленную через checkout.
// Повторная доставка события перезаписывает ту же строку.
func (s *Service) ApplyCheckoutCompleted(ctx context.Context, session *paymentprovider.CheckoutSession) error {
	const op = "billing.ApplyCheckoutCompleted"

	if session == nil {
		return fmt.Errorf("%s: empty checkout session", op)
	}
	userID, err := parseUserID(session.Metadata)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if session.SubscriptionID == "" {
		return fmt.Errorf("%s: checkout session %s has no subscription", op, session.ID)
	}

	sub, err := s.provider.GetSubscription(ctx, session.SubscriptionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	local := toLocal(userID, sub)
	if err = s.repo.UpsertSubscription(ctx, local); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.record(ctx, models.EventSubscriptionCreated, local.UserID, sub.ID)
	return nil
}

// ApplySubscriptionUpdated перезаписывает статус и период подписки.
func (s *Service) ApplySubscriptionUpdated(ctx context.Context, sub *paymentprovider.Subscription) error {
	const op = "billing.ApplySubscriptionUpdated"

	local, err := s.reconcile(ctx, sub, "")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.record(ctx, models.EventSubscriptionUpdated, local.UserID, sub.ID)
	return nil
}

// ApplySubscriptionDeleted помечает подписку отменённой. Строка не удаляется;
// если её ещё нет, она создаётся сразу в статусе canceled.
func (s *Service) ApplySubscriptionDeleted(ctx context.Context, sub *paymentprovider.Subscription) error {
	const op = "billing.ApplySubscriptionDeleted"

	local, err := s.reconcile(ctx, sub, models.SubscriptionCanceled)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.record(ctx, models.EventSubscriptionCanceled, local.UserID, sub.ID)
	return nil
}

// reconcile находит владельца через metadata клиента провайдера и
// записывает подписку по внешнему ID.
func (s *Service) reconcile(ctx context.Context, sub *paymentprovider.Subscription,
	status models.SubscriptionStatus) (*models.Subscription, error) {
	if sub == nil {
		return nil, errors.New("empty subscription")
	}
	userID, err := s.resolveOwner(ctx, sub.CustomerID)
	if err != nil {
		return nil, err
	}
	local := toLocal(userID, sub)
	if status != "" {
		local.Status = status
	}
	if err = s.repo.UpsertSubscription(ctx, local); err != nil {
		return nil, err
	}
	return local, nil
}

func (s *Service) resolveOwner(ctx context.Context, customerID string) (uuid.UUID, error) {
	if customerID == "" {
		return uuid.Nil, ErrMissingMetadata
	}
	customer, err := s.provider.GetCustomer(ctx, customerID)
	if err != nil {
		return uuid.Nil, err
	}
	return parseUserID(customer.Metadata)
}
