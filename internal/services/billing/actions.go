package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/robolike/portal/internal/lib/metrics"
	"github.com/robolike/portal/internal/models"
	"github.com/robolike/portal/internal/storage/repository"
)

// Action действие пользователя со страницы оплаты.
type Action string

const (
	ActionSubscribe Action = "subscribe"
	ActionManage    Action = "manage"
	ActionCancel    Action = "cancel"
	ActionRestart   Action = "restart"
)

// Result итог действия: либо адрес перенаправления, либо сообщение.
type Result struct {
	RedirectURL string `json:"redirect_url,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Perform выполняет действие от имени пользователя с проверенной сессией.
func (s *Service) Perform(ctx context.Context, user *models.User, action Action, subscriptionID string) (*Result, error) {
	var (
		res *Result
		err error
	)
	switch action {
	case ActionSubscribe:
		var url string
		url, err = s.Subscribe(ctx, user)
		res = &Result{RedirectURL: url}
	case ActionManage:
		var url string
		url, err = s.Manage(ctx, user)
		res = &Result{RedirectURL: url}
	case ActionCancel:
		err = s.Cancel(ctx, user, subscriptionID)
		res = &Result{Message: "Subscription will be canceled at the end of the billing period"}
	case ActionRestart:
		err = s.Restart(ctx, user, subscriptionID)
		res = &Result{Message: "Subscription renewed"}
	default:
		return nil, ErrUnknownAction
	}

	if err != nil {
		metrics.BillingActions.WithLabelValues(string(action), metrics.ResultError).Inc()
		return nil, err
	}
	metrics.BillingActions.WithLabelValues(string(action), metrics.ResultOK).Inc()
	return res, nil
}

// Subscribe открывает оформление подписки на месячный тариф.
// Существующий клиент провайдера переиспользуется.
func (s *Service) Subscribe(ctx context.Context, user *models.User) (string, error) {
	const op = "billing.Subscribe"

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	url, err := s.provider.CreateCheckoutSession(ctx, customerID, user.ID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return url, nil
}

func (s *Service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}
	customerID, err := s.provider.CreateCustomer(ctx, user.ID, user.Email)
	if err != nil {
		return "", err
	}
	if err = s.repo.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
		return "", err
	}
	user.StripeCustomerID = &customerID
	s.log.Info("billing customer created",
		slog.String("user_id", user.ID.String()),
		slog.String("customer_id", customerID),
	)
	return customerID, nil
}

// Manage открывает портал управления оплатой.
func (s *Service) Manage(ctx context.Context, user *models.User) (string, error) {
	const op = "billing.Manage"

	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return "", ErrNoCustomer
	}
	url, err := s.provider.CreatePortalSession(ctx, *user.StripeCustomerID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return url, nil
}

// Cancel планирует отмену подписки в конце оплаченного периода.
func (s *Service) Cancel(ctx context.Context, user *models.User, subscriptionID string) error {
	const op = "billing.Cancel"
	if err := s.setCancelAtPeriodEnd(ctx, user.ID, subscriptionID, true); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.record(ctx, models.EventSubscriptionCanceled, user.ID, subscriptionID)
	return nil
}

// Restart снимает запланированную отмену.
func (s *Service) Restart(ctx context.Context, user *models.User, subscriptionID string) error {
	const op = "billing.Restart"
	if err := s.setCancelAtPeriodEnd(ctx, user.ID, subscriptionID, false); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.record(ctx, models.EventSubscriptionUpdated, user.ID, subscriptionID)
	return nil
}

func (s *Service) setCancelAtPeriodEnd(ctx context.Context, userID uuid.UUID, subscriptionID string, cancel bool) error {
	if subscriptionID == "" {
		return ErrSubscriptionIDRequired
	}
	local, err := s.repo.GetSubscriptionByExternalID(ctx, subscriptionID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrSubscriptionNotFound
	}
	if err != nil {
		return err
	}
	if local.UserID != userID {
		return ErrSubscriptionNotFound
	}

	if _, err = s.provider.SetCancelAtPeriodEnd(ctx, subscriptionID, cancel); err != nil {
		return err
	}
	return s.repo.SetCancelAtPeriodEnd(ctx, subscriptionID, cancel)
}
