package paymentprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	portal "github.com/stripe/stripe-go/v79/billingportal/session"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/subscription"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/robolike/portal/internal/config"
	"github.com/robolike/portal/internal/models"
)

// Stripe реализация провайдера на stripe-go.
type Stripe struct {
	priceID       string
	webhookSecret string
	origin        string
}

// NewStripe настраивает ключ API и возвращает провайдера.
func NewStripe(cfg config.Stripe, site config.Site) *Stripe {
	stripe.Key = cfg.SecretKey
	return &Stripe{
		priceID:       cfg.PriceID,
		webhookSecret: cfg.WebhookSecret,
		origin:        strings.TrimRight(site.Origin, "/"),
	}
}

// CreateCustomer создаёт клиента с metadata.user_id.
func (s *Stripe) CreateCustomer(ctx context.Context, userID uuid.UUID, email string) (string, error) {
	const op = "paymentprovider.CreateCustomer"
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Metadata: map[string]string{
			MetadataUserID: userID.String(),
		},
	}
	params.Context = ctx

	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return cust.ID, nil
}

// GetCustomer возвращает клиента по ID.
func (s *Stripe) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	const op = "paymentprovider.GetCustomer"
	params := &stripe.CustomerParams{}
	params.Context = ctx

	cust, err := customer.Get(customerID, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Customer{
		ID:       cust.ID,
		Email:    cust.Email,
		Deleted:  cust.Deleted,
		Metadata: cust.Metadata,
	}, nil
}

// CreateCheckoutSession создаёт оформление подписки на одну месячную цену
// и возвращает URL, на который нужно перенаправить пользователя.
func (s *Stripe) CreateCheckoutSession(ctx context.Context, customerID string, userID uuid.UUID) (string, error) {
	const op = "paymentprovider.CreateCheckoutSession"
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				MetadataUserID: userID.String(),
			},
		},
		SuccessURL: stripe.String(s.origin + "/profile?checkout=success"),
		CancelURL:  stripe.String(s.origin + "/profile?checkout=canceled"),
	}
	params.AddMetadata(MetadataUserID, userID.String())
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return sess.URL, nil
}

// CreatePortalSession создаёт сессию портала управления подпиской.
func (s *Stripe) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	const op = "paymentprovider.CreatePortalSession"
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(s.origin + "/profile"),
	}
	params.Context = ctx

	sess, err := portal.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return sess.URL, nil
}

// GetSubscription читает текущее состояние подписки.
func (s *Stripe) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	const op = "paymentprovider.GetSubscription"
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := subscription.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return toSubscription(sub), nil
}

// SetCancelAtPeriodEnd включает или снимает отмену подписки в конце периода.
func (s *Stripe) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*Subscription, error) {
	const op = "paymentprovider.SetCancelAtPeriodEnd"
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(cancel),
	}
	params.Context = ctx

	sub, err := subscription.Update(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return toSubscription(sub), nil
}

// ConstructEvent проверяет подпись и разбирает событие. Пока подпись не
// проверена, тело не разбирается.
func (s *Stripe) ConstructEvent(payload []byte, signature string) (*Event, error) {
	const op = "paymentprovider.ConstructEvent"
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signature,
		s.webhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidSignature, err)
	}

	out := &Event{ID: event.ID, Type: string(event.Type)}
	switch out.Type {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out.CheckoutSession = toCheckoutSession(&sess)
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out.Subscription = toSubscription(&sub)
	}
	return out, nil
}

func toSubscription(sub *stripe.Subscription) *Subscription {
	out := &Subscription{
		ID:                 sub.ID,
		Status:             models.SubscriptionStatus(sub.Status),
		CurrentPeriodStart: unix(sub.CurrentPeriodStart),
		CurrentPeriodEnd:   unix(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		Metadata:           sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		out.PriceID = sub.Items.Data[0].Price.ID
	}
	return out
}

func toCheckoutSession(sess *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:       sess.ID,
		Metadata: sess.Metadata,
	}
	if sess.Customer != nil {
		out.CustomerID = sess.Customer.ID
	}
	if sess.Subscription != nil {
		out.SubscriptionID = sess.Subscription.ID
	}
	return out
}

func unix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
