// Package paymentprovider скрывает платёжную систему (Stripe) за набором
// операций, нужных порталу: клиенты, оформление подписки, портал управления,
// чтение и изменение подписок, проверка подписи вебхуков.
package paymentprovider

import (
	"errors"
	"time"

	"github.com/robolike/portal/internal/models"
)

// MetadataUserID ключ metadata, в котором хранится ID пользователя портала.
const MetadataUserID = "user_id"

// Типы событий вебхука, которые обрабатывает портал.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// ErrInvalidSignature подпись вебхука не прошла проверку.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Subscription состояние подписки у провайдера.
type Subscription struct {
	ID                 string
	CustomerID         string
	Status             models.SubscriptionStatus
	PriceID            string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	Metadata           map[string]string
}

// CheckoutSession завершённое оформление подписки.
type CheckoutSession struct {
	ID             string
	CustomerID     string
	SubscriptionID string
	Metadata       map[string]string
}

// Customer клиент провайдера.
type Customer struct {
	ID       string
	Email    string
	Deleted  bool
	Metadata map[string]string
}

// Event проверенное событие вебхука. Заполнено поле, соответствующее Type;
// для необрабатываемых типов оба поля пусты.
type Event struct {
	ID              string
	Type            string
	CheckoutSession *CheckoutSession
	Subscription    *Subscription
}
