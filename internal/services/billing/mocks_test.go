package billing

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/robolike/portal/internal/models"
	"github.com/robolike/portal/internal/paymentprovider"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetActiveSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockRepository) GetSubscriptionByExternalID(ctx context.Context, externalID string) (*models.Subscription, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockRepository) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	return m.Called(ctx, sub).Error(0)
}

func (m *MockRepository) SetCancelAtPeriodEnd(ctx context.Context, externalID string, cancel bool) error {
	return m.Called(ctx, externalID, cancel).Error(0)
}

func (m *MockRepository) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	return m.Called(ctx, userID, customerID).Error(0)
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) CreateCustomer(ctx context.Context, userID uuid.UUID, email string) (string, error) {
	args := m.Called(ctx, userID, email)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) GetCustomer(ctx context.Context, customerID string) (*paymentprovider.Customer, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Customer), args.Error(1)
}

func (m *MockProvider) CreateCheckoutSession(ctx context.Context, customerID string, userID uuid.UUID) (string, error) {
	args := m.Called(ctx, customerID, userID)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	args := m.Called(ctx, customerID)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) GetSubscription(ctx context.Context, subscriptionID string) (*paymentprovider.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Subscription), args.Error(1)
}

func (m *MockProvider) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*paymentprovider.Subscription, error) {
	args := m.Called(ctx, subscriptionID, cancel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Subscription), args.Error(1)
}

func (m *MockProvider) ConstructEvent(payload []byte, signature string) (*paymentprovider.Event, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Event), args.Error(1)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context, event models.AnalyticsEvent) error {
	return m.Called(ctx, event).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newTestService() (*Service, *MockRepository, *MockProvider, *MockRecorder) {
	repo := new(MockRepository)
	provider := new(MockProvider)
	events := new(MockRecorder)
	return NewService(newNoopLogger(), repo, provider, events), repo, provider, events
}

func eventNamed(name string) any {
	return mock.MatchedBy(func(e models.AnalyticsEvent) bool { return e.Name == name })
}
