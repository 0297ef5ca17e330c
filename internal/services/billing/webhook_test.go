package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/robolike/portal/internal/models"
	"github.com/robolike/portal/internal/paymentprovider"
)

func liveSubscription(status models.SubscriptionStatus) *paymentprovider.Subscription {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return &paymentprovider.Subscription{
		ID:                 "sub_1",
		CustomerID:         "cus_1",
		Status:             status,
		PriceID:            "price_monthly",
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   start.AddDate(0, 1, 0),
	}
}

func TestService_HandleWebhook(t *testing.T) {
	userID := uuid.New()
	owner := &paymentprovider.Customer{ID: "cus_1", Metadata: map[string]string{paymentprovider.MetadataUserID: userID.String()}}
	payload := []byte(`{}`)

	tests := []struct {
		name    string
		setup   func(repo *MockRepository, provider *MockProvider, events *MockRecorder)
		wantErr error
		anyErr  bool
	}{
		{
			name: "bad signature mutates nothing",
			setup: func(repo *MockRepository, provider *MockProvider, events *MockRecorder) {
				provider.On("ConstructEvent", payload, "sig").
					Return(nil, fmt.Errorf("wrap: %w", paymentprovider.ErrInvalidSignature))
			},
			wantErr: paymentprovider.ErrInvalidSignature,
		},
		{
			name: "checkout completed",
			setup: func(repo *MockRepository, provider *MockProvider, events *MockRecorder) {
				provider.On("ConstructEvent", payload, "sig").Return(&paymentprovider.Event{
					ID:   "evt_1",
					Type: paymentprovider.EventCheckoutCompleted,
					CheckoutSession: &paymentprovider.CheckoutSession{
						ID: "cs_1", SubscriptionID: "sub_1",
						Metadata: map[string]string{paymentprovider.MetadataUserID: userID.String()},
					},
				}, nil)
				provider.On("GetSubscription", mock.Anything, "sub_1").Return(liveSubscription(models.SubscriptionActive), nil)
				repo.On("UpsertSubscription", mock.Anything, mock.MatchedBy(func(s *models.Subscription) bool {
					return s.UserID == userID && s.ExternalID == "sub_1" && s.Status == models.SubscriptionActive &&
						s.PriceID == "price_monthly"
				})).Return(nil)
				events.On("Record", mock.Anything, eventNamed(models.EventSubscriptionCreated)).Return(nil)
			},
		},
		{
			name: "checkout without user metadata",
			setup: func(repo *MockRepository, provider *MockProvider, events *MockRecorder) {
				provider.On("ConstructEvent", payload, "sig").Return(&paymentprovider.Event{
					Type:            paymentprovider.EventCheckoutCompleted,
					CheckoutSession: &paymentprovider.CheckoutSession{ID: "cs_1", SubscriptionID: "sub_1"},
				}, nil)
			},
			wantErr: ErrMissingMetadata,
		},
		{
			name: "checkout with malformed user id",
			setup: func(repo *MockRepository, provider *MockProvider, events *MockRecorder) {
				provider.On("ConstructEvent", payload, "sig").Return(&paymentprovider.Event{
					Type: paymentprovider.EventCheckoutCompleted,
					CheckoutSession: &paymentprovider.CheckoutSession{
						ID: "cs_1", SubscriptionID: "sub_1",
						Metadata: map[string]string{paymentprovider.MetadataUserID: "42"},
					},
				}, nil)
			},
			wantErr: ErrMissingMetadata,
		},
		{
			name: "subscription updated",
			setup: func(repo *MockRepository, provider *MockProvider, events *MockRecorder) {
				sub := liveSubscription(models.SubscriptionPastDue)
				sub.CancelAtPeriodEnd = true
				provider.On("ConstructEvent", payload, "sig").Return(&paymentprovider.Event{
					Type: paymentprovider.EventSubscriptionUpdated, Subscription: sub,
				}, nil)
				provider.On("GetCustomer", mock.Anything, "cus_1").Return(owner, nil)
				repo.On("UpsertSubscription", mock.Anything, mock.MatchedBy(func(s *models.Subscription) bool {
					return s.UserID == userID && s.Status == models.SubscriptionPastDue && s.CancelAtPeriodEnd
				})).Return(nil)
				events.On("Record", mock.Anything, eventNamed(models.EventSubscriptionUpdated)).Return(errors.New("broker down"))
			},
		},
		{
			name: "subscription deleted marks canceled",
			setup: func(repo *MockRepository, provider *MockProvider, events *MockRecorder) {
				provider.On("ConstructEvent", payload, "sig").Return(&paymentprovider.Event{
					Type: paymentprovider.EventSubscriptionDeleted, Subscription: liveSubscription(models.SubscriptionActive),
				}, nil)
				provider.On("GetCustomer", mock.Anything, "cus_1").Return(owner, nil)
				repo.On("UpsertSubscription", mock.Anything, mock.MatchedBy(func(s *models.Subscription) bool {
					return s.ExternalID == "sub_1" && s.Status == models.SubscriptionCanceled
				})).Return(nil)
				events.On("Record", mock.Anything, eventNamed(models.EventSubscriptionCanceled)).Return(nil)
			},
		},
		{
			name: "customer without owner metadata",
			setup: func(repo *MockRepository, provider *MockProvider, events *MockRecorder) {
				provider.On("ConstructEvent", payload, "sig").Return(&paymentprovider.Event{
					Type: paymentprovider.EventSubscriptionUpdated, Subscription: liveSubscription(models.SubscriptionActive),
				}, nil)
				provider.On("GetCustomer", mock.Anything, "cus_1").Return(&paymentprovider.Customer{ID: "cus_1"}, nil)
			},
			wantErr: ErrMissingMetadata,
		},
		{
			name: "storage failure is reported",
			setup: func(repo *MockRepository, provider *MockProvider, events *MockRecorder) {
				provider.On("ConstructEvent", payload, "sig").Return(&paymentprovider.Event{
					Type: paymentprovider.EventSubscriptionDeleted, Subscription: liveSubscription(models.SubscriptionActive),
				}, nil)
				provider.On("GetCustomer", mock.Anything, "cus_1").Return(owner, nil)
				repo.On("UpsertSubscription", mock.Anything, mock.Anything).Return(errors.New("db down"))
			},
			anyErr: true,
		},
		{
			name: "unhandled type is ignored",
			setup: func(repo *MockRepository, provider *MockProvider, events *MockRecorder) {
				provider.On("ConstructEvent", payload, "sig").Return(&paymentprovider.Event{Type: "invoice.paid"}, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, provider, events := newTestService()
			tt.setup(repo, provider, events)

			err := svc.HandleWebhook(context.Background(), payload, "sig")
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
				repo.AssertNotCalled(t, "UpsertSubscription", mock.Anything, mock.Anything)
			case tt.anyErr:
				require.Error(t, err)
			default:
				require.NoError(t, err)
			}
			repo.AssertExpectations(t)
			provider.AssertExpectations(t)
			events.AssertExpectations(t)
		})
	}
}

func TestService_ApplyCheckoutCompleted_Redelivery(t *testing.T) {
	svc, repo, provider, events := newTestService()
	userID := uuid.New()
	session := &paymentprovider.CheckoutSession{
		ID: "cs_1", SubscriptionID: "sub_1",
		Metadata: map[string]string{paymentprovider.MetadataUserID: userID.String()},
	}
	provider.On("GetSubscription", mock.Anything, "sub_1").Return(liveSubscription(models.SubscriptionActive), nil)
	repo.On("UpsertSubscription", mock.Anything, mock.Anything).Return(nil)
	events.On("Record", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, svc.ApplyCheckoutCompleted(context.Background(), session))
	require.NoError(t, svc.ApplyCheckoutCompleted(context.Background(), session))

	repo.AssertNumberOfCalls(t, "UpsertSubscription", 2)
	first := repo.Calls[0].Arguments.Get(1).(*models.Subscription)
	second := repo.Calls[1].Arguments.Get(1).(*models.Subscription)
	assert.Equal(t, first.ExternalID, second.ExternalID)
	repo.AssertNotCalled(t, "GetSubscriptionByExternalID", mock.Anything, mock.Anything)
}
