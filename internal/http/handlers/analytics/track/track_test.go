package track

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/robolike/portal/internal/http/middlewarectx"
	"github.com/robolike/portal/internal/models"
	"github.com/robolike/portal/internal/services/analytics"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Track(ctx context.Context, in analytics.TrackInput, userID *uuid.UUID) error {
	args := m.Called(ctx, in, userID)
	return args.Error(0)
}

func TestTrackHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pageView := analytics.TrackInput{Name: models.EventPageView, Path: "/pricing"}

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "accepted",
			body: `{"name":"page_view","path":"/pricing"}`,
			setupMock: func(m *MockService) {
				m.On("Track", mock.Anything, pageView, (*uuid.UUID)(nil)).Return(nil)
			},
			expectedStatus: http.StatusAccepted,
		},
		{
			name: "not allowlisted",
			body: `{"name":"login","path":"/"}`,
			setupMock: func(m *MockService) {
				m.On("Track", mock.Anything, analytics.TrackInput{Name: "login", Path: "/"}, (*uuid.UUID)(nil)).
					Return(analytics.ErrEventNotAllowed)
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `event is not accepted`,
		},
		{
			name:           "no path",
			body:           `{"name":"page_view"}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field Path is a required field`,
		},
		{
			name:           "broken json",
			body:           `not json`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "broker down",
			body: `{"name":"page_view","path":"/pricing"}`,
			setupMock: func(m *MockService) {
				m.On("Track", mock.Anything, pageView, (*uuid.UUID)(nil)).Return(errors.New("channel closed"))
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			w := httptest.NewRecorder()
			New(logger, svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/analytics/track", strings.NewReader(tt.body)))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestTrackHandler_SignedInUser(t *testing.T) {
	user := &models.User{ID: uuid.New()}
	svc := new(MockService)
	svc.On("Track", mock.Anything, mock.Anything, &user.ID).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/analytics/track", strings.NewReader(`{"name":"cta_click","path":"/"}`))
	req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserKey, user))
	w := httptest.NewRecorder()
	New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	svc.AssertExpectations(t)
}
