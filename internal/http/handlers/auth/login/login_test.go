package login

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/robolike/portal/internal/http/response"
	"github.com/robolike/portal/internal/services/auth"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) RequestLogin(ctx context.Context, email, redirectTo string) error {
	return m.Called(ctx, email, redirectTo).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestLoginHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		mockErr        error
		callService    bool
		wantStatusCode int
		wantError      string
	}{
		{
			name:           "link sent",
			body:           `{"email":"c@robolike.com","redirect_to":"/profile"}`,
			callService:    true,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "invalid json",
			body:           `not json`,
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid request body",
		},
		{
			name:           "missing email",
			body:           `{}`,
			wantStatusCode: http.StatusUnprocessableEntity,
			wantError:      "field Email is a required field",
		},
		{
			name:           "plus address",
			body:           `{"email":"c+x@robolike.com","redirect_to":"/profile"}`,
			mockErr:        auth.ErrPlusAddress,
			callService:    true,
			wantStatusCode: http.StatusUnprocessableEntity,
			wantError:      auth.ErrPlusAddress.Error(),
		},
		{
			name:           "throttled",
			body:           `{"email":"c@robolike.com","redirect_to":"/profile"}`,
			mockErr:        auth.ErrTooManyRequests,
			callService:    true,
			wantStatusCode: http.StatusTooManyRequests,
			wantError:      "too many login requests, try again later",
		},
		{
			name:           "smtp down",
			body:           `{"email":"c@robolike.com","redirect_to":"/profile"}`,
			mockErr:        fmt.Errorf("auth.RequestLogin: %w: dial", auth.ErrDelivery),
			callService:    true,
			wantStatusCode: http.StatusBadGateway,
			wantError:      "failed to send email, try again later",
		},
		{
			name:           "storage down",
			body:           `{"email":"c@robolike.com","redirect_to":"/profile"}`,
			mockErr:        errors.New("db down"),
			callService:    true,
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.callService {
				svc.On("RequestLogin", mock.Anything, mock.AnythingOfType("string"), "/profile").Return(tt.mockErr).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatusCode, rr.Code)
			var resp response.Response
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			if tt.wantError != "" {
				assert.Equal(t, response.StatusError, resp.Status)
				assert.Equal(t, tt.wantError, resp.Error)
			} else {
				assert.Equal(t, response.StatusOK, resp.Status)
			}
			if !tt.callService {
				svc.AssertNotCalled(t, "RequestLogin", mock.Anything, mock.Anything, mock.Anything)
			}
			svc.AssertExpectations(t)
		})
	}
}
