package read

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/robolike/portal/internal/models"
	"github.com/robolike/portal/internal/services/blog"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) GetPublished(ctx context.Context, slug string) (*models.Post, error) {
	args := m.Called(ctx, slug)
	if res := args.Get(0); res != nil {
		return res.(*models.Post), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestReadHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		slug           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "published post",
			slug: "first-release",
			setupMock: func(m *MockService) {
				m.On("GetPublished", mock.Anything, "first-release").
					Return(&models.Post{Slug: "first-release", Title: "First release", Published: true}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"title":"First release"`,
		},
		{
			name: "draft or missing",
			slug: "secret-draft",
			setupMock: func(m *MockService) {
				m.On("GetPublished", mock.Anything, "secret-draft").Return(nil, blog.ErrPostNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `post not found`,
		},
		{
			name: "storage error",
			slug: "broken",
			setupMock: func(m *MockService) {
				m.On("GetPublished", mock.Anything, "broken").Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not read post`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodGet, "/api/blog/"+tt.slug, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("slug", tt.slug)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			w := httptest.NewRecorder()
			New(logger, svc).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())
			svc.AssertExpectations(t)
		})
	}
}
