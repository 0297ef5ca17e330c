// Package track принимает события аналитики из браузера.
package track

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/robolike/portal/internal/http/middlewarectx"
	"github.com/robolike/portal/internal/http/response"
	"github.com/robolike/portal/internal/lib/sl"
	"github.com/robolike/portal/internal/lib/validate"
	"github.com/robolike/portal/internal/services/analytics"
)

// MaxBodyBytes предел размера события.
const MaxBodyBytes = 8 << 10

// Service публикация события.
type Service interface {
	Track(ctx context.Context, in analytics.TrackInput, userID *uuid.UUID) error
}

// Handler обрабатывает события из браузера.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validate.New(),
	}
}

// ServeHTTP godoc
// @Summary Событие аналитики
// @Description Принимает page_view, cta_click и download_click.
// @Tags Analytics
// @Accept  json
// @Produce  json
// @Param request body analytics.TrackInput true "Событие"
// @Success 202 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Событие не принимается"
// @Failure 429 {object} response.ErrorResponse "Слишком много запросов"
// @Failure 503 {object} response.ErrorResponse "Очередь недоступна"
// @Router /analytics/track [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.analytics.track"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var in analytics.TrackInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&in); err != nil {
		log.Debug("failed to decode event", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(in); err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	var userID *uuid.UUID
	if user, ok := middlewarectx.UserFromContext(r.Context()); ok {
		userID = &user.ID
	}

	err := h.service.Track(r.Context(), in, userID)
	if errors.Is(err, analytics.ErrEventNotAllowed) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("event is not accepted"))
		return
	}
	if err != nil {
		log.Error("failed to publish event", slog.String("event", in.Name), sl.Err(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("event queue unavailable"))
		return
	}

	w.WriteHeader(http.StatusAccepted)
	render.JSON(w, r, response.StatusOKWithData(nil))
}
