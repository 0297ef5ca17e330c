// Package action обрабатывает кнопки страницы оплаты: оформить, управлять,
// отменить и возобновить подписку.
package action

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/robolike/portal/internal/http/middlewarectx"
	"github.com/robolike/portal/internal/http/response"
	"github.com/robolike/portal/internal/lib/sl"
	"github.com/robolike/portal/internal/lib/validate"
	"github.com/robolike/portal/internal/models"
	"github.com/robolike/portal/internal/services/billing"
)

// Request действие со страницы оплаты. Принимается как JSON или как форма.
type Request struct {
	Action         string `json:"action" validate:"required,oneof=subscribe manage cancel restart"`
	SubscriptionID string `json:"subscription_id" validate:"max=255"`
}

// Service бизнес-логика оплаты.
type Service interface {
	Perform(ctx context.Context, user *models.User, action billing.Action, subscriptionID string) (*billing.Result, error)
}

// Handler обрабатывает действия оплаты.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validate.New(),
	}
}

// ServeHTTP godoc
// @Summary Действие с подпиской
// @Description subscribe и manage перенаправляют на страницу Stripe, cancel и restart меняют отмену в конце периода.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Param request body Request true "Действие"
// @Success 200 {object} response.Response{data=billing.Result}
// @Success 303 "Перенаправление на Stripe"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 401 {object} response.RedirectResponse "Нужен вход"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 409 {object} response.ErrorResponse "Нет клиента Stripe"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /billing [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.action"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		log.Error("user missing in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("authentication required"))
		return
	}

	req, err := decode(r)
	if err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	res, err := h.service.Perform(r.Context(), user, billing.Action(req.Action), req.SubscriptionID)
	if err != nil {
		log.Error("billing action failed", slog.String("action", req.Action), sl.Err(err))
		switch {
		case errors.Is(err, billing.ErrSubscriptionNotFound):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("subscription not found"))
		case errors.Is(err, billing.ErrNoCustomer):
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("no billing account yet, subscribe first"))
		case errors.Is(err, billing.ErrSubscriptionIDRequired), errors.Is(err, billing.ErrUnknownAction):
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error(err.Error()))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("billing is temporarily unavailable"))
		}
		return
	}

	log.Info("billing action done", slog.String("action", req.Action), slog.String("user_id", user.ID.String()))

	if res.RedirectURL != "" {
		http.Redirect(w, r, res.RedirectURL, http.StatusSeeOther)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}

func decode(r *http.Request) (Request, error) {
	var req Request
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Action = r.PostForm.Get("action")
	req.SubscriptionID = r.PostForm.Get("subscription_id")
	return req, nil
}
