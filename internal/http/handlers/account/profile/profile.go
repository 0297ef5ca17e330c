// Package profile отдаёт данные личного кабинета: пользователя, пробный
// период, подписку и страницу, которую нужно показать.
package profile

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/robolike/portal/internal/http/middlewarectx"
	"github.com/robolike/portal/internal/http/response"
	"github.com/robolike/portal/internal/lib/sl"
	"github.com/robolike/portal/internal/models"
	"github.com/robolike/portal/internal/services/billing"
	"github.com/robolike/portal/internal/services/trial"
)

// SubscriptionService состояние подписки.
type SubscriptionService interface {
	GetSubscriptionDetails(ctx context.Context, userID uuid.UUID) (*billing.Details, error)
}

// TrialGate доступ по пробному периоду.
type TrialGate interface {
	Access(user *models.User, subscribed bool) trial.Status
}

// Profile данные кабинета.
type Profile struct {
	User         *models.User     `json:"user"`
	Trial        trial.Status     `json:"trial"`
	Subscription *billing.Details `json:"subscription"`
	View         trial.View       `json:"view"`
}

// Handler обрабатывает запрос данных кабинета.
type Handler struct {
	log           *slog.Logger
	subscriptions SubscriptionService
	trial         TrialGate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, subscriptions SubscriptionService, gate TrialGate) *Handler {
	return &Handler{
		log:           log,
		subscriptions: subscriptions,
		trial:         gate,
	}
}

// ServeHTTP godoc
// @Summary Личный кабинет
// @Description Пользователь, пробный период, подписка и страница кабинета.
// @Tags Account
// @Produce  json
// @Success 200 {object} response.Response{data=Profile}
// @Failure 401 {object} response.RedirectResponse "Нужен вход"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /account [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.profile"

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

	details, err := h.subscriptions.GetSubscriptionDetails(r.Context(), user.ID)
	if err != nil {
		log.Error("failed to get subscription details", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	status := h.trial.Access(user, details.Subscribed)
	render.JSON(w, r, response.StatusOKWithData(Profile{
		User:         user,
		Trial:        status,
		Subscription: details,
		View:         status.View,
	}))
}
