// Package trialstatus отдаёт окно пробного периода текущего пользователя.
package trialstatus

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

// Handler обрабатывает запрос пробного периода.
type Handler struct {
	log           *slog.Logger
	subscriptions SubscriptionService
	trial         TrialGate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, subscriptions SubscriptionService, gate TrialGate) *Handler {
	return &Handler{log: log, subscriptions: subscriptions, trial: gate}
}

// ServeHTTP godoc
// @Summary Пробный период
// @Description Начало и конец пробного периода и флаг окончания доступа.
// @Tags Account
// @Produce  json
// @Success 200 {object} response.Response{data=trial.Status}
// @Failure 401 {object} response.RedirectResponse "Нужен вход"
// @Router /account/trial [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.trialstatus"

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("authentication required"))
		return
	}

	subscribed := false
	details, err := h.subscriptions.GetSubscriptionDetails(r.Context(), user.ID)
	if err != nil {
		// без данных о подписке доступ считается по пробному периоду
		h.log.Error("failed to get subscription details",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Err(err),
		)
	} else {
		subscribed = details.Subscribed
	}

	render.JSON(w, r, response.StatusOKWithData(h.trial.Access(user, subscribed)))
}
