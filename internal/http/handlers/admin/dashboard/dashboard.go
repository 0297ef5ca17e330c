// Package dashboard отдаёт сводку административной панели.
package dashboard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/robolike/portal/internal/http/response"
	"github.com/robolike/portal/internal/lib/sl"
	"github.com/robolike/portal/internal/models"
)

// Service сводка.
type Service interface {
	Stats(ctx context.Context) (*models.DashboardStats, error)
}

// Handler обрабатывает запрос сводки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Сводка
// @Description Пользователи, активные подписки и события за 30 дней.
// @Tags Admin
// @Produce  json
// @Success 200 {object} response.Response{data=models.DashboardStats}
// @Failure 403 {object} response.RedirectResponse "Нужна роль администратора"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /admin/dashboard [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.dashboard"

	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.log.Error("failed to collect stats",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Err(err),
		)
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not collect stats"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(stats))
}
