// Package logout реализует выход: серверная сессия удаляется, cookie стирается.
package logout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/robolike/portal/internal/http/middlewarectx"
	"github.com/robolike/portal/internal/lib/sl"
)

// Service удаление сессии.
type Service interface {
	Logout(ctx context.Context, sessionID string) error
}

// Handler обрабатывает выход.
type Handler struct {
	log     *slog.Logger
	service Service
	cookies middlewarectx.Cookies
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, cookies middlewarectx.Cookies) *Handler {
	return &Handler{
		log:     log,
		service: service,
		cookies: cookies,
	}
}

// ServeHTTP godoc
// @Summary Выход
// @Description Удаляет сессию и перенаправляет на главную.
// @Tags Auth
// @Success 302 "Перенаправление на главную"
// @Router /auth/logout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"

	if err := h.service.Logout(r.Context(), h.cookies.Read(r)); err != nil {
		h.log.Error("failed to delete session",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Err(err),
		)
	}
	h.cookies.Clear(w)
	http.Redirect(w, r, "/", http.StatusFound)
}
