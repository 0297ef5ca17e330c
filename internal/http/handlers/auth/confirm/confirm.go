// Package confirm реализует переход по ссылке из письма: ключ гасится,
// открывается сессия, и браузер уходит на страницу после входа.
package confirm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/robolike/portal/internal/http/middlewarectx"
	"github.com/robolike/portal/internal/lib/sl"
	"github.com/robolike/portal/internal/services/auth"
)

// ServerErrorRedirect куда уводим при внутренней ошибке.
const ServerErrorRedirect = "/login?error=server_error"

// Service подтверждение ссылки.
type Service interface {
	ConfirmMagicLink(ctx context.Context, key, redirectTo string) (*auth.Confirmation, error)
}

// Handler обрабатывает переход по ссылке входа.
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
// @Summary Подтверждение ссылки входа
// @Description Гасит ключ, выставляет cookie сессии и перенаправляет.
// @Tags Auth
// @Param key query string true "Ключ из письма"
// @Param redirectTo query string false "Страница после входа"
// @Success 302 "Перенаправление после входа"
// @Router /auth/confirm [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.confirm"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	q := r.URL.Query()
	conf, err := h.service.ConfirmMagicLink(r.Context(), q.Get("key"), q.Get("redirectTo"))
	if errors.Is(err, auth.ErrInvalidMagicLink) {
		log.Info("invalid magic link")
		http.Redirect(w, r, auth.InvalidLinkRedirect, http.StatusFound)
		return
	}
	if err != nil {
		log.Error("failed to confirm magic link", sl.Err(err))
		http.Redirect(w, r, ServerErrorRedirect, http.StatusFound)
		return
	}

	h.cookies.Set(w, conf.Session.ID, conf.Session.ExpiresAt)
	http.Redirect(w, r, conf.Redirect, http.StatusFound)
}
