// Package middlewarectx содержит HTTP middleware портала: проверку сессии
// по cookie, ограничение частоты запросов и сбор метрик.
//
// RequireSession проверяет cookie сессии и роль пользователя. При успехе
// продлевает cookie и кладёт пользователя и сессию в контекст. Страницы
// перенаправляются на вход, API получает JSON 401/403 с полем location.
package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/robolike/portal/internal/http/response"
	"github.com/robolike/portal/internal/lib/sl"
	"github.com/robolike/portal/internal/models"
	"github.com/robolike/portal/internal/services/auth"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserKey ключ пользователя в контексте
	UserKey Key = "user"
	// SessionKey ключ сессии в контексте
	SessionKey Key = "session"
)

// Authenticator проверяет сессию и роль.
type Authenticator interface {
	RequireAuth(ctx context.Context, sessionID, loginRedirect string,
		allowedRoles ...models.Role) (*models.Session, *models.User, error)
}

// RequireSession возвращает middleware, пропускающий только пользователей
// с действующей сессией и одной из ролей allowedRoles (пустой список означает любую роль).
func RequireSession(log *slog.Logger, authenticator Authenticator, cookies Cookies,
	allowedRoles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.RequireSession"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			session, user, err := authenticator.RequireAuth(r.Context(), cookies.Read(r),
				LoginRedirect(r), allowedRoles...)
			if err != nil {
				var redirErr *auth.RedirectError
				if errors.As(err, &redirErr) {
					if !redirErr.Forbidden {
						cookies.Clear(w)
					}
					deny(w, r, redirErr)
					return
				}
				log.Error("failed to check session", sl.Err(err))
				w.WriteHeader(http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal error"))
				return
			}

			cookies.Set(w, session.ID, session.ExpiresAt)
			ctx := context.WithValue(r.Context(), UserKey, user)
			ctx = context.WithValue(ctx, SessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoginRedirect адрес страницы входа с возвратом на текущую страницу.
func LoginRedirect(r *http.Request) string {
	return auth.LoginPath + "?redirectTo=" + url.QueryEscape(r.URL.RequestURI())
}

// IsAPIRequest отличает вызовы API от переходов по страницам.
func IsAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

func deny(w http.ResponseWriter, r *http.Request, redirErr *auth.RedirectError) {
	if !IsAPIRequest(r) {
		http.Redirect(w, r, redirErr.Location, http.StatusFound)
		return
	}
	if redirErr.Forbidden {
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Redirect("insufficient role", redirErr.Location))
		return
	}
	w.WriteHeader(http.StatusUnauthorized)
	render.JSON(w, r, response.Redirect("authentication required", redirErr.Location))
}

// UserFromContext возвращает пользователя, положенного RequireSession.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserKey).(*models.User)
	return user, ok && user != nil
}

// SessionFromContext возвращает сессию, положенную RequireSession.
func SessionFromContext(ctx context.Context) (*models.Session, bool) {
	session, ok := ctx.Value(SessionKey).(*models.Session)
	return session, ok && session != nil
}
