package middlewarectx

import (
	"net/http"
	"time"

	"github.com/robolike/portal/internal/config"
)

// Cookies параметры cookie сессии.
type Cookies struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

// NewCookies берёт параметры cookie из настроек входа.
func NewCookies(cfg config.Auth) Cookies {
	return Cookies{
		Name:   cfg.CookieName,
		Secure: cfg.CookieSecure,
		TTL:    cfg.SessionTTL,
	}
}

// Read возвращает ID сессии из запроса или "".
func (c Cookies) Read(r *http.Request) string {
	cookie, err := r.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Set выставляет cookie сессии до expiresAt.
func (c Cookies) Set(w http.ResponseWriter, sessionID string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    sessionID,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(c.TTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear удаляет cookie сессии в браузере.
func (c Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
