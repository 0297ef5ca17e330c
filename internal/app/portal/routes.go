// Package portal собирает HTTP-приложение портала: маршруты, сервисы и сервер.
package portal

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/robolike/portal/internal/config"
	"github.com/robolike/portal/internal/http/handlers/account/profile"
	"github.com/robolike/portal/internal/http/handlers/account/trialstatus"
	"github.com/robolike/portal/internal/http/handlers/admin/dashboard"
	"github.com/robolike/portal/internal/http/handlers/analytics/track"
	"github.com/robolike/portal/internal/http/handlers/auth/confirm"
	"github.com/robolike/portal/internal/http/handlers/auth/login"
	"github.com/robolike/portal/internal/http/handlers/auth/logout"
	"github.com/robolike/portal/internal/http/handlers/billing/action"
	"github.com/robolike/portal/internal/http/handlers/billing/webhook"
	blogcreate "github.com/robolike/portal/internal/http/handlers/blog/create"
	bloglist "github.com/robolike/portal/internal/http/handlers/blog/list"
	blogread "github.com/robolike/portal/internal/http/handlers/blog/read"
	blogremove "github.com/robolike/portal/internal/http/handlers/blog/remove"
	blogupdate "github.com/robolike/portal/internal/http/handlers/blog/update"
	"github.com/robolike/portal/internal/http/handlers/health"
	"github.com/robolike/portal/internal/http/middlewarectx"
	"github.com/robolike/portal/internal/models"
	"github.com/robolike/portal/internal/services/admin"
	"github.com/robolike/portal/internal/services/analytics"
	"github.com/robolike/portal/internal/services/auth"
	"github.com/robolike/portal/internal/services/billing"
	"github.com/robolike/portal/internal/services/blog"
	"github.com/robolike/portal/internal/services/trial"
)

// Services зависимости обработчиков.
type Services struct {
	Auth      *auth.Service
	Billing   *billing.Service
	Trial     *trial.Gate
	Blog      *blog.Service
	Analytics *analytics.Recorder
	Dashboard *admin.Dashboard
	Health    map[string]health.Pinger
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, svc Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
		middlewarectx.MetricsMiddleware,
	)

	cookies := middlewarectx.NewCookies(cfg.Auth)
	limiter := middlewarectx.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)

	r.Get("/health", health.New(logger, svc.Health).ServeHTTP)

	// Ссылка из письма и выход работают со страницами, а не с API
	r.Get("/auth/confirm", confirm.New(logger, svc.Auth, cookies).ServeHTTP)
	r.Post("/auth/logout", logout.New(logger, svc.Auth, cookies).ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		// Открытые конечные точки с ограничением частоты
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, limiter))
			r.Post("/auth/login", login.New(logger, svc.Auth).ServeHTTP)
			r.Post("/analytics/track", track.New(logger, svc.Analytics).ServeHTTP)
		})

		// Подпись проверяется внутри, сессия не нужна
		r.Post("/billing/webhook", webhook.New(logger, svc.Billing).ServeHTTP)

		r.Get("/blog", bloglist.New(logger, svc.Blog, false).ServeHTTP)
		r.Get("/blog/{slug}", blogread.New(logger, svc.Blog).ServeHTTP)

		// Любой вошедший пользователь
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RequireSession(logger, svc.Auth, cookies))
			r.Get("/account", profile.New(logger, svc.Billing, svc.Trial).ServeHTTP)
			r.Get("/account/trial", trialstatus.New(logger, svc.Billing, svc.Trial).ServeHTTP)
			r.Post("/billing", action.New(logger, svc.Billing).ServeHTTP)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middlewarectx.RequireSession(logger, svc.Auth, cookies, models.RoleAdmin))
			r.Get("/dashboard", dashboard.New(logger, svc.Dashboard).ServeHTTP)
			r.Get("/posts", bloglist.New(logger, svc.Blog, true).ServeHTTP)
			r.Post("/posts", blogcreate.New(logger, svc.Blog).ServeHTTP)
			r.Put("/posts/{id}", blogupdate.New(logger, svc.Blog).ServeHTTP)
			r.Delete("/posts/{id}", blogremove.New(logger, svc.Blog).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
