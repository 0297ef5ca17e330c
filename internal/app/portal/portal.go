package portal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/robolike/portal/internal/cache"
	"github.com/robolike/portal/internal/config"
	"github.com/robolike/portal/internal/http/handlers/health"
	"github.com/robolike/portal/internal/lib/rabbitmq"
	"github.com/robolike/portal/internal/lib/sl"
	"github.com/robolike/portal/internal/lib/smtp"
	"github.com/robolike/portal/internal/migrations"
	"github.com/robolike/portal/internal/paymentprovider"
	"github.com/robolike/portal/internal/services/admin"
	"github.com/robolike/portal/internal/services/analytics"
	"github.com/robolike/portal/internal/services/auth"
	"github.com/robolike/portal/internal/services/billing"
	"github.com/robolike/portal/internal/services/blog"
	"github.com/robolike/portal/internal/services/mailer"
	"github.com/robolike/portal/internal/services/mailinglist"
	"github.com/robolike/portal/internal/services/trial"
	"github.com/robolike/portal/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// App HTTP-сервер портала и его соединения.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New подключает хранилища, накатывает миграции и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err = repository.CheckDatabaseReady(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app := &App{
		logger: logger,
		db:     db,
		cache:  cacheRedis,
	}

	// без брокера портал работает, события аналитики теряются
	var publisher analytics.Publisher = analytics.Discard{}
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		logger.Warn("rabbitmq is unavailable, analytics events will be dropped", sl.Err(err))
	} else {
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.AnalyticsExchange, rabbitmq.GetAnalyticsQueues())
		if err != nil {
			logger.Warn("failed to set up analytics channel, analytics events will be dropped", sl.Err(err))
			_ = conn.Close()
		} else {
			app.conn, app.ch = conn, ch
			publisher = rabbitmq.NewPublisher(ch, rabbitmq.AnalyticsExchange)
		}
	}
	recorder := analytics.NewRecorder(publisher, logger)

	var list auth.MailingList = mailinglist.Noop{}
	if cfg.MailingList.Enabled {
		list = mailinglist.NewClient(cfg.MailingList)
	}

	mail := mailer.New(smtp.NewTransport(cfg.SMTP, logger), logger)
	provider := paymentprovider.NewStripe(cfg.Stripe, cfg.Site)

	svc := Services{
		Auth:      auth.NewService(logger, cfg.Auth, cfg.Site, db, mail, cacheRedis, recorder, list),
		Billing:   billing.NewService(logger, db, provider, recorder),
		Trial:     trial.NewGate(cfg.TrialDuration),
		Blog:      blog.NewService(db, cacheRedis, logger),
		Analytics: recorder,
		Dashboard: admin.NewDashboard(db),
		Health: map[string]health.Pinger{
			"postgres": db,
			"redis":    cacheRedis,
		},
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, svc)

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// Run обслуживает запросы до отмены ctx, затем мягко останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err = a.server.Shutdown(timeoutCtx)
	}
	a.close()
	return err
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
