// Package analyticsconsumer читает очередь событий аналитики и сохраняет их в базу.
package analyticsconsumer

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"

	"github.com/robolike/portal/internal/config"
	"github.com/robolike/portal/internal/lib/rabbitmq"
	"github.com/robolike/portal/internal/lib/sl"
	"github.com/robolike/portal/internal/services/analytics"
	"github.com/robolike/portal/internal/storage/repository"
)

// App потребитель очереди analytics.events.
type App struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	db       *repository.Storage
	consumer *analytics.Consumer
	metrics  *http.Server
	logger   *slog.Logger
}

// New подключается к базе и брокеру. Миграции накатывает портал.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = repository.CheckDatabaseReady(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.AnalyticsExchange, rabbitmq.GetAnalyticsQueues())
	if err != nil {
		conn.Close()
		_ = db.Close()
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &App{
		conn:     conn,
		ch:       ch,
		db:       db,
		consumer: analytics.NewConsumer(db, logger),
		metrics: &http.Server{
			Addr:              cfg.MetricsAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}, nil
}

// Run обрабатывает сообщения до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	go func() {
		a.logger.Info("metrics server starting on", slog.String("address", a.metrics.Addr))
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", sl.Err(err))
		}
	}()

	a.logger.Info("consuming analytics events", slog.String("queue", rabbitmq.AnalyticsQueue))
	err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, rabbitmq.AnalyticsQueue, a.consumer.Handle)
	if err != nil {
		a.logger.Error("failed to consume analytics queue", sl.Err(err))
	}

	a.logger.Info("analytics consumer shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.metrics.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("failed to stop metrics server", sl.Err(err))
	}
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}

	return err
}
