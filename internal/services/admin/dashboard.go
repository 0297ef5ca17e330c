// Package admin собирает сводку для административной панели.
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/robolike/portal/internal/models"
)

// StatsWindow период, за который считаются новые пользователи и события.
const StatsWindow = 30 * 24 * time.Hour

// Repository источники счётчиков.
type Repository interface {
	CountUsers(ctx context.Context, since time.Time) (total int64, recent int64, err error)
	CountActiveSubscriptions(ctx context.Context) (int64, error)
	CountEventsSince(ctx context.Context, since time.Time) ([]models.EventCount, error)
}

// Dashboard сводка.
type Dashboard struct {
	repo Repository
	now  func() time.Time
}

// NewDashboard создаёт сводку.
func NewDashboard(repo Repository) *Dashboard {
	return &Dashboard{repo: repo, now: time.Now}
}

// Stats считает пользователей, активные подписки и события за StatsWindow.
func (d *Dashboard) Stats(ctx context.Context) (*models.DashboardStats, error) {
	const op = "admin.Stats"
	since := d.now().Add(-StatsWindow)

	total, recent, err := d.repo.CountUsers(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	active, err := d.repo.CountActiveSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	events, err := d.repo.CountEventsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if events == nil {
		events = []models.EventCount{}
	}

	return &models.DashboardStats{
		TotalUsers:          total,
		NewUsers30d:         recent,
		ActiveSubscriptions: active,
		Events30d:           events,
	}, nil
}
