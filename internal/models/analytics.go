package models

import (
	"time"

	"github.com/google/uuid"
)

// Имена событий аналитики.
const (
	EventUserCreated          = "user_created"
	EventSignup               = "signup"
	EventLogin                = "login"
	EventSubscriptionCreated  = "subscription_created"
	EventSubscriptionUpdated  = "subscription_updated"
	EventSubscriptionCanceled = "subscription_canceled"
	EventPageView             = "page_view"
	EventCTAClick             = "cta_click"
	EventDownloadClick        = "download_click"
)

// AnalyticsEvent событие первой стороны. Публикуется в очередь
// и сохраняется отдельным потребителем.
type AnalyticsEvent struct {
	ID         uuid.UUID         `json:"id"`
	Name       string            `json:"name"`
	UserID     *uuid.UUID        `json:"user_id,omitempty"`
	Path       string            `json:"path,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// EventCount количество событий с одним именем.
type EventCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// DashboardStats сводка для административной панели.
type DashboardStats struct {
	TotalUsers          int64        `json:"total_users"`
	NewUsers30d         int64        `json:"new_users_30d"`
	ActiveSubscriptions int64        `json:"active_subscriptions"`
	Events30d           []EventCount `json:"events_30d"`
}
