// Package trial вычисляет пробный период пользователя. Окно не хранится:
// оно выводится из даты создания учётной записи.
package trial

import (
	"time"

	"github.com/robolike/portal/internal/models"
)

// View страница, которую должен увидеть пользователь в личном кабинете.
type View string

const (
	ViewTrial   View = "trial"
	ViewProfile View = "profile"
	ViewExpired View = "expired"
)

// DefaultDuration длительность пробного периода по умолчанию.
const DefaultDuration = 72 * time.Hour

// Gate решает, есть ли у пользователя доступ по пробному периоду.
type Gate struct {
	Duration time.Duration
	Now      func() time.Time
}

// Status итог проверки доступа.
type Status struct {
	StartedAt     time.Time `json:"trial_started_at"`
	ExpiresAt     time.Time `json:"trial_expires_at"`
	OnTrial       bool      `json:"on_trial"`
	AccessExpired bool      `json:"access_expired"`
	View          View      `json:"view"`
}

// NewGate создаёт проверку с заданной длительностью.
func NewGate(duration time.Duration) *Gate {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Gate{Duration: duration, Now: time.Now}
}

func (g *Gate) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

// ExpiresAt момент окончания пробного периода.
func (g *Gate) ExpiresAt(user *models.User) time.Time {
	return user.CreatedAt.Add(g.Duration)
}

// IsOnTrial true строго до момента окончания.
func (g *Gate) IsOnTrial(user *models.User) bool {
	return g.now().Before(g.ExpiresAt(user))
}

// Access сводит пробный период и подписку в одно решение.
func (g *Gate) Access(user *models.User, subscribed bool) Status {
	st := Status{
		StartedAt: user.CreatedAt,
		ExpiresAt: g.ExpiresAt(user),
		OnTrial:   g.IsOnTrial(user),
	}

	switch user.Role {
	case models.RoleAdmin:
		st.View = ViewProfile
	case models.RoleUser:
		switch {
		case st.OnTrial:
			st.View = ViewTrial
		case subscribed:
			st.View = ViewProfile
		default:
			st.View = ViewExpired
			st.AccessExpired = true
		}
	default:
		st.View = ViewExpired
		st.AccessExpired = true
	}
	return st
}
