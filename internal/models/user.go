// Package models содержит доменные структуры портала: пользователей, сессии,
// magic-link ключи, подписки, записи блога и события аналитики.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role роль пользователя. Закрытое множество: RoleUser или RoleAdmin.
type Role string

const (
	// RoleUser обычный клиент.
	RoleUser Role = "user"
	// RoleAdmin администратор сайта.
	RoleAdmin Role = "admin"
)

// Valid сообщает, является ли роль одной из известных.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// User представляет учётную запись клиента.
type User struct {
	ID               uuid.UUID `json:"id"`
	Email            string    `json:"email"`          // нормализованный адрес, уникальный
	Name             *string   `json:"name,omitempty"` // отображаемое имя, необязательно
	Role             Role      `json:"role"`
	CreatedAt        time.Time `json:"created_at"`
	StripeCustomerID *string   `json:"-"` // ссылка на клиента в платёжной системе
}

// IsAdmin сообщает, является ли пользователь администратором.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
