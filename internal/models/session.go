package models

import (
	"time"

	"github.com/google/uuid"
)

// Session серверная запись о браузере. ID является значением cookie.
// Сессия без UserID анонимна и не даёт доступа к закрытым разделам.
type Session struct {
	ID        string
	UserID    *uuid.UUID
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Authenticated сообщает, привязана ли сессия к пользователю.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != nil && *s.UserID != uuid.Nil
}

// MagicLinkKey одноразовый ключ для входа по ссылке из письма.
type MagicLinkKey struct {
	Key       string
	UserID    uuid.UUID
	ExpiresAt time.Time
	Utilized  bool
	CreatedAt time.Time
}
