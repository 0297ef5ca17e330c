package models

import (
	"time"

	"github.com/google/uuid"
)

// Post запись блога.
type Post struct {
	ID          uuid.UUID  `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	Body        string     `json:"body"`
	Published   bool       `json:"published"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// DummyPost используется для приёма данных записи из JSON-запроса
// до валидации и сохранения.
type DummyPost struct {
	Slug      string `json:"slug" validate:"required,max=120,slug"`
	Title     string `json:"title" validate:"required,max=200"`
	Summary   string `json:"summary" validate:"max=500"`
	Body      string `json:"body" validate:"required"`
	Published bool   `json:"published"`
}
