// Package auth реализует вход по magic-link и серверные сессии: выдачу
// одноразовых ссылок, их подтверждение, проверку сессии на каждом запросе
// и выход.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/robolike/portal/internal/config"
	"github.com/robolike/portal/internal/lib/sl"
	"github.com/robolike/portal/internal/lib/validate"
	"github.com/robolike/portal/internal/models"
)

const (
	keyBytes     = 32
	sessionBytes = 32

	// DefaultRedirect куда попадает пользователь после входа, если цель не задана.
	DefaultRedirect = "/auth/success"
	// AdminRedirect куда всегда попадает администратор после входа.
	AdminRedirect = "/admin"
	// LoginPath страница входа.
	LoginPath = "/login"
	// UnauthorizedRedirect куда уводим пользователя без нужной роли.
	UnauthorizedRedirect = "/login?unauthorized=true"
	// InvalidLinkRedirect куда уводим при недействительной ссылке.
	InvalidLinkRedirect = "/login?error=invalid_link"
)

var (
	// ErrInvalidEmail адрес не прошёл проверку.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrPlusAddress адрес содержит "+" в локальной части.
	ErrPlusAddress = errors.New("plus addressing is not allowed")
	// ErrTooManyRequests превышен лимит запросов ссылки для адреса.
	ErrTooManyRequests = errors.New("too many login requests")
	// ErrDelivery письмо со ссылкой не отправлено.
	ErrDelivery = errors.New("failed to deliver magic link")
	// ErrInvalidMagicLink ключа нет, он уже использован или истёк.
	ErrInvalidMagicLink = errors.New("invalid or expired magic link")
)

// RedirectError означает, что запрос нужно увести на Location.
// Forbidden отличает нехватку роли от отсутствия входа.
type RedirectError struct {
	Location  string
	Forbidden bool
}

func (e *RedirectError) Error() string {
	return "redirect to " + e.Location
}

// Repository хранилище пользователей, ключей и сессий.
type Repository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	CreateMagicLinkKey(ctx context.Context, key *models.MagicLinkKey) error
	ConsumeMagicLinkKey(ctx context.Context, key string, now time.Time) (uuid.UUID, error)
	DeleteMagicLinkKey(ctx context.Context, key string) error
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string, now time.Time) (*models.Session, error)
	TouchSession(ctx context.Context, id string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, id string) error
}

// Mailer отправляет письмо со ссылкой входа.
type Mailer interface {
	SendMagicLink(ctx context.Context, to, link string) error
}

// Throttle считает обращения в окне.
type Throttle interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

// EventRecorder публикует события аналитики.
type EventRecorder interface {
	Record(ctx context.Context, event models.AnalyticsEvent) error
}

// MailingList регистрирует адрес в рассылке.
type MailingList interface {
	Subscribe(ctx context.Context, email string) error
}

// Service логика входа и сессий.
type Service struct {
	log      *slog.Logger
	cfg      config.Auth
	origin   string
	repo     Repository
	mailer   Mailer
	throttle Throttle
	events   EventRecorder
	list     MailingList
	validate *validator.Validate
	now      func() time.Time
}

// NewService создаёт сервис входа.
func NewService(log *slog.Logger, cfg config.Auth, site config.Site, repo Repository, mailer Mailer,
	throttle Throttle, events EventRecorder, list MailingList) *Service {
	return &Service{
		log:      log,
		cfg:      cfg,
		origin:   strings.TrimRight(site.Origin, "/"),
		repo:     repo,
		mailer:   mailer,
		throttle: throttle,
		events:   events,
		list:     list,
		validate: validate.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SessionTTL время жизни сессии, используется для cookie.
func (s *Service) SessionTTL() time.Duration {
	return s.cfg.SessionTTL
}

// NormalizeEmail приводит адрес к виду, в котором он хранится.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth.randomToken: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *Service) record(ctx context.Context, name string, userID uuid.UUID) {
	if s.events == nil {
		return
	}
	id := userID
	if err := s.events.Record(ctx, models.AnalyticsEvent{Name: name, UserID: &id}); err != nil {
		s.log.Warn("failed to record analytics event", slog.String("event", name), sl.Err(err))
	}
}
