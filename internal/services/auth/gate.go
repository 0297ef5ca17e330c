package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"slices"
	"strings"

	"github.com/robolike/portal/internal/lib/metrics"
	"github.com/robolike/portal/internal/models"
	"github.com/robolike/portal/internal/storage/repository"
)

// Confirmation результат подтверждения ссылки.
type Confirmation struct {
	Session  *models.Session
	User     *models.User
	Redirect string
}

// ConfirmMagicLink гасит ключ, открывает сессию и решает, куда вести пользователя.
// Отсутствующий, использованный и истёкший ключ неразличимы: ErrInvalidMagicLink.
func (s *Service) ConfirmMagicLink(ctx context.Context, key, redirectTo string) (*Confirmation, error) {
	const op = "auth.ConfirmMagicLink"

	if key == "" {
		metrics.MagicLinksConfirmed.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, ErrInvalidMagicLink
	}

	now := s.now()
	userID, err := s.repo.ConsumeMagicLinkKey(ctx, key, now)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.MagicLinksConfirmed.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, ErrInvalidMagicLink
	}
	if err != nil {
		metrics.MagicLinksConfirmed.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		metrics.MagicLinksConfirmed.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sessionID, err := randomToken(sessionBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	session := &models.Session{
		ID:        sessionID,
		UserID:    &user.ID,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
		CreatedAt: now,
	}
	if err = s.repo.CreateSession(ctx, session); err != nil {
		metrics.MagicLinksConfirmed.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.MagicLinksConfirmed.WithLabelValues(metrics.ResultOK).Inc()
	s.log.Info("magic link confirmed",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
		slog.String("role", string(user.Role)),
	)
	return &Confirmation{
		Session:  session,
		User:     user,
		Redirect: PostLoginRedirect(user.Role, redirectTo),
	}, nil
}

// PostLoginRedirect выбирает адрес после входа. Администратор всегда идёт в
// панель; пользователь на безопасный локальный путь, но не в /admin.
func PostLoginRedirect(role models.Role, redirectTo string) string {
	switch role {
	case models.RoleAdmin:
		return AdminRedirect
	case models.RoleUser:
		target := SanitizeRedirect(redirectTo)
		if target == "" || isAdminPath(target) {
			return DefaultRedirect
		}
		return target
	default:
		return DefaultRedirect
	}
}

// SanitizeRedirect оставляет только локальные пути. Всё остальное даёт "".
// Управляющие символы и обратный слэш не допускаются нигде в адресе.
func SanitizeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return ""
	}
	for _, c := range target {
		if c < 0x20 || c == 0x7f || c == '\\' {
			return ""
		}
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Opaque != "" {
		return ""
	}
	return target
}

// isAdminPath сравнивает уже раскодированный и нормализованный путь,
// так что "/admin#x" и "/%2e/admin" тоже считаются панелью.
func isAdminPath(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return true
	}
	p := path.Clean(u.Path)
	return p == AdminRedirect || strings.HasPrefix(p, AdminRedirect+"/")
}

// RequireAuth проверяет сессию и роль. При успехе продлевает сессию на
// полный срок и возвращает её вместе с пользователем. Нет сессии, она
// истекла или анонимна: *RedirectError на loginRedirect. Роль не из
// allowedRoles: *RedirectError на UnauthorizedRedirect. Пустой allowedRoles
// пускает любую роль.
func (s *Service) RequireAuth(ctx context.Context, sessionID, loginRedirect string,
	allowedRoles ...models.Role) (*models.Session, *models.User, error) {
	const op = "auth.RequireAuth"

	toLogin := &RedirectError{Location: loginRedirect}
	if sessionID == "" {
		return nil, nil, toLogin
	}

	now := s.now()
	session, err := s.repo.GetSession(ctx, sessionID, now)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, toLogin
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	if !session.Authenticated() {
		return nil, nil, toLogin
	}

	user, err := s.repo.GetUserByID(ctx, *session.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, toLogin
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(allowedRoles) > 0 && !slices.Contains(allowedRoles, user.Role) {
		return nil, nil, &RedirectError{Location: UnauthorizedRedirect, Forbidden: true}
	}

	expiresAt := now.Add(s.cfg.SessionTTL)
	err = s.repo.TouchSession(ctx, session.ID, expiresAt)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, toLogin
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	session.ExpiresAt = expiresAt
	return session, user, nil
}

// Logout удаляет серверную сессию.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	const op = "auth.Logout"
	if sessionID == "" {
		return nil
	}
	if err := s.repo.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
