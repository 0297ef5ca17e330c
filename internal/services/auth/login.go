package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/robolike/portal/internal/lib/metrics"
	"github.com/robolike/portal/internal/lib/sl"
	"github.com/robolike/portal/internal/models"
	"github.com/robolike/portal/internal/storage/repository"
)

type loginInput struct {
	Email string `validate:"required,email,noplus"`
}

// RequestLogin выдаёт новую одноразовую ссылку входа и отправляет её на адрес.
// Неизвестный адрес регистрируется. Ранее выданные ключи остаются в силе.
func (s *Service) RequestLogin(ctx context.Context, email, redirectTo string) error {
	const op = "auth.RequestLogin"

	email = NormalizeEmail(email)
	if err := s.checkEmail(email); err != nil {
		return err
	}
	log := s.log.With(slog.String("op", op), sl.Email(email))

	if err := s.checkThrottle(ctx, log, email); err != nil {
		return err
	}

	user, created, err := s.findOrCreateUser(ctx, email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if created {
		log.Info("user created", slog.String("user_id", user.ID.String()), slog.String("role", string(user.Role)))
		s.record(ctx, models.EventUserCreated, user.ID)
		if s.list != nil {
			if err := s.list.Subscribe(ctx, email); err != nil {
				log.Warn("failed to add address to mailing list", sl.Err(err))
			}
		}
	}

	key, err := randomToken(keyBytes)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	now := s.now()
	if err = s.repo.CreateMagicLinkKey(ctx, &models.MagicLinkKey{
		Key:       key,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.cfg.MagicLinkTTL),
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = s.mailer.SendMagicLink(ctx, email, s.buildLink(key, redirectTo)); err != nil {
		log.Error("failed to send magic link", sl.Err(err))
		if delErr := s.repo.DeleteMagicLinkKey(ctx, key); delErr != nil {
			log.Warn("failed to delete undelivered key", sl.Err(delErr))
		}
		return fmt.Errorf("%s: %w: %v", op, ErrDelivery, err)
	}

	metrics.MagicLinksIssued.Inc()
	if created {
		s.record(ctx, models.EventSignup, user.ID)
	} else {
		s.record(ctx, models.EventLogin, user.ID)
	}
	log.Info("magic link sent")
	return nil
}

func (s *Service) checkEmail(email string) error {
	err := s.validate.Struct(loginInput{Email: email})
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "noplus" {
				return ErrPlusAddress
			}
		}
	}
	return ErrInvalidEmail
}

// checkThrottle ограничивает частоту запросов ссылки. Сбой счётчика запрос не блокирует.
func (s *Service) checkThrottle(ctx context.Context, log *slog.Logger, email string) error {
	if s.throttle == nil || s.cfg.LoginThrottleMax <= 0 {
		return nil
	}
	count, err := s.throttle.Hit(ctx, "login:"+email, s.cfg.LoginThrottleWindow)
	if err != nil {
		log.Warn("login throttle unavailable", sl.Err(err))
		return nil
	}
	if count > s.cfg.LoginThrottleMax {
		log.Warn("login throttled", slog.Int64("count", count))
		return ErrTooManyRequests
	}
	return nil
}

func (s *Service) findOrCreateUser(ctx context.Context, email string) (*models.User, bool, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	role := models.RoleUser
	if s.cfg.IsAdminEmail(email) {
		role = models.RoleAdmin
	}
	user = &models.User{
		ID:        uuid.New(),
		Email:     email,
		Role:      role,
		CreatedAt: s.now(),
	}
	err = s.repo.CreateUser(ctx, user)
	if errors.Is(err, repository.ErrAlreadyExists) {
		// параллельный запрос успел создать пользователя
		user, err = s.repo.GetUserByEmail(ctx, email)
		return user, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (s *Service) buildLink(key, redirectTo string) string {
	q := url.Values{}
	q.Set("key", key)
	if redirectTo != "" {
		q.Set("redirectTo", redirectTo)
	}
	return s.origin + "/auth/confirm?" + q.Encode()
}
