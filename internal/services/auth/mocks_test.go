package auth

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/robolike/portal/internal/config"
	"github.com/robolike/portal/internal/models"
)

type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) CreateUser(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *RepoMock) CreateMagicLinkKey(ctx context.Context, key *models.MagicLinkKey) error {
	return m.Called(ctx, key).Error(0)
}

func (m *RepoMock) ConsumeMagicLinkKey(ctx context.Context, key string, now time.Time) (uuid.UUID, error) {
	args := m.Called(ctx, key, now)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *RepoMock) DeleteMagicLinkKey(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *RepoMock) CreateSession(ctx context.Context, session *models.Session) error {
	return m.Called(ctx, session).Error(0)
}

func (m *RepoMock) GetSession(ctx context.Context, id string, now time.Time) (*models.Session, error) {
	args := m.Called(ctx, id, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *RepoMock) TouchSession(ctx context.Context, id string, expiresAt time.Time) error {
	return m.Called(ctx, id, expiresAt).Error(0)
}

func (m *RepoMock) DeleteSession(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MailerMock struct {
	mock.Mock
}

func (m *MailerMock) SendMagicLink(ctx context.Context, to, link string) error {
	return m.Called(ctx, to, link).Error(0)
}

type ThrottleMock struct {
	mock.Mock
}

func (m *ThrottleMock) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	args := m.Called(ctx, key, window)
	return args.Get(0).(int64), args.Error(1)
}

type RecorderMock struct {
	mock.Mock
}

func (m *RecorderMock) Record(ctx context.Context, event models.AnalyticsEvent) error {
	return m.Called(ctx, event).Error(0)
}

type ListMock struct {
	mock.Mock
}

func (m *ListMock) Subscribe(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	repo     *RepoMock
	mailer   *MailerMock
	throttle *ThrottleMock
	events   *RecorderMock
	list     *ListMock
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:     new(RepoMock),
		mailer:   new(MailerMock),
		throttle: new(ThrottleMock),
		events:   new(RecorderMock),
		list:     new(ListMock),
	}
	cfg := config.Auth{
		AdminEmails:         []string{"owner@robolike.com"},
		MagicLinkTTL:        5 * time.Minute,
		SessionTTL:          168 * time.Hour,
		TrialDuration:       72 * time.Hour,
		LoginThrottleMax:    5,
		LoginThrottleWindow: 15 * time.Minute,
	}
	f.svc = NewService(newNoopLogger(), cfg, config.Site{Origin: "https://robolike.com/"},
		f.repo, f.mailer, f.throttle, f.events, f.list)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) assertExpectations(t mock.TestingT) {
	f.repo.AssertExpectations(t)
	f.mailer.AssertExpectations(t)
	f.throttle.AssertExpectations(t)
	f.events.AssertExpectations(t)
	f.list.AssertExpectations(t)
}

func eventNamed(name string) any {
	return mock.MatchedBy(func(e models.AnalyticsEvent) bool { return e.Name == name })
}
