package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/robolike/portal/internal/models"
	"github.com/robolike/portal/internal/storage/repository"
)

func TestService_RequestLogin(t *testing.T) {
	existing := &models.User{ID: uuid.New(), Email: "client@robolike.com", Role: models.RoleUser, CreatedAt: fixedNow}

	tests := []struct {
		name       string
		email      string
		redirectTo string
		setup      func(f *fixture)
		wantErr    error
		checkLink  func(t *testing.T, link string)
	}{
		{
			name:       "existing user gets a link",
			email:      "  Client@RoboLike.com ",
			redirectTo: "/profile",
			setup: func(f *fixture) {
				f.throttle.On("Hit", mock.Anything, "login:client@robolike.com", 15*time.Minute).Return(int64(1), nil)
				f.repo.On("GetUserByEmail", mock.Anything, "client@robolike.com").Return(existing, nil)
				f.repo.On("CreateMagicLinkKey", mock.Anything, mock.MatchedBy(func(k *models.MagicLinkKey) bool {
					return k.UserID == existing.ID && k.ExpiresAt.Equal(fixedNow.Add(5*time.Minute)) && len(k.Key) >= 43
				})).Return(nil)
				f.mailer.On("SendMagicLink", mock.Anything, "client@robolike.com", mock.Anything).Return(nil)
				f.events.On("Record", mock.Anything, eventNamed(models.EventLogin)).Return(nil)
			},
			checkLink: func(t *testing.T, link string) {
				u, err := url.Parse(link)
				require.NoError(t, err)
				assert.Equal(t, "https", u.Scheme)
				assert.Equal(t, "robolike.com", u.Host)
				assert.Equal(t, "/auth/confirm", u.Path)
				assert.NotEmpty(t, u.Query().Get("key"))
				assert.Equal(t, "/profile", u.Query().Get("redirectTo"))
			},
		},
		{
			name:  "new admin email creates admin",
			email: "owner@robolike.com",
			setup: func(f *fixture) {
				f.throttle.On("Hit", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)
				f.repo.On("GetUserByEmail", mock.Anything, "owner@robolike.com").Return(nil, repository.ErrNotFound)
				f.repo.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
					return u.Email == "owner@robolike.com" && u.Role == models.RoleAdmin && u.CreatedAt.Equal(fixedNow)
				})).Return(nil)
				f.events.On("Record", mock.Anything, eventNamed(models.EventUserCreated)).Return(nil)
				f.list.On("Subscribe", mock.Anything, "owner@robolike.com").Return(nil)
				f.repo.On("CreateMagicLinkKey", mock.Anything, mock.Anything).Return(nil)
				f.mailer.On("SendMagicLink", mock.Anything, "owner@robolike.com", mock.Anything).Return(nil)
				f.events.On("Record", mock.Anything, eventNamed(models.EventSignup)).Return(nil)
			},
			checkLink: func(t *testing.T, link string) {
				assert.NotContains(t, link, "redirectTo")
			},
		},
		{
			name:  "new user with failing side channels still gets a link",
			email: "new@robolike.com",
			setup: func(f *fixture) {
				f.throttle.On("Hit", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), errors.New("redis down"))
				f.repo.On("GetUserByEmail", mock.Anything, "new@robolike.com").Return(nil, repository.ErrNotFound)
				f.repo.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
					return u.Role == models.RoleUser
				})).Return(nil)
				f.events.On("Record", mock.Anything, mock.Anything).Return(errors.New("broker down"))
				f.list.On("Subscribe", mock.Anything, "new@robolike.com").Return(errors.New("503"))
				f.repo.On("CreateMagicLinkKey", mock.Anything, mock.Anything).Return(nil)
				f.mailer.On("SendMagicLink", mock.Anything, "new@robolike.com", mock.Anything).Return(nil)
			},
		},
		{
			name:    "invalid email",
			email:   "not-an-email",
			setup:   func(f *fixture) {},
			wantErr: ErrInvalidEmail,
		},
		{
			name:    "empty email",
			email:   "   ",
			setup:   func(f *fixture) {},
			wantErr: ErrInvalidEmail,
		},
		{
			name:    "plus address rejected",
			email:   "client+promo@robolike.com",
			setup:   func(f *fixture) {},
			wantErr: ErrPlusAddress,
		},
		{
			name:  "throttled",
			email: "client@robolike.com",
			setup: func(f *fixture) {
				f.throttle.On("Hit", mock.Anything, "login:client@robolike.com", 15*time.Minute).Return(int64(6), nil)
			},
			wantErr: ErrTooManyRequests,
		},
		{
			name:  "mail failure deletes the key",
			email: "client@robolike.com",
			setup: func(f *fixture) {
				f.throttle.On("Hit", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)
				f.repo.On("GetUserByEmail", mock.Anything, "client@robolike.com").Return(existing, nil)
				f.repo.On("CreateMagicLinkKey", mock.Anything, mock.Anything).Return(nil)
				f.mailer.On("SendMagicLink", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))
				f.repo.On("DeleteMagicLinkKey", mock.Anything, mock.Anything).Return(nil)
			},
			wantErr: ErrDelivery,
		},
		{
			name:  "concurrent signup reuses the winner",
			email: "race@robolike.com",
			setup: func(f *fixture) {
				winner := &models.User{ID: uuid.New(), Email: "race@robolike.com", Role: models.RoleUser}
				f.throttle.On("Hit", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)
				f.repo.On("GetUserByEmail", mock.Anything, "race@robolike.com").Return(nil, repository.ErrNotFound).Once()
				f.repo.On("CreateUser", mock.Anything, mock.Anything).Return(repository.ErrAlreadyExists)
				f.repo.On("GetUserByEmail", mock.Anything, "race@robolike.com").Return(winner, nil).Once()
				f.repo.On("CreateMagicLinkKey", mock.Anything, mock.MatchedBy(func(k *models.MagicLinkKey) bool {
					return k.UserID == winner.ID
				})).Return(nil)
				f.mailer.On("SendMagicLink", mock.Anything, mock.Anything, mock.Anything).Return(nil)
				f.events.On("Record", mock.Anything, eventNamed(models.EventLogin)).Return(nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)

			err := f.svc.RequestLogin(context.Background(), tt.email, tt.redirectTo)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			f.assertExpectations(t)

			if tt.checkLink != nil {
				var link string
				for _, c := range f.mailer.Calls {
					link = c.Arguments.String(2)
				}
				require.NotEmpty(t, link)
				tt.checkLink(t, link)
			}
		})
	}
}

func TestService_RequestLogin_FreshKeyEachTime(t *testing.T) {
	f := newFixture()
	user := &models.User{ID: uuid.New(), Email: "a@robolike.com", Role: models.RoleUser}
	f.throttle.On("Hit", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)
	f.repo.On("GetUserByEmail", mock.Anything, "a@robolike.com").Return(user, nil)
	f.repo.On("CreateMagicLinkKey", mock.Anything, mock.Anything).Return(nil)
	f.mailer.On("SendMagicLink", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.events.On("Record", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, f.svc.RequestLogin(context.Background(), "a@robolike.com", ""))
	require.NoError(t, f.svc.RequestLogin(context.Background(), "a@robolike.com", ""))

	var keys []string
	for _, c := range f.repo.Calls {
		if c.Method == "CreateMagicLinkKey" {
			keys = append(keys, c.Arguments.Get(1).(*models.MagicLinkKey).Key)
		}
	}
	require.Len(t, keys, 2)
	assert.NotEqual(t, keys[0], keys[1])
	assert.False(t, strings.ContainsAny(keys[0], "+/="), "key must be URL-safe")
	f.repo.AssertNotCalled(t, "DeleteMagicLinkKey", mock.Anything, mock.Anything)
}
