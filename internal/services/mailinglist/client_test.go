package mailinglist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robolike/portal/internal/config"
)

func TestClient_Subscribe(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "created", status: http.StatusCreated},
		{name: "already subscribed", status: http.StatusConflict},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got contactRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/contacts", r.URL.Path)
				assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewClient(config.MailingList{URL: srv.URL + "/", APIKey: "key-1", Timeout: time.Second})
			err := c.Subscribe(context.Background(), "new@robolike.com")
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "mailinglist.Subscribe")
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, "new@robolike.com", got.Email)
			assert.Equal(t, "signup", got.Source)
		})
	}
}

func TestClient_SubscribeCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(config.MailingList{URL: srv.URL, Timeout: time.Second})
	require.Error(t, c.Subscribe(ctx, "a@b.c"))
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.Subscribe(context.Background(), "a@b.c"))
}
