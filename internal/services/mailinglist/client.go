// Package mailinglist регистрирует адреса новых пользователей во внешнем сервисе рассылок.
package mailinglist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/robolike/portal/internal/config"
)

// Client HTTP-клиент сервиса рассылок
type Client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

type contactRequest struct {
	Email  string `json:"email"`
	Source string `json:"source"`
}

// NewClient создаёт клиент по настройкам mailing_list
func NewClient(cfg config.MailingList) *Client {
	return &Client{
		apiURL:     strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Subscribe добавляет адрес в список. Уже существующий контакт (409) ошибкой не считается.
func (c *Client) Subscribe(ctx context.Context, email string) error {
	const op = "mailinglist.Subscribe"

	req, err := c.newRequest(ctx, http.MethodPost, "/contacts", contactRequest{Email: email, Source: "signup"})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300, resp.StatusCode == http.StatusConflict:
		return nil
	default:
		return fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}
}

// Noop используется, когда рассылки выключены
type Noop struct{}

// Subscribe ничего не делает
func (Noop) Subscribe(context.Context, string) error { return nil }
