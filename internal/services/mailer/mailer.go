// Package mailer отправляет письма портала через SMTP.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/robolike/portal/internal/lib/sl"
	"github.com/robolike/portal/internal/lib/smtp"
)

const magicLinkSubject = "Вход в RoboLike"

// Transport открывает соединение с SMTP-сервером.
type Transport interface {
	Connect() (smtp.Client, error)
	Sender() string
}

// Mailer отправка писем.
type Mailer struct {
	transport Transport
	log       *slog.Logger
}

// New создаёт отправителя писем.
func New(transport Transport, log *slog.Logger) *Mailer {
	return &Mailer{transport: transport, log: log}
}

// SendMagicLink отправляет письмо со ссылкой входа.
func (m *Mailer) SendMagicLink(ctx context.Context, to, link string) error {
	const op = "mailer.SendMagicLink"

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	body := fmt.Sprintf("Здравствуйте!\r\n\r\n"+
		"Чтобы войти в RoboLike, перейдите по ссылке:\r\n%s\r\n\r\n"+
		"Ссылка одноразовая и действует несколько минут. "+
		"Если вы не запрашивали вход, просто проигнорируйте это письмо.\r\n", link)

	if err := m.send(to, magicLinkSubject, body); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (m *Mailer) send(to, subject, body string) error {
	from := m.transport.Sender()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("UTF-8", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"Content-Transfer-Encoding: 8bit",
		"",
		body,
	}, "\r\n")

	client, err := m.transport.Connect()
	if err != nil {
		m.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			m.log.Debug("smtp client close", sl.Err(closeErr))
		}
	}()

	if err = client.Mail(from); err != nil {
		m.log.Error("failed to set MAIL FROM", slog.String("from", from), sl.Err(err))
		return err
	}
	if err = client.Rcpt(to); err != nil {
		m.log.Error("failed to set RCPT TO", sl.Email(to), sl.Err(err))
		return err
	}

	wc, err := client.Data()
	if err != nil {
		m.log.Error("failed to get data writer", sl.Err(err))
		return err
	}
	if _, err = wc.Write([]byte(msg)); err != nil {
		m.log.Error("failed to write email body", sl.Err(err))
		return err
	}
	if err = wc.Close(); err != nil {
		m.log.Error("failed to close data writer", sl.Err(err))
		return err
	}
	if err = client.Quit(); err != nil {
		m.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	m.log.Info("email sent", sl.Email(to))
	return nil
}
