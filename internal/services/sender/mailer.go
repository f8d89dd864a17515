package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mrz1836/postmark"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/sl"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/smtp"
)

// ErrSendFailed возвращается, когда транспорт не смог отправить письмо.
var ErrSendFailed = errors.New("failed to send email")

// Message письмо в текстовом и HTML виде.
type Message struct {
	To       string
	Subject  string
	Tag      string
	TextBody string
	HTMLBody string
}

// Mailer отправляет письма.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer отправляет письма через SMTP транспорт.
type SMTPMailer struct {
	transport smtp.TransportInterface
	from      string
	log       *slog.Logger
}

// NewSMTPMailer создаёт отправителя поверх SMTP транспорта.
func NewSMTPMailer(transport smtp.TransportInterface, from string, log *slog.Logger) *SMTPMailer {
	return &SMTPMailer{transport: transport, from: from, log: log}
}

// Send отправляет письмо одной SMTP-сессией.
func (m *SMTPMailer) Send(_ context.Context, msg Message) error {
	const op = "sender.SMTPMailer.Send"
	log := m.log.With(slog.String("op", op), slog.String("to", msg.To))

	raw := strings.Join([]string{
		"From: " + m.from,
		"To: " + msg.To,
		"Subject: " + msg.Subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		msg.TextBody,
	}, "\r\n")

	client, err := m.transport.Connect()
	if err != nil {
		log.Error("failed to connect to SMTP server", sl.Err(err))
		return errors.Join(ErrSendFailed, err)
	}
	defer client.Close()

	if err := client.Mail(m.transport.Sender()); err != nil {
		log.Error("failed to set MAIL FROM", sl.Err(err))
		return errors.Join(ErrSendFailed, err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		log.Error("failed to set RCPT TO", sl.Err(err))
		return errors.Join(ErrSendFailed, err)
	}

	wc, err := client.Data()
	if err != nil {
		log.Error("failed to get Data writer", sl.Err(err))
		return errors.Join(ErrSendFailed, err)
	}
	if _, err = wc.Write([]byte(raw)); err != nil {
		log.Error("failed to write email body", sl.Err(err))
		return errors.Join(ErrSendFailed, err)
	}
	if err = wc.Close(); err != nil {
		log.Error("failed to close Data writer", sl.Err(err))
		return errors.Join(ErrSendFailed, err)
	}
	if err = client.Quit(); err != nil {
		log.Error("failed to quit SMTP client", sl.Err(err))
		return errors.Join(ErrSendFailed, err)
	}
	return nil
}

// postmarkAPI часть клиента Postmark, которую использует PostmarkMailer.
type postmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// PostmarkMailer отправляет письма через транзакционный API Postmark.
type PostmarkMailer struct {
	client postmarkAPI
	from   string
}

// NewPostmarkMailer создаёт отправителя Postmark. Нужен серверный токен.
func NewPostmarkMailer(serverToken, from string) (*PostmarkMailer, error) {
	if serverToken == "" {
		return nil, fmt.Errorf("sender.NewPostmarkMailer: server token is required")
	}
	if from == "" {
		return nil, fmt.Errorf("sender.NewPostmarkMailer: sender address is required")
	}
	return &PostmarkMailer{client: postmark.NewClient(serverToken, ""), from: from}, nil
}

// Send отправляет письмо.
func (m *PostmarkMailer) Send(ctx context.Context, msg Message) error {
	resp, err := m.client.SendEmail(ctx, postmark.Email{
		From:       m.from,
		To:         msg.To,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		TextBody:   msg.TextBody,
		HTMLBody:   msg.HTMLBody,
		TrackOpens: true,
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrSendFailed, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
