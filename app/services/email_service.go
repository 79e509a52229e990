package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/jobboard-alerts/config"
	"github.com/amirphl/jobboard-alerts/utils"
)

// EmailTransport sends one html email
type EmailTransport interface {
	SendHTML(ctx context.Context, to, subject, html string) error
}

// SMTPEmailTransport delivers mail through an SMTP relay
type SMTPEmailTransport struct {
	config  *config.EmailConfig
	backoff time.Duration
}

func NewSMTPEmailTransport(cfg *config.EmailConfig) *SMTPEmailTransport {
	return &SMTPEmailTransport{config: cfg, backoff: time.Second}
}

func (t *SMTPEmailTransport) SendHTML(ctx context.Context, to, subject, html string) error {
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("invalid email address %q: %w", to, err)
	}
	msg := buildHTMLMessage(t.from(), addr.Address, subject, html, utils.UTCNow())

	return withRetry(ctx, t.config.RetryAttempts, t.backoff, func(ctx context.Context) error {
		return t.deliver(ctx, addr.Address, msg)
	})
}

func (t *SMTPEmailTransport) from() mail.Address {
	return mail.Address{Name: t.config.FromName, Address: t.config.FromEmail}
}

func (t *SMTPEmailTransport) deliver(ctx context.Context, to string, msg []byte) error {
	hostPort := net.JoinHostPort(t.config.Host, strconv.Itoa(t.config.Port))
	dialer := &net.Dialer{Timeout: t.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", hostPort)
	if err != nil {
		return networkError("smtp dial", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else if t.config.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(t.config.Timeout))
	}

	client, err := smtp.NewClient(conn, t.config.Host)
	if err != nil {
		conn.Close()
		return networkError("smtp handshake", err)
	}
	defer client.Close()

	if t.config.UseSTARTTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: t.config.Host}); err != nil {
				return networkError("smtp starttls", err)
			}
		}
	}
	if t.config.Username != "" {
		auth := smtp.PlainAuth("", t.config.Username, t.config.Password, t.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(t.config.FromEmail); err != nil {
		return smtpError("smtp mail from", err)
	}
	if err := client.Rcpt(to); err != nil {
		return smtpError("smtp rcpt to", err)
	}
	w, err := client.Data()
	if err != nil {
		return smtpError("smtp data", err)
	}
	if _, err := w.Write(msg); err != nil {
		return networkError("smtp write", err)
	}
	if err := w.Close(); err != nil {
		return smtpError("smtp data end", err)
	}
	return client.Quit()
}

// smtpError marks 4xx replies as retryable; 5xx replies are permanent
func smtpError(op string, err error) error {
	var reply *textproto.Error
	if errors.As(err, &reply) {
		return &transportError{Op: op, StatusCode: reply.Code, Retryable: reply.Code < 500, Err: err}
	}
	return networkError(op, err)
}

func buildHTMLMessage(from mail.Address, to, subject, html string, at time.Time) []byte {
	var b bytes.Buffer
	b.WriteString("From: " + from.String() + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.BEncoding.Encode("UTF-8", subject) + "\r\n")
	b.WriteString("Date: " + at.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")

	encoded := base64.StdEncoding.EncodeToString([]byte(html))
	for len(encoded) > 76 {
		b.WriteString(encoded[:76] + "\r\n")
		encoded = encoded[76:]
	}
	b.WriteString(encoded + "\r\n")
	return b.Bytes()
}

// MockEmailTransport records emails instead of sending them
type MockEmailTransport struct {
	mu   sync.Mutex
	Sent []MockEmail
}

type MockEmail struct {
	To      string
	Subject string
	HTML    string
}

func NewMockEmailTransport() *MockEmailTransport {
	return &MockEmailTransport{}
}

func (m *MockEmailTransport) SendHTML(_ context.Context, to, subject, html string) error {
	if !strings.Contains(to, "@") {
		return fmt.Errorf("invalid email address: %s", to)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	log.Printf("Mock email sent to %s [%s]", to, subject)
	m.Sent = append(m.Sent, MockEmail{To: to, Subject: subject, HTML: html})
	return nil
}
