package gmail

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// Sender delivers one HTML email.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

type SMTPConfig struct {
	Host     string `validate:"required"`
	Port     int    `validate:"gt=0"`
	Username string
	Password string
	From     string `validate:"required"`
}

type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends through an authenticated SMTP relay such as smtp.gmail.com:587.
type SMTPSender struct {
	config SMTPConfig
	send   sendFunc
	now    func() time.Time
}

func NewSMTPSender(config SMTPConfig) *SMTPSender {
	return &SMTPSender{config: config, send: smtp.SendMail, now: time.Now}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, html string) error {
	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	msg := s.message(to, subject, html)

	done := make(chan error, 1)

	go func() {
		done <- s.send(addr, auth, s.config.From, []string{to}, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", addr, err)
		}

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SMTPSender) message(to, subject, html string) []byte {
	var b strings.Builder

	b.WriteString("From: " + s.config.From + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Date: " + s.now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)

	return []byte(b.String())
}
