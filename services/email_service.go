package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer delivers a single HTML email
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPConfig holds SMTP credentials
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailService handles sending emails via SMTP
type EmailService struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewEmailService creates a new email service instance
func NewEmailService(config SMTPConfig) *EmailService {
	return &EmailService{
		host:     config.Host,
		port:     config.Port,
		username: config.Username,
		password: config.Password,
		from:     config.From,
	}
}

// IsConfigured checks if SMTP is properly configured
func (e *EmailService) IsConfigured() bool {
	return e.username != "" && e.password != ""
}

// Send implements Mailer over SMTP with STARTTLS
func (e *EmailService) Send(ctx context.Context, to, subject, htmlBody string) error {
	if !e.IsConfigured() {
		return fmt.Errorf("SMTP not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	headers := [][2]string{
		{"From", fmt.Sprintf("Active Classroom <%s>", e.from)},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
		{"X-Mailer", "Active Classroom Mailer"},
	}

	var message strings.Builder
	for _, h := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	message.WriteString("\r\n")
	message.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	auth := smtp.PlainAuth("", e.username, e.password, e.host)

	conn, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	if err := conn.StartTLS(&tls.Config{ServerName: e.host}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if err := conn.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}

	if err := conn.Mail(e.from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}

	if err := conn.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := conn.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}

	if _, err := w.Write([]byte(message.String())); err != nil {
		return fmt.Errorf("failed to write email body: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	conn.Quit()

	log.Infof("[MAIL] Email %q sent to %s via SMTP", subject, to)
	return nil
}

// SendGridMailer sends through the SendGrid v3 API
type SendGridMailer struct {
	apiKey string
	host   string
	from   string
}

// NewSendGridMailer creates a SendGrid mailer. An empty host uses the public API.
func NewSendGridMailer(apiKey, from, host string) *SendGridMailer {
	if host == "" {
		host = "https://api.sendgrid.com"
	}
	return &SendGridMailer{apiKey: apiKey, host: host, from: from}
}

// Send implements Mailer
func (s *SendGridMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	message := mail.NewSingleEmail(
		mail.NewEmail("Active Classroom", s.from),
		subject,
		mail.NewEmail("", to),
		"",
		htmlBody,
	)

	request := sendgrid.GetRequest(s.apiKey, "/v3/mail/send", s.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(message)

	resp, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid rejected message: status %d: %s", resp.StatusCode, resp.Body)
	}

	log.Infof("[MAIL] Email %q sent to %s via SendGrid", subject, to)
	return nil
}

// NoopMailer logs and drops mail when no transport is configured
type NoopMailer struct{}

func (NoopMailer) Send(_ context.Context, to, subject, _ string) error {
	log.Warnf("[MAIL] No mail transport configured, dropping %q for %s", subject, to)
	return nil
}
