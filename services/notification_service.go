package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/active-classroom-api/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceStore persists rendered invoices and returns a shareable URL
type InvoiceStore interface {
	PutInvoice(ctx context.Context, tranID string, html []byte) (string, error)
}

// Invoice is everything the purchase email shows
type Invoice struct {
	TranID            string
	CustomerName      string
	CustomerEmail     string
	CourseTitle       string
	Amount            decimal.Decimal
	Currency          string
	PaidAt            time.Time
	FacebookGroupLink string
	InvoiceURL        string
}

// RetryPolicy bounds the exponential backoff of mail delivery
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy retries after 1s, 2s, 4s, 8s
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second}

// Delay returns the wait before attempt n+1 (n starts at 1)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if d <= 0 || (p.MaxDelay > 0 && d > p.MaxDelay) {
		return p.MaxDelay
	}
	return d
}

// NotificationService sends the purchase invoice once an enrollment commits
type NotificationService struct {
	db     *gorm.DB
	mailer Mailer
	store  InvoiceStore
	retry  RetryPolicy
}

// NewNotificationService creates a notification service. store may be nil.
func NewNotificationService(db *gorm.DB, mailer Mailer, store InvoiceStore, retry RetryPolicy) *NotificationService {
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy
	}
	return &NotificationService{db: db, mailer: mailer, store: store, retry: retry}
}

var invoiceTemplate = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Invoice {{.TranID}}</title></head>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
    <h2>Thank You for Your Purchase!</h2>
    <p>Dear {{if .CustomerName}}{{.CustomerName}}{{else}}Customer{{end}},</p>
    <p>Your purchase of <strong>{{.CourseTitle}}</strong> has been successfully completed.</p>
    <h3>Transaction Details:</h3>
    <ul>
        <li>Transaction ID: {{.TranID}}</li>
        <li>Course: {{.CourseTitle}}</li>
        <li>Amount: {{.Amount.StringFixed 2}} {{.Currency}}</li>
        <li>Date: {{.PaidAt.Format "02 Jan 2006 15:04 MST"}}</li>
        <li>Status: success</li>
    </ul>
    {{if .FacebookGroupLink}}<p>Join the course group: <a href="{{.FacebookGroupLink}}">{{.FacebookGroupLink}}</a></p>{{end}}
    {{if .InvoiceURL}}<p>A copy of this invoice is available at <a href="{{.InvoiceURL}}">{{.InvoiceURL}}</a>.</p>{{end}}
    <p>Thank you for choosing our platform!</p>
    <p>Best regards,<br>Active Classroom Team</p>
</body>
</html>`))

// RenderInvoice renders the invoice HTML
func RenderInvoice(inv Invoice) ([]byte, error) {
	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, inv); err != nil {
		return nil, fmt.Errorf("failed to render invoice: %w", err)
	}
	return buf.Bytes(), nil
}

// SendInvoice stores the invoice when storage is configured, then emails it with retries.
// Failures are returned to the caller for logging; nothing here touches payment state.
func (s *NotificationService) SendInvoice(ctx context.Context, inv Invoice) error {
	if inv.CustomerEmail == "" {
		return fmt.Errorf("no email address for transaction %s", inv.TranID)
	}

	if s.store != nil {
		s.attachInvoiceURL(ctx, &inv)
	}

	body, err := RenderInvoice(inv)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Invoice for %s Purchase", inv.CourseTitle)

	var lastErr error
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		lastErr = s.mailer.Send(ctx, inv.CustomerEmail, subject, string(body))
		if lastErr == nil {
			return nil
		}

		if attempt == s.retry.MaxAttempts {
			break
		}

		backoff := s.retry.Delay(attempt)
		log.Warnf("[MAIL] Invoice %s attempt %d/%d failed, retrying in %v: %v",
			inv.TranID, attempt, s.retry.MaxAttempts, backoff, lastErr)

		select {
		case <-ctx.Done():
			return fmt.Errorf("invoice %s abandoned: %w", inv.TranID, ctx.Err())
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("invoice %s not delivered after %d attempts: %w", inv.TranID, s.retry.MaxAttempts, lastErr)
}

func (s *NotificationService) attachInvoiceURL(ctx context.Context, inv *Invoice) {
	html, err := RenderInvoice(*inv)
	if err != nil {
		log.Errorf("[MAIL] %v", err)
		return
	}

	url, err := s.store.PutInvoice(ctx, inv.TranID, html)
	if err != nil {
		log.Warnf("[MAIL] Invoice upload for %s failed: %v", inv.TranID, err)
		return
	}
	inv.InvoiceURL = url

	if s.db == nil {
		return
	}
	err = s.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("tran_id = ?", inv.TranID).
		Update("invoice_url", url).Error
	if err != nil {
		log.Warnf("[MAIL] Failed to record invoice URL for %s: %v", inv.TranID, err)
	}
}
