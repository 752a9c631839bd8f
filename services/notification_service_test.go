package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyMailer struct {
	mu       sync.Mutex
	failures int
	calls    int
	onSend   func()
	lastTo   string
	lastBody string
}

func (m *flakyMailer) Send(_ context.Context, to, _, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastTo = to
	m.lastBody = html
	if m.onSend != nil {
		m.onSend()
	}
	if m.calls <= m.failures {
		return errors.New("421 service not available")
	}
	return nil
}

type memoryStore struct {
	err  error
	keys []string
}

func (s *memoryStore) PutInvoice(_ context.Context, tranID string, _ []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.keys = append(s.keys, tranID)
	return "https://cdn.example.com/invoices/" + tranID + ".html", nil
}

var fastRetry = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func sampleInvoice(tranID string) Invoice {
	return Invoice{
		TranID:        tranID,
		CustomerName:  "Rahim",
		CustomerEmail: "student@example.com",
		CourseTitle:   "HSC Physics",
		Amount:        decimal.NewFromInt(1200),
		Currency:      "BDT",
		PaidAt:        time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	p := DefaultRetryPolicy
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 8*time.Second, p.Delay(4))
	assert.Equal(t, 30*time.Second, p.Delay(6))
	assert.Equal(t, 30*time.Second, p.Delay(80))
}

func TestSendInvoiceRetriesUntilDelivered(t *testing.T) {
	mailer := &flakyMailer{failures: 2}
	svc := NewNotificationService(nil, mailer, nil, fastRetry)

	require.NoError(t, svc.SendInvoice(context.Background(), sampleInvoice("tran-1")))
	assert.Equal(t, 3, mailer.calls)
	assert.Equal(t, "student@example.com", mailer.lastTo)
	assert.Contains(t, mailer.lastBody, "tran-1")
	assert.Contains(t, mailer.lastBody, "1200.00 BDT")
}

func TestSendInvoiceGivesUp(t *testing.T) {
	mailer := &flakyMailer{failures: 10}
	svc := NewNotificationService(nil, mailer, nil, fastRetry)

	err := svc.SendInvoice(context.Background(), sampleInvoice("tran-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not delivered after 3 attempts")
	assert.Equal(t, 3, mailer.calls)
}

func TestSendInvoiceStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mailer := &flakyMailer{failures: 10, onSend: cancel}
	svc := NewNotificationService(nil, mailer, nil, RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour})

	err := svc.SendInvoice(ctx, sampleInvoice("tran-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, mailer.calls)
}

func TestSendInvoiceRequiresAddress(t *testing.T) {
	mailer := &flakyMailer{}
	svc := NewNotificationService(nil, mailer, nil, fastRetry)

	inv := sampleInvoice("tran-1")
	inv.CustomerEmail = ""
	assert.Error(t, svc.SendInvoice(context.Background(), inv))
	assert.Zero(t, mailer.calls)
}

func TestSendInvoiceStoresCopy(t *testing.T) {
	f := newFixture(t)
	f.initiatedTransaction(t, "tran-1")
	mailer := &flakyMailer{}
	store := &memoryStore{}
	svc := NewNotificationService(f.db, mailer, store, fastRetry)

	require.NoError(t, svc.SendInvoice(context.Background(), sampleInvoice("tran-1")))
	assert.Equal(t, []string{"tran-1"}, store.keys)
	assert.Contains(t, mailer.lastBody, "https://cdn.example.com/invoices/tran-1.html")
	assert.Equal(t, "https://cdn.example.com/invoices/tran-1.html", f.reload(t, "tran-1").InvoiceURL)
}

func TestSendInvoiceSurvivesStoreFailure(t *testing.T) {
	mailer := &flakyMailer{}
	store := &memoryStore{err: errors.New("access denied")}
	svc := NewNotificationService(nil, mailer, store, fastRetry)

	require.NoError(t, svc.SendInvoice(context.Background(), sampleInvoice("tran-1")))
	assert.Equal(t, 1, mailer.calls)
	assert.NotContains(t, mailer.lastBody, "copy of this invoice")
}

func TestRenderInvoiceEscapesInput(t *testing.T) {
	inv := sampleInvoice("tran-1")
	inv.CustomerName = "<script>alert(1)</script>"
	inv.FacebookGroupLink = "https://facebook.com/groups/hsc"

	html, err := RenderInvoice(inv)
	require.NoError(t, err)

	body := string(html)
	assert.False(t, strings.Contains(body, "<script>"))
	assert.Contains(t, body, "&lt;script&gt;")
	assert.Contains(t, body, `href="https://facebook.com/groups/hsc"`)
	assert.Contains(t, body, "01 May 2024 10:30 UTC")
}
