package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sahilchouksey/active-classroom-api/model"
	"github.com/sahilchouksey/active-classroom-api/services/sslcommerz"
	"github.com/sahilchouksey/active-classroom-api/utils/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) backdate(t *testing.T, tranID string, at time.Time) {
	t.Helper()
	require.NoError(t, f.db.Model(&model.Transaction{}).Where("tran_id = ?", tranID).
		UpdateColumn("created_at", at).Error)
}

func TestReconcileStale(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	svc := f.service(WithClock(func() time.Time { return now }))

	for _, id := range []string{"valid", "failed", "cancelled", "young", "old", "broken", "mismatch", "fresh"} {
		f.initiatedTransaction(t, id)
		f.backdate(t, id, now.Add(-time.Hour))
	}
	f.backdate(t, "old", now.Add(-72*time.Hour))
	f.backdate(t, "fresh", now.Add(-time.Minute))

	f.gateway.queries["valid"] = validFor("valid", "val-valid", 1200)
	f.gateway.queries["mismatch"] = validFor("mismatch", "val-mismatch", 10)
	f.gateway.queries["failed"] = &sslcommerz.Validation{Status: sslcommerz.StatusFailed, TranID: "failed"}
	f.gateway.queries["cancelled"] = &sslcommerz.Validation{Status: sslcommerz.StatusCancelled, TranID: "cancelled"}
	f.gateway.queryErrs["broken"] = apperrors.Gateway(errors.New("connection reset"), "transaction query unreachable")

	report, err := svc.ReconcileStale(context.Background(), 15*time.Minute, 48*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, ReconcileReport{
		Checked:   7,
		Committed: 1,
		Failed:    2,
		Cancelled: 1,
		Expired:   1,
		Errors:    1,
	}, report)
	assert.NotContains(t, f.gateway.queryCalls, "fresh")

	assert.Equal(t, model.TransactionSuccess, f.reload(t, "valid").Status)
	assert.Equal(t, "val-valid", f.reload(t, "valid").ValID)
	assert.Equal(t, model.TransactionFailed, f.reload(t, "failed").Status)
	assert.Equal(t, model.TransactionFailed, f.reload(t, "mismatch").Status)
	assert.Equal(t, model.TransactionCancelled, f.reload(t, "cancelled").Status)
	assert.Equal(t, model.TransactionInitiated, f.reload(t, "young").Status)
	assert.Equal(t, model.TransactionInitiated, f.reload(t, "broken").Status)
	assert.Equal(t, model.TransactionInitiated, f.reload(t, "fresh").Status)

	old := f.reload(t, "old")
	assert.Equal(t, model.TransactionFailed, old.Status)
	assert.Equal(t, "expired", old.FailureReason)

	assert.Equal(t, int64(1), f.count(t, &model.Enrollment{}))
	assert.Equal(t, 1, f.studentsEnrolled(t))
}

func TestReconcileSkipsSettledTransactions(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	svc := f.service(WithClock(func() time.Time { return now }))

	f.initiatedTransaction(t, "done")
	f.backdate(t, "done", now.Add(-time.Hour))
	_, err := svc.Commit(context.Background(), "done", "val-done", "redirect")
	require.NoError(t, err)

	report, err := svc.ReconcileStale(context.Background(), 15*time.Minute, 48*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, report.Checked)
	assert.Empty(t, f.gateway.queryCalls)
}

func TestReconcileStopsOnCancelledContext(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	svc := f.service(WithClock(func() time.Time { return now }))

	f.initiatedTransaction(t, "stale")
	f.backdate(t, "stale", now.Add(-time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ReconcileStale(ctx, 15*time.Minute, 48*time.Hour)
	assert.Error(t, err)
	assert.Empty(t, f.gateway.queryCalls)
}

func TestReconcileReportString(t *testing.T) {
	r := ReconcileReport{Checked: 3, Committed: 1, Expired: 2}
	assert.Equal(t, "checked=3 committed=1 failed=0 cancelled=0 expired=2 errors=0", r.String())
}
