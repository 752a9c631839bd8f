package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/active-classroom-api/model"
	"github.com/sahilchouksey/active-classroom-api/services/sslcommerz"
)

// ReconcileReport summarizes one sweep over stale transactions
type ReconcileReport struct {
	Checked   int
	Committed int
	Failed    int
	Cancelled int
	Expired   int
	Errors    int
}

func (r ReconcileReport) String() string {
	return fmt.Sprintf("checked=%d committed=%d failed=%d cancelled=%d expired=%d errors=%d",
		r.Checked, r.Committed, r.Failed, r.Cancelled, r.Expired, r.Errors)
}

const reconcileBatchSize = 100

// ReconcileStale asks the gateway about transactions stuck in initiated for
// longer than staleAfter. Confirmed payments go through the normal commit;
// transactions older than expireAfter with no confirmation are failed.
func (s *PaymentService) ReconcileStale(ctx context.Context, staleAfter, expireAfter time.Duration) (ReconcileReport, error) {
	var report ReconcileReport
	now := s.now()

	var stale []model.Transaction
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.TransactionInitiated, now.Add(-staleAfter)).
		Order("created_at ASC").
		Limit(reconcileBatchSize).
		Find(&stale).Error
	if err != nil {
		return report, fmt.Errorf("failed to load stale transactions: %w", err)
	}

	for i := range stale {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		t := &stale[i]
		report.Checked++
		expired := now.Sub(t.CreatedAt) > expireAfter

		v, err := s.gateway.QueryByTranID(ctx, t.TranID)
		switch {
		case errors.Is(err, sslcommerz.ErrNoRecord):
			if expired {
				s.expire(ctx, t.TranID, &report)
			}
			continue
		case err != nil:
			log.Warnf("[CRON] Gateway query for %s failed: %v", t.TranID, err)
			report.Errors++
			continue
		}

		switch {
		case v.IsValid():
			if reason := mismatch(t, v); reason != "" {
				log.Warnf("[CRON] Gateway record for %s rejected: %s", t.TranID, reason)
				s.mark(ctx, t.TranID, model.TransactionFailed, "validation failed: "+reason, &report.Failed, &report)
				continue
			}
			result, err := s.Commit(ctx, t.TranID, v.ValID, "reconcile")
			if err != nil {
				report.Errors++
				continue
			}
			if result != CommitAlreadyDone {
				report.Committed++
			}
		case v.Status == sslcommerz.StatusFailed:
			s.mark(ctx, t.TranID, model.TransactionFailed, "payment failed (reconcile)", &report.Failed, &report)
		case v.Status == sslcommerz.StatusCancelled:
			s.mark(ctx, t.TranID, model.TransactionCancelled, "cancelled (reconcile)", &report.Cancelled, &report)
		case expired:
			s.expire(ctx, t.TranID, &report)
		}
	}

	return report, nil
}

func (s *PaymentService) expire(ctx context.Context, tranID string, report *ReconcileReport) {
	s.mark(ctx, tranID, model.TransactionFailed, "expired", &report.Expired, report)
}

func (s *PaymentService) mark(ctx context.Context, tranID string, status model.TransactionStatus, reason string, counter *int, report *ReconcileReport) {
	changed, err := s.markStatus(ctx, tranID, status, reason)
	if err != nil {
		log.Errorf("[CRON] Failed to mark %s %s: %v", tranID, status, err)
		report.Errors++
		return
	}
	if changed {
		*counter++
	}
}
