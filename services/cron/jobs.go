package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/active-classroom-api/model"
)

const (
	jobReconcile   = "reconcile_transactions"
	jobCleanupLogs = "cleanup_job_logs"
)

// ReconcileTransactions asks the gateway about transactions that never got a
// callback and settles them. Runs every 10 minutes by default.
func (m *CronManager) ReconcileTransactions() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cronLog := m.logJobStart(jobReconcile)

	report, err := m.reconciler.ReconcileStale(ctx, m.schedule.StaleAfter, m.schedule.ExpireAfter)
	if err != nil {
		m.logJobError(cronLog, fmt.Errorf("reconcile stopped after %s: %w", report, err))
		return
	}

	m.logJobComplete(cronLog, report.String())
}

// CleanupJobLogs removes job logs older than the retention window.
// Runs daily at 2 AM.
func (m *CronManager) CleanupJobLogs() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cronLog := m.logJobStart(jobCleanupLogs)

	cutoff := time.Now().Add(-m.schedule.LogRetention)
	result := m.db.WithContext(ctx).
		Where("created_at < ? AND id <> ?", cutoff, cronLog.ID).
		Delete(&model.CronJobLog{})
	if result.Error != nil {
		m.logJobError(cronLog, fmt.Errorf("failed to delete old job logs: %w", result.Error))
		return
	}

	log.Infof("[CRON] Cleaned %d old cron logs", result.RowsAffected)
	m.logJobComplete(cronLog, fmt.Sprintf("Cleaned up %d job logs", result.RowsAffected))
}
