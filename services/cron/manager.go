package cron

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"
	"github.com/sahilchouksey/active-classroom-api/model"
	"github.com/sahilchouksey/active-classroom-api/services"
	"gorm.io/gorm"
)

// Reconciler settles transactions the gateway never called back for
type Reconciler interface {
	ReconcileStale(ctx context.Context, staleAfter, expireAfter time.Duration) (services.ReconcileReport, error)
}

// Schedule controls when and how aggressively jobs run
type Schedule struct {
	ReconcileSpec string
	StaleAfter    time.Duration
	ExpireAfter   time.Duration
	LogRetention  time.Duration
}

// DefaultSchedule reconciles every 10 minutes
var DefaultSchedule = Schedule{
	ReconcileSpec: "0 */10 * * * *",
	StaleAfter:    15 * time.Minute,
	ExpireAfter:   48 * time.Hour,
	LogRetention:  90 * 24 * time.Hour,
}

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron       *cron.Cron
	db         *gorm.DB
	reconciler Reconciler
	schedule   Schedule
}

// NewCronManager creates a new cron manager
func NewCronManager(db *gorm.DB, reconciler Reconciler, schedule Schedule) *CronManager {
	if schedule.ReconcileSpec == "" {
		schedule.ReconcileSpec = DefaultSchedule.ReconcileSpec
	}
	if schedule.StaleAfter <= 0 {
		schedule.StaleAfter = DefaultSchedule.StaleAfter
	}
	if schedule.ExpireAfter <= 0 {
		schedule.ExpireAfter = DefaultSchedule.ExpireAfter
	}
	if schedule.LogRetention <= 0 {
		schedule.LogRetention = DefaultSchedule.LogRetention
	}

	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron:       c,
		db:         db,
		reconciler: reconciler,
		schedule:   schedule,
	}
}

// Start starts all cron jobs
func (m *CronManager) Start() error {
	log.Info("[CRON] Starting cron jobs...")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	log.Info("[CRON] Cron jobs started successfully")
	return nil
}

// Stop stops all cron jobs and waits for running ones
func (m *CronManager) Stop() {
	log.Info("[CRON] Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Info("[CRON] Cron jobs stopped")
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	// 1. Reconcile transactions stuck in initiated
	_, err := m.cron.AddFunc(m.schedule.ReconcileSpec, func() {
		m.ReconcileTransactions()
	})
	if err != nil {
		return err
	}

	// 2. Daily at 2 AM: Cleanup old job logs
	_, err = m.cron.AddFunc("0 0 2 * * *", func() {
		m.CleanupJobLogs()
	})
	if err != nil {
		return err
	}

	log.Info("[CRON] All cron jobs registered successfully")
	return nil
}

// logJobStart records the start of a cron job and returns its log row
func (m *CronManager) logJobStart(jobName string) *model.CronJobLog {
	log.Infof("[CRON] Starting job: %s at %s", jobName, time.Now().Format(time.RFC3339))

	cronLog := &model.CronJobLog{
		JobName:   jobName,
		Status:    "running",
		StartedAt: time.Now(),
	}
	if err := m.db.Create(cronLog).Error; err != nil {
		log.Warnf("[CRON] Failed to record start of %s: %v", jobName, err)
	}
	return cronLog
}

// logJobComplete logs successful completion of a cron job
func (m *CronManager) logJobComplete(cronLog *model.CronJobLog, message string) {
	log.Infof("[CRON] Completed job: %s - %s", cronLog.JobName, message)
	m.finishJob(cronLog, map[string]interface{}{
		"status":  "completed",
		"message": message,
	})
}

// logJobError logs a cron job error
func (m *CronManager) logJobError(cronLog *model.CronJobLog, err error) {
	log.Errorf("[CRON] Error in job: %s - %v", cronLog.JobName, err)
	m.finishJob(cronLog, map[string]interface{}{
		"status":    "failed",
		"error_msg": err.Error(),
	})
}

func (m *CronManager) finishJob(cronLog *model.CronJobLog, updates map[string]interface{}) {
	if cronLog.ID == 0 {
		return
	}
	now := time.Now()
	updates["completed_at"] = now
	updates["duration"] = now.Sub(cronLog.StartedAt).Milliseconds()
	if err := m.db.Model(cronLog).Updates(updates).Error; err != nil {
		log.Warnf("[CRON] Failed to record end of %s: %v", cronLog.JobName, err)
	}
}
