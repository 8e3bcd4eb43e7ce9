package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	auditRetention   = 90 * 24 * time.Hour
	counterRetention = 24 * time.Hour
)

// TokenJanitor removes expired refresh tokens
type TokenJanitor interface {
	CleanupExpired() (int64, error)
}

// CounterJanitor removes old rate limit windows
type CounterJanitor interface {
	PurgeBefore(cutoff time.Time) (int64, error)
}

// CronConfig holds the job schedules, in cron format with a seconds field
type CronConfig struct {
	ReconciliationEnabled  bool
	ReconciliationSchedule string
	CleanupSchedule        string
}

// CronService manages scheduled background jobs
type CronService struct {
	cron       *cron.Cron
	cfg        CronConfig
	reconciler *ReconciliationService
	tokens     TokenJanitor
	counters   CounterJanitor
	audit      *AuditService
	logger     *logrus.Logger
}

// NewCronService creates a new CronService. Any of the cleanup targets may be nil.
func NewCronService(
	cfg CronConfig,
	reconciler *ReconciliationService,
	tokens TokenJanitor,
	counters CounterJanitor,
	audit *AuditService,
	logger *logrus.Logger,
) *CronService {
	if cfg.ReconciliationSchedule == "" {
		cfg.ReconciliationSchedule = "0 */15 * * * *"
	}
	if cfg.CleanupSchedule == "" {
		cfg.CleanupSchedule = "0 30 3 * * *"
	}

	return &CronService{
		cron:       cron.New(cron.WithSeconds()),
		cfg:        cfg,
		reconciler: reconciler,
		tokens:     tokens,
		counters:   counters,
		audit:      audit,
		logger:     logger,
	}
}

// Start schedules all jobs and starts the scheduler
func (s *CronService) Start() error {
	// Cron format: second minute hour day month weekday
	if s.cfg.ReconciliationEnabled && s.reconciler != nil {
		if _, err := s.cron.AddFunc(s.cfg.ReconciliationSchedule, s.reconcileJob); err != nil {
			return fmt.Errorf("failed to schedule reconciliation job: %w", err)
		}
		s.logger.WithField("schedule", s.cfg.ReconciliationSchedule).Info("Scheduled: expire abandoned checkouts")
	}

	if _, err := s.cron.AddFunc(s.cfg.CleanupSchedule, s.cleanupJob); err != nil {
		return fmt.Errorf("failed to schedule cleanup job: %w", err)
	}
	s.logger.WithField("schedule", s.cfg.CleanupSchedule).Info("Scheduled: cleanup of tokens, counters and audit logs")

	s.cron.Start()
	s.logger.Info("Cron service started")

	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) reconcileJob() {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	ids, err := s.reconciler.Sweep(ctx)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Reconciliation sweep failed")
		if s.audit != nil {
			if auditErr := s.audit.LogError("reconciliation_failed", nil, err); auditErr != nil {
				s.logger.WithError(auditErr).Warn("[CRON] Failed to audit sweep failure")
			}
		}
		return
	}

	s.logger.WithFields(logrus.Fields{
		"expired":  len(ids),
		"duration": time.Since(start).String(),
	}).Debug("[CRON] Reconciliation sweep finished")
}

func (s *CronService) cleanupJob() {
	start := time.Now()
	fields := logrus.Fields{}

	if s.tokens != nil {
		n, err := s.tokens.CleanupExpired()
		if err != nil {
			s.logger.WithError(err).Error("[CRON] Failed to clean up refresh tokens")
		}
		fields["refresh_tokens"] = n
	}

	if s.counters != nil {
		n, err := s.counters.PurgeBefore(time.Now().Add(-counterRetention))
		if err != nil {
			s.logger.WithError(err).Error("[CRON] Failed to purge rate limit counters")
		}
		fields["rate_limit_windows"] = n
	}

	if s.audit != nil {
		n, err := s.audit.CleanupOldAuditLogs(auditRetention)
		if err != nil {
			s.logger.WithError(err).Error("[CRON] Failed to clean up audit logs")
		}
		fields["audit_logs"] = n
	}

	fields["duration"] = time.Since(start).String()
	s.logger.WithFields(fields).Info("[CRON] Cleanup finished")
}

// RunReconciliationNow runs the sweep immediately
func (s *CronService) RunReconciliationNow() {
	if s.reconciler != nil {
		s.reconcileJob()
	}
}

// RunCleanupNow runs the cleanup job immediately
func (s *CronService) RunCleanupNow() {
	s.cleanupJob()
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
