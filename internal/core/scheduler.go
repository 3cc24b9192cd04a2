package core

// scheduler.go runs periodic maintenance for the service:
//  1. Drop import sessions left idle longer than the session TTL
//  2. Purge audit entries older than the audit retention
//
// Jobs log their outcome and never stop the scheduler on failure.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// SchedulerConfig holds cron schedules and retention windows.
// Empty schedules disable the job.
type SchedulerConfig struct {
	SessionSweep   string        // cron spec, e.g. "@every 5m"
	SessionTTL     time.Duration // idle time before a session is dropped
	AuditPurge     string        // cron spec, e.g. "@daily"
	AuditRetention time.Duration // age after which audit entries are purged
}

// Scheduler runs the service's maintenance jobs on cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	svc    *Service
	cfg    SchedulerConfig
	logger *slog.Logger
}

// NewScheduler validates the schedules and registers the jobs.
func NewScheduler(svc *Service, cfg SchedulerConfig, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		cron:   cron.New(),
		svc:    svc,
		cfg:    cfg,
		logger: logger,
	}

	if cfg.SessionSweep != "" && cfg.SessionTTL > 0 {
		if _, err := s.cron.AddFunc(cfg.SessionSweep, s.sweepSessions); err != nil {
			return nil, fmt.Errorf("session sweep schedule %q: %w", cfg.SessionSweep, err)
		}
	}
	if cfg.AuditPurge != "" && cfg.AuditRetention > 0 {
		if _, err := s.cron.AddFunc(cfg.AuditPurge, s.purgeAudit); err != nil {
			return nil, fmt.Errorf("audit purge schedule %q: %w", cfg.AuditPurge, err)
		}
	}
	return s, nil
}

// Start starts the cron scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("maintenance scheduler started",
		"session_sweep", s.cfg.SessionSweep,
		"session_ttl", s.cfg.SessionTTL,
		"audit_purge", s.cfg.AuditPurge,
		"audit_retention", s.cfg.AuditRetention,
	)
}

// Stop stops the scheduler and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.logger.Info("maintenance scheduler stopped")
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) sweepSessions() {
	if n := s.svc.ExpireSessions(s.cfg.SessionTTL); n > 0 {
		s.logger.Info("expired idle sessions", "sessions_removed", n)
	}
}

func (s *Scheduler) purgeAudit() {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	purged, err := s.svc.PurgeAudit(ctx, s.cfg.AuditRetention)
	if err != nil {
		s.logger.Error("audit purge failed", "error", err)
		return
	}
	s.logger.Info("purged audit entries",
		"entries_purged", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
