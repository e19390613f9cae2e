/**
 * @description
 * Cron scheduler and scheduled job implementations for the banking-service.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	service *Service
	logger  *slog.Logger
}

func NewJobs(service *Service, logger *slog.Logger) *Jobs {
	return &Jobs{service: service, logger: logger.With("component", "jobs")}
}

// AutoDebitEMI collects this month's installment from every active loan.
func (j *Jobs) AutoDebitEMI() {
	j.logger.Info("starting emi auto-debit job")
	report, err := j.service.Loans.AutoDebitEMI(context.Background())
	if err != nil {
		j.logger.Error("emi auto-debit job failed", "error", err)
		return
	}
	j.logger.Info("emi auto-debit job finished", "attempted", report.Attempted, "paid", report.Paid, "failed", report.Failed)
}

// ExpireCards moves active cards past their expiry date to EXPIRED.
func (j *Jobs) ExpireCards() {
	j.logger.Info("starting card expiry job")
	expired, err := j.service.ExpireCards(context.Background())
	if err != nil {
		j.logger.Error("card expiry job failed", "error", err)
		return
	}
	j.logger.Info("card expiry job finished", "expired", expired)
}

// Schedules holds the cron specs of the scheduled jobs.
type Schedules struct {
	EMIAutoDebit string
	CardExpiry   string
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron      *cron.Cron
	jobs      *Jobs
	schedules Schedules
	logger    *slog.Logger
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, schedules Schedules, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:      c,
		jobs:      jobs,
		schedules: schedules,
		logger:    logger,
	}
}

// Start registers the jobs and starts the cron scheduler. A job with an invalid
// schedule is logged and skipped.
func (s *Scheduler) Start() error {
	var firstErr error
	register := func(name, expr string, job func()) {
		if _, err := s.cron.AddFunc(expr, job); err != nil {
			s.logger.Error("failed to schedule job", "job", name, "schedule", expr, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		s.logger.Info("scheduled job", "job", name, "schedule", expr)
	}
	register("emi_auto_debit", s.schedules.EMIAutoDebit, s.jobs.AutoDebitEMI)
	register("card_expiry", s.schedules.CardExpiry, s.jobs.ExpireCards)

	s.cron.Start()
	return firstErr
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
