package repair

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the repair job on a cron schedule, typically nightly when
// checkout traffic is lowest.
type Scheduler struct {
	cron     *cron.Cron
	job      *Job
	schedule string
	logger   *slog.Logger
}

func NewScheduler(job *Job, schedule string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		job:      job,
		schedule: schedule,
		logger:   logger,
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		report, err := s.job.Run(context.Background())
		if err != nil {
			s.logger.Error("scheduled repair run failed", "error", err)
			return
		}
		s.logger.Info("scheduled repair run completed",
			"deleted", report.DeletedPayments,
			"placeholders_assigned", report.PlaceholdersAssigned,
			"errors", report.Errors)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("repair scheduler started", "schedule", s.schedule)
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("repair scheduler stopped")
}
