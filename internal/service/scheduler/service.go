// Package scheduler runs periodic progression maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/config"
	prommetrics "github.com/Particle-Academy/laravel-fun-labs-sub000/internal/metrics"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/service/engine"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/pkg/logger"
)

// Job names used in logs and metric labels.
const (
	JobLeaderboardRebuild = "leaderboard_rebuild"
	JobProgressionResync  = "progression_resync"
)

// LeaderboardRebuilder reloads the cached leaderboard from the database.
type LeaderboardRebuilder interface {
	Rebuild(ctx context.Context) (int, error)
}

// Resyncer re-evaluates stored progression for every profile.
type Resyncer interface {
	ResyncAll(ctx context.Context) (*engine.ResyncReport, error)
}

// Service handles periodic job scheduling.
type Service struct {
	config      *config.SchedulerConfig
	leaderboard LeaderboardRebuilder
	resyncer    Resyncer
	log         *logger.Logger
	cron        *cron.Cron
}

// NewService creates a new scheduler service. Either job dependency may be nil
// to leave that job unregistered.
func NewService(
	cfg *config.SchedulerConfig,
	leaderboard LeaderboardRebuilder,
	resyncer Resyncer,
	log *logger.Logger,
) *Service {
	return &Service{
		config:      cfg,
		leaderboard: leaderboard,
		resyncer:    resyncer,
		log:         log.Component("scheduler"),
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := s.config.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	if err := s.register(); err != nil {
		return err
	}

	s.cron.Start()

	for _, entry := range s.cron.Entries() {
		s.log.Info().
			Int("entry", int(entry.ID)).
			Str("next_run", entry.Next.Format(time.RFC3339)).
			Msg("Scheduled job")
	}

	s.log.Info().
		Str("timezone", location.String()).
		Int("jobs", len(s.cron.Entries())).
		Msg("Scheduler started successfully")

	return nil
}

// register adds every configured job to the cron instance.
func (s *Service) register() error {
	if s.config.LeaderboardRebuild != "" && s.leaderboard != nil {
		if _, err := s.cron.AddFunc(s.config.LeaderboardRebuild, func() {
			s.runLeaderboardRebuild(context.Background())
		}); err != nil {
			return fmt.Errorf("failed to register %s job: %w", JobLeaderboardRebuild, err)
		}
		s.log.Info().
			Str("schedule", s.config.LeaderboardRebuild).
			Msg("Leaderboard rebuild job registered")
	}

	if s.config.ProgressionResync != "" && s.resyncer != nil {
		if _, err := s.cron.AddFunc(s.config.ProgressionResync, func() {
			s.runProgressionResync(context.Background())
		}); err != nil {
			return fmt.Errorf("failed to register %s job: %w", JobProgressionResync, err)
		}
		s.log.Info().
			Str("schedule", s.config.ProgressionResync).
			Msg("Progression resync job registered")
	}

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// track records the outcome and duration of one job run.
func track(job string, start time.Time, err error) {
	prommetrics.ObserveSchedulerJobDuration(job, time.Since(start).Seconds())
	prommetrics.SetSchedulerLastRun(job)
	status := "success"
	if err != nil {
		status = "error"
	}
	prommetrics.RecordSchedulerJobRun(job, status)
}

// runLeaderboardRebuild executes the leaderboard rebuild job.
func (s *Service) runLeaderboardRebuild(ctx context.Context) {
	start := time.Now()
	s.log.Info().Msg("Running leaderboard rebuild job")

	count, err := s.leaderboard.Rebuild(ctx)
	track(JobLeaderboardRebuild, start, err)
	if err != nil {
		s.log.Error().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Leaderboard rebuild job failed")
		return
	}

	s.log.Info().
		Int("entries", count).
		Dur("duration", time.Since(start)).
		Msg("Leaderboard rebuild job completed successfully")
}

// runProgressionResync executes the progression resync job.
func (s *Service) runProgressionResync(ctx context.Context) {
	start := time.Now()
	s.log.Info().Msg("Running progression resync job")

	report, err := s.resyncer.ResyncAll(ctx)
	track(JobProgressionResync, start, err)
	if err != nil {
		s.log.Error().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Progression resync job failed")
		return
	}

	s.log.Info().
		Int("profiles", report.Profiles).
		Int("levels_raised", report.Raised).
		Int("achievements_granted", report.Granted).
		Int("failed", report.Failed).
		Dur("duration", time.Since(start)).
		Msg("Progression resync job completed successfully")
}
