// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/events"
)

// Prometheus metrics for the gamification engine.
var (
	// Counters.
	XPAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xp_awarded_total",
			Help: "Total XP awarded per metric",
		},
		[]string{"metric"},
	)

	XPAwardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xp_awards_total",
			Help: "Total number of successful XP awards per metric",
		},
		[]string{"metric"},
	)

	LevelUpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "level_ups_total",
			Help: "Total number of stored level raises",
		},
		[]string{"track", "slug"},
	)

	AchievementsGrantedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "achievements_granted_total",
			Help: "Total number of achievements unlocked",
		},
		[]string{"achievement", "source"},
	)

	PrizesGrantedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prizes_granted_total",
			Help: "Total number of prizes granted",
		},
		[]string{"prize"},
	)

	AwardFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "award_failures_total",
			Help: "Total number of awards and grants refused by a business rule",
		},
		[]string{"operation", "kind"},
	)

	// Gauges.
	LeaderboardSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leaderboard_size",
			Help: "Number of profiles in the cached leaderboard",
		},
	)

	// Histograms.
	AwardDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "award_duration_seconds",
			Help:    "Time taken to process an award or grant, cascade included",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		},
		[]string{"operation"},
	)

	// Scheduler metrics.
	SchedulerJobsRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_run_total",
			Help: "Total scheduler job executions",
		},
		[]string{"job", "status"},
	)

	SchedulerLastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_last_run_timestamp",
			Help: "Unix timestamp of last scheduler run",
		},
		[]string{"job"},
	)

	SchedulerJobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Time taken to execute a scheduler job",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~205s
		},
		[]string{"job"},
	)
)

// RecordXPAwarded records a successful XP award.
func RecordXPAwarded(metric string, amount int64) {
	XPAwardsTotal.WithLabelValues(metric).Inc()
	XPAwardedTotal.WithLabelValues(metric).Add(float64(amount))
}

// RecordLevelUp records a stored level raise.
func RecordLevelUp(track, slug string) {
	LevelUpsTotal.WithLabelValues(track, slug).Inc()
}

// RecordAchievementGranted records an achievement unlock.
func RecordAchievementGranted(achievement, source string) {
	AchievementsGrantedTotal.WithLabelValues(achievement, source).Inc()
}

// RecordPrizeGranted records a prize grant.
func RecordPrizeGranted(prize string) {
	PrizesGrantedTotal.WithLabelValues(prize).Inc()
}

// RecordAwardFailure records a refused award or grant.
func RecordAwardFailure(operation, kind string) {
	AwardFailuresTotal.WithLabelValues(operation, kind).Inc()
}

// SetLeaderboardSize sets the number of cached leaderboard entries.
func SetLeaderboardSize(size int64) {
	LeaderboardSize.Set(float64(size))
}

// ObserveAwardDuration observes the processing time of an award or grant.
func ObserveAwardDuration(operation string, d time.Duration) {
	AwardDurationSeconds.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordSchedulerJobRun records a scheduler job execution.
func RecordSchedulerJobRun(job, status string) {
	SchedulerJobsRunTotal.WithLabelValues(job, status).Inc()
}

// SetSchedulerLastRun sets the timestamp of the last run of a job.
func SetSchedulerLastRun(job string) {
	SchedulerLastRunTimestamp.WithLabelValues(job).SetToCurrentTime()
}

// ObserveSchedulerJobDuration observes the duration of a scheduler job.
func ObserveSchedulerJobDuration(job string, seconds float64) {
	SchedulerJobDurationSeconds.WithLabelValues(job).Observe(seconds)
}

// Notifier counts published events.
type Notifier struct{}

// NewNotifier creates an event notifier that feeds the counters above.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Notify implements events.Notifier.
func (*Notifier) Notify(_ context.Context, event events.Event) {
	switch e := event.(type) {
	case events.XPAwarded:
		RecordXPAwarded(e.Metric, e.Amount)
	case events.LevelReached:
		RecordLevelUp(e.Track, e.Slug)
	case events.AchievementUnlocked:
		RecordAchievementGranted(e.Achievement.Slug, e.Source)
	case events.PrizeAwarded:
		RecordPrizeGranted(e.Prize.Slug)
	case events.AwardFailed:
		RecordAwardFailure(e.Operation, e.Kind)
	}
}
