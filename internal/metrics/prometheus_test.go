package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/events"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
)

func TestRecordXPAwarded(t *testing.T) {
	XPAwardedTotal.Reset()
	XPAwardsTotal.Reset()

	RecordXPAwarded("combat-xp", 150)
	RecordXPAwarded("combat-xp", 50)
	RecordXPAwarded("crafting-xp", 10)

	if got := testutil.ToFloat64(XPAwardedTotal.WithLabelValues("combat-xp")); got != 200 {
		t.Errorf("Expected combat-xp total = 200, got %f", got)
	}
	if got := testutil.ToFloat64(XPAwardsTotal.WithLabelValues("combat-xp")); got != 2 {
		t.Errorf("Expected 2 combat-xp awards, got %f", got)
	}
	if got := testutil.ToFloat64(XPAwardedTotal.WithLabelValues("crafting-xp")); got != 10 {
		t.Errorf("Expected crafting-xp total = 10, got %f", got)
	}
}

func TestRecordLevelUp(t *testing.T) {
	LevelUpsTotal.Reset()

	RecordLevelUp("metric", "combat-xp")
	RecordLevelUp("group", "total-level")
	RecordLevelUp("metric", "combat-xp")

	if got := testutil.ToFloat64(LevelUpsTotal.WithLabelValues("metric", "combat-xp")); got != 2 {
		t.Errorf("Expected 2 metric level ups, got %f", got)
	}
	if got := testutil.ToFloat64(LevelUpsTotal.WithLabelValues("group", "total-level")); got != 1 {
		t.Errorf("Expected 1 group level up, got %f", got)
	}
}

func TestSetLeaderboardSize(t *testing.T) {
	SetLeaderboardSize(42)

	if got := testutil.ToFloat64(LeaderboardSize); got != 42 {
		t.Errorf("Expected leaderboard size = 42, got %f", got)
	}
}

func TestObserveAwardDuration(t *testing.T) {
	AwardDurationSeconds.Reset()

	ObserveAwardDuration("award", 5*time.Millisecond)
	ObserveAwardDuration("grant", 2*time.Millisecond)

	if got := testutil.CollectAndCount(AwardDurationSeconds); got != 2 {
		t.Errorf("Expected 2 histogram series, got %d", got)
	}
}

func TestSchedulerMetrics(t *testing.T) {
	SchedulerJobsRunTotal.Reset()

	RecordSchedulerJobRun("leaderboard_rebuild", "success")
	RecordSchedulerJobRun("leaderboard_rebuild", "error")
	RecordSchedulerJobRun("leaderboard_rebuild", "success")
	SetSchedulerLastRun("leaderboard_rebuild")

	if got := testutil.ToFloat64(SchedulerJobsRunTotal.WithLabelValues("leaderboard_rebuild", "success")); got != 2 {
		t.Errorf("Expected 2 successful runs, got %f", got)
	}
	if got := testutil.ToFloat64(SchedulerLastRunTimestamp.WithLabelValues("leaderboard_rebuild")); got <= 0 {
		t.Errorf("Expected last run timestamp to be set, got %f", got)
	}
}

func TestNotifierCountsEvents(t *testing.T) {
	XPAwardedTotal.Reset()
	XPAwardsTotal.Reset()
	LevelUpsTotal.Reset()
	AchievementsGrantedTotal.Reset()
	PrizesGrantedTotal.Reset()
	AwardFailuresTotal.Reset()

	n := NewNotifier()
	ctx := context.Background()
	user := models.NewAwardable("user", 7)
	now := time.Now()

	n.Notify(ctx, events.XPAwarded{Header: events.NewHeader(now), Awardable: user, Metric: "combat-xp", Amount: 25})
	n.Notify(ctx, events.LevelReached{Header: events.NewHeader(now), Awardable: user, Track: "metric", Slug: "combat-xp", From: 1, To: 2})
	n.Notify(ctx, events.AchievementUnlocked{
		Header:      events.NewHeader(now),
		Awardable:   user,
		Achievement: models.Achievement{Slug: "first-blood"},
		Source:      "progression",
	})
	n.Notify(ctx, events.PrizeAwarded{Header: events.NewHeader(now), Awardable: user, Prize: models.Prize{Slug: "gold-coin"}})
	n.Notify(ctx, events.AwardFailed{Header: events.NewHeader(now), Operation: "grant", Kind: "already_granted"})

	if got := testutil.ToFloat64(XPAwardedTotal.WithLabelValues("combat-xp")); got != 25 {
		t.Errorf("Expected 25 XP counted, got %f", got)
	}
	if got := testutil.ToFloat64(LevelUpsTotal.WithLabelValues("metric", "combat-xp")); got != 1 {
		t.Errorf("Expected 1 level up, got %f", got)
	}
	if got := testutil.ToFloat64(AchievementsGrantedTotal.WithLabelValues("first-blood", "progression")); got != 1 {
		t.Errorf("Expected 1 achievement, got %f", got)
	}
	if got := testutil.ToFloat64(PrizesGrantedTotal.WithLabelValues("gold-coin")); got != 1 {
		t.Errorf("Expected 1 prize, got %f", got)
	}
	if got := testutil.ToFloat64(AwardFailuresTotal.WithLabelValues("grant", "already_granted")); got != 1 {
		t.Errorf("Expected 1 failure, got %f", got)
	}
}
