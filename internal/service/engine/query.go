package engine

import (
	"context"
	"fmt"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/errs"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/progression"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/repository"
)

const (
	opHasLevel  = "has_level"
	opLevelInfo = "level_info"
)

// LevelTarget selects the ladder a level query refers to. Exactly one of
// Metric and Group must be set.
type LevelTarget struct {
	Metric string
	Group  string
}

// LevelInfo reports progress through a metric or group ladder.
type LevelInfo struct {
	Track            progression.TrackKind `json:"track"`
	Slug             string                `json:"slug"`
	CurrentLevel     int                   `json:"current_level"`
	TotalXP          int64                 `json:"total_xp"`
	CurrentThreshold int64                 `json:"current_threshold"`
	NextLevel        *int                  `json:"next_level"`
	NextThreshold    *int64                `json:"next_threshold"`
	ProgressPercent  float64               `json:"progress_percent"`
	MaxLevel         bool                  `json:"max_level"`
}

// ProfileView is a profile with its progress rows and rewards.
type ProfileView struct {
	Profile      *models.Profile             `json:"profile"`
	Metrics      []models.ProfileMetric      `json:"metrics"`
	Groups       []models.ProfileMetricGroup `json:"groups"`
	Achievements []models.AchievementGrant   `json:"achievements"`
	Prizes       []models.PrizeGrant         `json:"prizes"`
}

// HasLevel reports whether the awardable has reached level on the target
// ladder. The stored level answers first; when it is lower (or missing) the
// live XP is compared against the level's threshold, so a stale cache never
// under-reports.
func (e *Engine) HasLevel(ctx context.Context, a models.Awardable, level int, target LevelTarget) (bool, error) {
	if (target.Metric == "") == (target.Group == "") {
		return false, errs.InvalidArgument(opHasLevel, "target", "exactly one of metric or group is required")
	}
	if a.IsZero() {
		return false, errs.InvalidArgument(opHasLevel, "recipient", "a recipient is required")
	}

	profile, err := e.store.Profiles.FindByAwardable(ctx, a)
	if err != nil {
		return false, fmt.Errorf("failed to load profile: %w", err)
	}

	if target.Metric != "" {
		stored, xp, ladder, err := e.metricState(ctx, e.store, opHasLevel, profile, target.Metric)
		if err != nil {
			return false, err
		}
		return stored >= level || progression.Reached(level, xp, ladder), nil
	}

	stored, xp, ladder, err := e.groupState(ctx, e.store, opHasLevel, profile, target.Group)
	if err != nil {
		return false, err
	}
	return stored >= level || progression.Reached(level, xp, ladder), nil
}

// GetLevelInfo reports the stored group level together with the live
// weighted XP total. It never creates records.
func (e *Engine) GetLevelInfo(ctx context.Context, a models.Awardable, group string) (*LevelInfo, error) {
	if a.IsZero() {
		return nil, errs.InvalidArgument(opLevelInfo, "recipient", "a recipient is required")
	}
	profile, err := e.store.Profiles.FindByAwardable(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	stored, xp, ladder, err := e.groupState(ctx, e.store, opLevelInfo, profile, group)
	if err != nil {
		return nil, err
	}
	return levelInfo(progression.TrackGroup, group, progression.Progress(stored, xp, ladder)), nil
}

// GetMetricLevelInfo reports progress through a single metric's ladder.
func (e *Engine) GetMetricLevelInfo(ctx context.Context, a models.Awardable, metric string) (*LevelInfo, error) {
	if a.IsZero() {
		return nil, errs.InvalidArgument(opLevelInfo, "recipient", "a recipient is required")
	}
	profile, err := e.store.Profiles.FindByAwardable(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	stored, xp, ladder, err := e.metricState(ctx, e.store, opLevelInfo, profile, metric)
	if err != nil {
		return nil, err
	}
	return levelInfo(progression.TrackMetric, metric, progression.Progress(stored, xp, ladder)), nil
}

func levelInfo(kind progression.TrackKind, slug string, p progression.LevelProgress) *LevelInfo {
	return &LevelInfo{
		Track:            kind,
		Slug:             slug,
		CurrentLevel:     p.CurrentLevel,
		TotalXP:          p.XP,
		CurrentThreshold: p.CurrentThreshold,
		NextLevel:        p.NextLevel,
		NextThreshold:    p.NextThreshold,
		ProgressPercent:  p.ProgressPercent,
		MaxLevel:         p.MaxLevel(),
	}
}

// metricState returns the stored level, stored XP and ladder of a metric.
// A profile that never touched the metric is at the initial level with 0 XP.
func (e *Engine) metricState(
	ctx context.Context,
	store *repository.Store,
	op string,
	profile *models.Profile,
	slug string,
) (int, int64, []progression.Rung, error) {
	metric, err := store.Metrics.GetBySlug(ctx, slug)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("failed to load metric: %w", err)
	}
	if metric == nil {
		return 0, 0, nil, errs.NotFound(op, "metric", "metric %q not found", slug)
	}

	levels, err := store.Metrics.GetLevels(ctx, metric.ID)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("failed to load metric levels: %w", err)
	}

	stored, xp := models.InitialLevel, int64(0)
	if profile != nil {
		pm, err := store.Progress.FindMetric(ctx, profile.ID, metric.ID)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("failed to load profile metric: %w", err)
		}
		if pm != nil {
			stored, xp = pm.CurrentLevel, pm.TotalXP
		}
	}
	return stored, xp, progression.MetricLadder(levels), nil
}

// groupState returns the stored level, live weighted XP and ladder of a group.
func (e *Engine) groupState(
	ctx context.Context,
	store *repository.Store,
	op string,
	profile *models.Profile,
	slug string,
) (int, int64, []progression.Rung, error) {
	group, err := store.Groups.GetBySlug(ctx, slug)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("failed to load group: %w", err)
	}
	if group == nil {
		return 0, 0, nil, errs.NotFound(op, "group", "group %q not found", slug)
	}

	levels, err := store.Groups.GetLevels(ctx, group.ID)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("failed to load group levels: %w", err)
	}

	stored, xp := models.InitialLevel, int64(0)
	if profile != nil {
		pg, err := store.Progress.FindGroup(ctx, profile.ID, group.ID)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("failed to load profile group: %w", err)
		}
		if pg != nil {
			stored = pg.CurrentLevel
		}
		if xp, err = groupXP(ctx, store, profile.ID, group.Members); err != nil {
			return 0, 0, nil, err
		}
	}
	return stored, xp, progression.GroupLadder(levels), nil
}

// GetProfile returns the awardable's profile, creating it on first access,
// with its metric and group progress and its rewards.
func (e *Engine) GetProfile(ctx context.Context, a models.Awardable) (*ProfileView, error) {
	if a.IsZero() {
		return nil, errs.InvalidArgument("profile", "recipient", "a recipient is required")
	}

	profile, err := e.store.Profiles.GetOrCreate(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	view := &ProfileView{Profile: profile}
	if view.Metrics, err = e.store.Progress.ListMetrics(ctx, profile.ID); err != nil {
		return nil, fmt.Errorf("failed to load profile metrics: %w", err)
	}
	if view.Groups, err = e.store.Progress.ListGroups(ctx, profile.ID); err != nil {
		return nil, fmt.Errorf("failed to load profile groups: %w", err)
	}
	if view.Achievements, err = e.achievements.GetGrants(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to load achievements: %w", err)
	}
	if view.Prizes, err = e.prizes.GetGrants(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to load prizes: %w", err)
	}
	return view, nil
}

// SetOptIn enables or disables gamification for the awardable.
func (e *Engine) SetOptIn(ctx context.Context, a models.Awardable, optIn bool) (*models.Profile, error) {
	if a.IsZero() {
		return nil, errs.InvalidArgument("opt_in", "recipient", "a recipient is required")
	}

	var profile *models.Profile
	err := e.store.Transaction(ctx, func(tx *repository.Store) error {
		p, err := tx.Profiles.GetOrCreate(ctx, a)
		if err != nil {
			return fmt.Errorf("failed to load profile: %w", err)
		}
		if err := tx.Profiles.SetOptIn(ctx, p.ID, optIn); err != nil {
			return fmt.Errorf("failed to update opt-in: %w", err)
		}
		profile, err = tx.Profiles.GetByID(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("awardable_type", a.Type).
		Uint("awardable_id", a.ID).
		Bool("opt_in", optIn).
		Msg("Gamification preference updated")
	return profile, nil
}
