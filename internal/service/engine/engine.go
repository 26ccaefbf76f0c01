// Package engine coordinates XP awards, level progression and reward grants.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/errs"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/events"
	prommetrics "github.com/Particle-Academy/laravel-fun-labs-sub000/internal/metrics"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/progression"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/repository"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/service/achievements"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/service/prizes"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/pkg/logger"
)

// AutoGrantSource is recorded on achievements granted by a level cascade.
const AutoGrantSource = "progression"

// Engine is the entry point for awards, grants and progression queries.
type Engine struct {
	store        *repository.Store
	achievements *achievements.Service
	prizes       *prizes.Service
	notifier     events.Notifier
	log          *logger.Logger

	strategies []GrantStrategy
	validators []Validator
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrategies registers grant strategies. A strategy whose kind is already
// registered replaces it in place; new kinds are tried after the existing ones.
func WithStrategies(strategies ...GrantStrategy) Option {
	return func(e *Engine) {
		for _, s := range strategies {
			e.register(s)
		}
	}
}

// WithValidators appends validation steps run, in order, before every award and grant.
func WithValidators(validators ...Validator) Option {
	return func(e *Engine) {
		e.validators = append(e.validators, validators...)
	}
}

// WithClock sets the time source of the engine and its grant services.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
		e.achievements.SetClock(now)
		e.prizes.SetClock(now)
	}
}

// New creates an engine with the achievement and prize strategies registered.
func New(
	store *repository.Store,
	achievementSvc *achievements.Service,
	prizeSvc *prizes.Service,
	notifier events.Notifier,
	log *logger.Logger,
	opts ...Option,
) *Engine {
	if notifier == nil {
		notifier = events.Nop
	}
	e := &Engine{
		store:        store,
		achievements: achievementSvc,
		prizes:       prizeSvc,
		notifier:     notifier,
		log:          log.Component("engine"),
		now:          time.Now,
	}
	e.register(AchievementStrategy(achievementSvc))
	e.register(PrizeStrategy(prizeSvc))

	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) register(s GrantStrategy) {
	for i, existing := range e.strategies {
		if existing.Kind() == s.Kind() {
			e.strategies[i] = s
			return
		}
	}
	e.strategies = append(e.strategies, s)
}

// Kinds lists the registered grant kinds in detection order.
func (e *Engine) Kinds() []string {
	kinds := make([]string, 0, len(e.strategies))
	for _, s := range e.strategies {
		kinds = append(kinds, s.Kind())
	}
	return kinds
}

// AwardRequest describes one XP award.
type AwardRequest struct {
	Awardable models.Awardable
	Metric    string
	Amount    int64
	Reason    string
	Source    string
	Meta      json.RawMessage
}

// AwardXP records XP on a metric and cascades progression in one transaction:
// profile and metric totals are incremented atomically, the metric ladder and
// every group containing the metric are evaluated against fresh totals, and
// the resulting level raises and achievement grants are applied. Events are
// published only after commit.
func (e *Engine) AwardXP(ctx context.Context, req AwardRequest) (*Result, error) {
	start := time.Now()
	defer func() { prommetrics.ObserveAwardDuration(OpAward, time.Since(start)) }()

	if req.Awardable.IsZero() {
		return nil, errs.InvalidArgument(OpAward, "recipient", "a recipient is required")
	}
	if req.Metric == "" {
		return nil, errs.InvalidArgument(OpAward, "metric", "a metric slug is required")
	}
	if req.Amount <= 0 {
		return nil, errs.InvalidArgument(OpAward, "amount", "amount must be positive, got %d", req.Amount)
	}

	batch := events.NewBatch()
	var result *Result
	err := e.store.Transaction(ctx, func(tx *repository.Store) error {
		r, err := e.award(ctx, tx, batch, req)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		batch.Discard()
		if errs.IsBusiness(err) {
			return e.fail(ctx, OpAward, req.Awardable, req.Metric, err), nil
		}
		return nil, err
	}

	batch.Flush(ctx, e.notifier)
	return result, nil
}

func (e *Engine) award(ctx context.Context, tx *repository.Store, batch *events.Batch, req AwardRequest) (*Result, error) {
	metric, err := tx.Metrics.GetBySlug(ctx, req.Metric)
	if err != nil {
		return nil, fmt.Errorf("failed to load metric: %w", err)
	}
	if metric == nil {
		return nil, errs.NotFound(OpAward, "metric", "metric %q not found", req.Metric)
	}
	if !metric.Active {
		return nil, errs.InvalidState(OpAward, "metric", "metric %q is inactive", metric.Slug)
	}

	profile, err := tx.Profiles.FindByAwardable(ctx, req.Awardable)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if err := runValidators(ctx, e.validators, Check{
		Operation: OpAward,
		Awardable: req.Awardable,
		Slug:      metric.Slug,
		Amount:    req.Amount,
		Profile:   profile,
	}); err != nil {
		return nil, err
	}

	// Every rule has passed; state changes start here.
	if profile == nil {
		if profile, err = tx.Profiles.GetOrCreate(ctx, req.Awardable); err != nil {
			return nil, fmt.Errorf("failed to create profile: %w", err)
		}
	}

	now := e.now()
	if err := tx.Profiles.IncrementXP(ctx, profile.ID, req.Amount, now); err != nil {
		return nil, fmt.Errorf("failed to increment profile xp: %w", err)
	}

	pm, err := tx.Progress.GetOrCreateMetric(ctx, profile.ID, metric.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile metric: %w", err)
	}
	if err := tx.Progress.IncrementMetricXP(ctx, pm.ID, req.Amount); err != nil {
		return nil, fmt.Errorf("failed to increment metric xp: %w", err)
	}
	if pm, err = tx.Progress.GetMetricByID(ctx, pm.ID); err != nil {
		return nil, fmt.Errorf("failed to reload profile metric: %w", err)
	}

	cascade := events.NewBatch()
	prog, err := e.advance(ctx, tx, cascade, profile, metric, pm)
	if err != nil {
		return nil, err
	}

	if pm, err = tx.Progress.GetMetricByID(ctx, pm.ID); err != nil {
		return nil, fmt.Errorf("failed to reload profile metric: %w", err)
	}
	if profile, err = tx.Profiles.GetByID(ctx, profile.ID); err != nil {
		return nil, fmt.Errorf("failed to reload profile: %w", err)
	}
	pm.GamedMetric = metric

	batch.Add(events.XPAwarded{
		Header:       events.NewHeader(now),
		Awardable:    req.Awardable,
		ProfileID:    profile.ID,
		Metric:       metric.Slug,
		MetricID:     metric.ID,
		Amount:       req.Amount,
		MetricTotal:  pm.TotalXP,
		ProfileTotal: profile.TotalXP,
		Level:        pm.CurrentLevel,
		Reason:       req.Reason,
		Source:       req.Source,
		Meta:         req.Meta,
		OptedOut:     !profile.OptIn,
	})
	for _, ev := range cascade.Events() {
		batch.Add(ev)
	}

	e.log.Debug().
		Str("awardable_type", req.Awardable.Type).
		Uint("awardable_id", req.Awardable.ID).
		Str("metric", metric.Slug).
		Int64("amount", req.Amount).
		Int64("metric_total", pm.TotalXP).
		Int("level", pm.CurrentLevel).
		Msg("XP awarded")

	return &Result{
		Success:       true,
		Message:       fmt.Sprintf("Awarded %d XP on %q", req.Amount, metric.Slug),
		Profile:       profile,
		ProfileMetric: pm,
		Progression:   prog,
	}, nil
}

// advance evaluates the metric ladder and the ladder of every group that
// contains the metric, then applies the resulting plan.
func (e *Engine) advance(
	ctx context.Context,
	tx *repository.Store,
	batch *events.Batch,
	profile *models.Profile,
	metric *models.GamedMetric,
	pm *models.ProfileMetric,
) (*Progression, error) {
	levels, err := tx.Metrics.GetLevels(ctx, metric.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load metric levels: %w", err)
	}
	tracks := []progression.Track{{
		Kind:       progression.TrackMetric,
		OwnerID:    metric.ID,
		Slug:       metric.Slug,
		ProgressID: pm.ID,
		Evaluation: progression.Evaluate(pm.CurrentLevel, pm.TotalXP, progression.MetricLadder(levels)),
	}}

	groups, err := tx.Groups.ListContainingMetric(ctx, metric.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load groups for metric %q: %w", metric.Slug, err)
	}
	for i := range groups {
		group := &groups[i]
		pg, err := tx.Progress.GetOrCreateGroup(ctx, profile.ID, group.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create profile group: %w", err)
		}
		xp, err := groupXP(ctx, tx, profile.ID, group.Members)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, progression.Track{
			Kind:       progression.TrackGroup,
			OwnerID:    group.ID,
			Slug:       group.Slug,
			ProgressID: pg.ID,
			Evaluation: progression.Evaluate(pg.CurrentLevel, xp, progression.GroupLadder(group.Levels)),
		})
	}

	held, err := tx.Achievements.HeldAchievementIDs(ctx, profile.Awardable())
	if err != nil {
		return nil, fmt.Errorf("failed to load held achievements: %w", err)
	}

	plan := progression.BuildPlan(profile.AwardableType, held, tracks...)
	prog := &Progression{Tracks: tracks}
	if plan.Empty() {
		return prog, nil
	}
	if err := e.apply(ctx, tx, batch, profile, plan, prog); err != nil {
		return nil, err
	}
	return prog, nil
}

// apply stores level raises through compare-and-set updates and grants the
// planned achievements. Grants the recipient cannot receive are skipped.
func (e *Engine) apply(
	ctx context.Context,
	tx *repository.Store,
	batch *events.Batch,
	profile *models.Profile,
	plan progression.Plan,
	prog *Progression,
) error {
	awardable := profile.Awardable()
	for _, raise := range plan.Raises {
		var applied bool
		var err error
		switch raise.Kind {
		case progression.TrackMetric:
			applied, err = tx.Progress.RaiseMetricLevel(ctx, raise.ProgressID, raise.To)
		case progression.TrackGroup:
			applied, err = tx.Progress.RaiseGroupLevel(ctx, raise.ProgressID, raise.To)
		}
		if err != nil {
			return fmt.Errorf("failed to raise %s level: %w", raise.Kind, err)
		}
		if !applied {
			e.log.Debug().
				Str("track", string(raise.Kind)).
				Str("slug", raise.Slug).
				Int("level", raise.To).
				Msg("Level already applied by a concurrent award")
			continue
		}

		prog.Raised = append(prog.Raised, raise)
		batch.Add(events.LevelReached{
			Header:    events.NewHeader(e.now()),
			Awardable: awardable,
			Track:     string(raise.Kind),
			Slug:      raise.Slug,
			From:      raise.From,
			To:        raise.To,
			LevelName: raise.Rung.Name,
		})
	}

	for _, g := range plan.Grants {
		achievement := g.Achievement
		grant, err := e.achievements.GrantWith(ctx, tx, batch, achievements.Request{
			Awardable:   awardable,
			Achievement: &achievement,
			Reason:      fmt.Sprintf("Reached level %d of %s %q", g.Level, g.Kind, g.Slug),
			Source:      AutoGrantSource,
		})
		if err != nil {
			if skippable(err) {
				e.log.Debug().
					Str("achievement", achievement.Slug).
					Str("kind", errs.KindName(err)).
					Msg("Skipped cascade grant")
				continue
			}
			return err
		}
		prog.Granted = append(prog.Granted, *grant)
	}
	return nil
}

func skippable(err error) bool {
	switch errs.KindOf(err) {
	case errs.ErrAlreadyGranted, errs.ErrOptedOut, errs.ErrInvalidState:
		return true
	default:
		return false
	}
}

func groupXP(ctx context.Context, store *repository.Store, profileID uint, members []models.MetricLevelGroupMetric) (int64, error) {
	ids := make([]uint, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.GamedMetricID)
	}
	xp, err := store.Progress.MetricXP(ctx, profileID, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to load member xp: %w", err)
	}
	return progression.WeightedTotal(members, xp), nil
}

// fail publishes AwardFailed for a rule failure and converts it to a Result.
func (e *Engine) fail(ctx context.Context, op string, a models.Awardable, slug string, err error) *Result {
	kind := errs.KindName(err)
	e.log.Info().
		Str("operation", op).
		Str("awardable_type", a.Type).
		Uint("awardable_id", a.ID).
		Str("slug", slug).
		Str("kind", kind).
		Msg(errs.MessageOf(err))

	e.notifier.Notify(ctx, events.AwardFailed{
		Header:    events.NewHeader(e.now()),
		Operation: op,
		Awardable: a,
		Slug:      slug,
		Kind:      kind,
		Reason:    errs.MessageOf(err),
		Context:   map[string]string{"field": errs.FieldOf(err)},
	})
	return failed(err)
}
