// Package achievements provides the idempotent achievement grant service.
package achievements

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/errs"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/events"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/repository"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/pkg/logger"
)

const opGrant = "grant"

// Request describes one achievement grant.
type Request struct {
	Awardable models.Awardable
	// Slug names the achievement; ignored when Achievement is set.
	Slug        string
	Achievement *models.Achievement
	Reason      string
	Source      string
	Meta        json.RawMessage
}

// Service grants achievements at most once per awardable.
type Service struct {
	store    *repository.Store
	notifier events.Notifier
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates a new achievement service.
func NewService(store *repository.Store, notifier events.Notifier, log *logger.Logger) *Service {
	if notifier == nil {
		notifier = events.Nop
	}
	return &Service{
		store:    store,
		notifier: notifier,
		log:      log.Component("achievements"),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for grant timestamps.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Grant grants an achievement in its own transaction and publishes
// AchievementUnlocked once the grant is committed.
func (s *Service) Grant(ctx context.Context, req Request) (*models.AchievementGrant, error) {
	batch := events.NewBatch()

	var grant *models.AchievementGrant
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		g, err := s.GrantWith(ctx, tx, batch, req)
		if err != nil {
			return err
		}
		grant = g
		return nil
	})
	if err != nil {
		return nil, err
	}

	batch.Flush(ctx, s.notifier)
	return grant, nil
}

// GrantWith grants an achievement inside the caller's transaction and queues
// the unlock event on batch. Rule failures are returned as *errs.Error and
// leave no state behind.
func (s *Service) GrantWith(
	ctx context.Context,
	tx *repository.Store,
	batch *events.Batch,
	req Request,
) (*models.AchievementGrant, error) {
	if req.Awardable.IsZero() {
		return nil, errs.InvalidArgument(opGrant, "recipient", "a recipient is required")
	}

	profile, err := tx.Profiles.FindByAwardable(ctx, req.Awardable)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile != nil && !profile.OptIn {
		return nil, errs.OptedOut(opGrant)
	}

	achievement, err := s.resolve(ctx, tx, req)
	if err != nil {
		return nil, err
	}
	if !achievement.Active {
		return nil, errs.InvalidState(opGrant, "slug", "achievement %q is inactive", achievement.Slug)
	}
	if !achievement.AllowsType(req.Awardable.Type) {
		return nil, errs.InvalidState(opGrant, "recipient",
			"achievement %q is restricted to %q recipients", achievement.Slug, achievement.AwardableType)
	}

	held, err := tx.Achievements.HasGrant(ctx, achievement.ID, req.Awardable)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing grant: %w", err)
	}
	if held {
		return nil, errs.AlreadyGranted(opGrant, "achievement %q was already granted to %s", achievement.Slug, req.Awardable)
	}

	if profile == nil {
		profile, err = tx.Profiles.GetOrCreate(ctx, req.Awardable)
		if err != nil {
			return nil, fmt.Errorf("failed to create profile: %w", err)
		}
	}

	grant := &models.AchievementGrant{
		AchievementID: achievement.ID,
		AwardableType: req.Awardable.Type,
		AwardableID:   req.Awardable.ID,
		ProfileID:     profile.ID,
		Reason:        req.Reason,
		Source:        req.Source,
		Meta:          normalizeMeta(req.Meta),
		GrantedAt:     s.now().UTC(),
	}
	created, err := tx.Achievements.CreateGrant(ctx, grant)
	if err != nil {
		return nil, fmt.Errorf("failed to create achievement grant: %w", err)
	}
	if !created {
		// Lost a race against a concurrent grant of the same pair.
		return nil, errs.AlreadyGranted(opGrant, "achievement %q was already granted to %s", achievement.Slug, req.Awardable)
	}

	if err := tx.Profiles.IncrementAchievementCount(ctx, profile.ID, 1); err != nil {
		return nil, fmt.Errorf("failed to increment achievement count: %w", err)
	}

	grant.Achievement = achievement
	batch.Add(events.AchievementUnlocked{
		Header:      events.NewHeader(grant.GrantedAt),
		Awardable:   req.Awardable,
		Achievement: *achievement,
		Grant:       *grant,
		Reason:      req.Reason,
		Source:      req.Source,
	})

	s.log.Debug().
		Str("awardable_type", req.Awardable.Type).
		Uint("awardable_id", req.Awardable.ID).
		Str("achievement", achievement.Slug).
		Msg("Achievement granted")

	return grant, nil
}

func (s *Service) resolve(ctx context.Context, tx *repository.Store, req Request) (*models.Achievement, error) {
	if req.Achievement != nil {
		return req.Achievement, nil
	}
	if req.Slug == "" {
		return nil, errs.InvalidArgument(opGrant, "slug", "an achievement slug is required")
	}

	achievement, err := tx.Achievements.GetBySlug(ctx, req.Slug)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievement: %w", err)
	}
	if achievement == nil {
		return nil, errs.NotFound(opGrant, "slug", "achievement %q not found", req.Slug)
	}
	return achievement, nil
}

// Exists reports whether slug names an achievement.
func (s *Service) Exists(ctx context.Context, slug string) (bool, error) {
	achievement, err := s.store.Achievements.GetBySlug(ctx, slug)
	if err != nil {
		return false, fmt.Errorf("failed to load achievement: %w", err)
	}
	return achievement != nil, nil
}

// GetGrants retrieves all achievements held by an awardable.
func (s *Service) GetGrants(ctx context.Context, a models.Awardable) ([]models.AchievementGrant, error) {
	return s.store.Achievements.ListGrants(ctx, a)
}

// GetCatalog retrieves all achievements.
func (s *Service) GetCatalog(ctx context.Context) ([]models.Achievement, error) {
	return s.store.Achievements.List(ctx)
}

// GetHoldersCount retrieves how many awardables hold an achievement.
func (s *Service) GetHoldersCount(ctx context.Context, slug string) (int64, error) {
	achievement, err := s.store.Achievements.GetBySlug(ctx, slug)
	if err != nil {
		return 0, fmt.Errorf("failed to load achievement: %w", err)
	}
	if achievement == nil {
		return 0, errs.NotFound("holders", "slug", "achievement %q not found", slug)
	}
	return s.store.Achievements.CountHolders(ctx, achievement.ID)
}

func normalizeMeta(meta json.RawMessage) json.RawMessage {
	if len(meta) == 0 {
		return nil
	}
	return meta
}
