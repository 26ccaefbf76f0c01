// Package prizes grants repeatable prizes.
package prizes

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

// Request describes one prize grant.
type Request struct {
	Awardable models.Awardable
	Slug      string
	Reason    string
	Source    string
	Meta      json.RawMessage
}

// Service grants prizes. Unlike achievements a prize may be granted any number of times.
type Service struct {
	store    *repository.Store
	notifier events.Notifier
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates a new prize service.
func NewService(store *repository.Store, notifier events.Notifier, log *logger.Logger) *Service {
	if notifier == nil {
		notifier = events.Nop
	}
	return &Service{
		store:    store,
		notifier: notifier,
		log:      log.Component("prizes"),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for grant timestamps.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Grant grants a prize in its own transaction.
func (s *Service) Grant(ctx context.Context, req Request) (*models.PrizeGrant, error) {
	batch := events.NewBatch()

	var grant *models.PrizeGrant
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		g, err := s.GrantWith(ctx, tx, batch, req)
		grant = g
		return err
	})
	if err != nil {
		return nil, err
	}

	batch.Flush(ctx, s.notifier)
	return grant, nil
}

// GrantWith grants a prize inside the caller's transaction.
func (s *Service) GrantWith(
	ctx context.Context,
	tx *repository.Store,
	batch *events.Batch,
	req Request,
) (*models.PrizeGrant, error) {
	if req.Awardable.IsZero() {
		return nil, errs.InvalidArgument(opGrant, "recipient", "a recipient is required")
	}
	if req.Slug == "" {
		return nil, errs.InvalidArgument(opGrant, "slug", "a prize slug is required")
	}

	profile, err := tx.Profiles.FindByAwardable(ctx, req.Awardable)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile != nil && !profile.OptIn {
		return nil, errs.OptedOut(opGrant)
	}

	prize, err := tx.Prizes.GetBySlug(ctx, req.Slug)
	if err != nil {
		return nil, fmt.Errorf("failed to load prize: %w", err)
	}
	if prize == nil {
		return nil, errs.NotFound(opGrant, "slug", "prize %q not found", req.Slug)
	}
	if !prize.Active {
		return nil, errs.InvalidState(opGrant, "slug", "prize %q is inactive", prize.Slug)
	}
	if !prize.AllowsType(req.Awardable.Type) {
		return nil, errs.InvalidState(opGrant, "recipient",
			"prize %q is restricted to %q recipients", prize.Slug, prize.AwardableType)
	}

	if profile == nil {
		profile, err = tx.Profiles.GetOrCreate(ctx, req.Awardable)
		if err != nil {
			return nil, fmt.Errorf("failed to create profile: %w", err)
		}
	}

	grant := &models.PrizeGrant{
		PrizeID:       prize.ID,
		AwardableType: req.Awardable.Type,
		AwardableID:   req.Awardable.ID,
		ProfileID:     profile.ID,
		Reason:        req.Reason,
		Source:        req.Source,
		GrantedAt:     s.now().UTC(),
	}
	if len(req.Meta) > 0 {
		grant.Meta = req.Meta
	}
	if err := tx.Prizes.CreateGrant(ctx, grant); err != nil {
		return nil, fmt.Errorf("failed to create prize grant: %w", err)
	}
	if err := tx.Profiles.IncrementPrizeCount(ctx, profile.ID, 1); err != nil {
		return nil, fmt.Errorf("failed to increment prize count: %w", err)
	}

	grant.Prize = prize
	batch.Add(events.PrizeAwarded{
		Header:    events.NewHeader(grant.GrantedAt),
		Awardable: req.Awardable,
		Prize:     *prize,
		Grant:     *grant,
		Reason:    req.Reason,
		Source:    req.Source,
	})

	s.log.Debug().
		Str("awardable_type", req.Awardable.Type).
		Uint("awardable_id", req.Awardable.ID).
		Str("prize", prize.Slug).
		Msg("Prize granted")

	return grant, nil
}

// Exists reports whether slug names a prize.
func (s *Service) Exists(ctx context.Context, slug string) (bool, error) {
	prize, err := s.store.Prizes.GetBySlug(ctx, slug)
	if err != nil {
		return false, fmt.Errorf("failed to load prize: %w", err)
	}
	return prize != nil, nil
}

// GetGrants retrieves all prizes delivered to an awardable.
func (s *Service) GetGrants(ctx context.Context, a models.Awardable) ([]models.PrizeGrant, error) {
	return s.store.Prizes.ListGrants(ctx, a)
}

// GetCatalog retrieves all prizes.
func (s *Service) GetCatalog(ctx context.Context) ([]models.Prize, error) {
	return s.store.Prizes.List(ctx)
}
