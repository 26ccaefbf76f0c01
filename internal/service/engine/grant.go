package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/errs"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/events"
	prommetrics "github.com/Particle-Academy/laravel-fun-labs-sub000/internal/metrics"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/repository"
)

// GrantReward delivers the reward named by req.Slug. Without a forced kind the
// registered strategies are asked in order and the first that recognises the
// slug handles it. An opted-out recipient is refused before anything else.
func (e *Engine) GrantReward(ctx context.Context, req GrantRequest) (*Result, error) {
	start := time.Now()
	defer func() { prommetrics.ObserveAwardDuration(OpGrant, time.Since(start)) }()

	if req.Awardable.IsZero() {
		return nil, errs.InvalidArgument(OpGrant, "recipient", "a recipient is required")
	}
	if req.Slug == "" {
		return nil, errs.InvalidArgument(OpGrant, "slug", "a slug is required")
	}
	var forced GrantStrategy
	if req.Kind != "" {
		if forced = e.strategy(req.Kind); forced == nil {
			return nil, errs.InvalidArgument(OpGrant, "kind", "unknown grant kind %q, expected one of %s",
				req.Kind, strings.Join(e.Kinds(), ", "))
		}
	}

	batch := events.NewBatch()
	var result *Result
	err := e.store.Transaction(ctx, func(tx *repository.Store) error {
		r, err := e.grant(ctx, tx, batch, forced, req)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		batch.Discard()
		if errs.IsBusiness(err) {
			return e.fail(ctx, OpGrant, req.Awardable, req.Slug, err), nil
		}
		return nil, err
	}

	batch.Flush(ctx, e.notifier)
	return result, nil
}

func (e *Engine) grant(
	ctx context.Context,
	tx *repository.Store,
	batch *events.Batch,
	strategy GrantStrategy,
	req GrantRequest,
) (*Result, error) {
	profile, err := tx.Profiles.FindByAwardable(ctx, req.Awardable)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile != nil && !profile.OptIn {
		return nil, errs.OptedOut(OpGrant)
	}

	if strategy == nil {
		if strategy, err = e.detect(ctx, tx, req.Slug); err != nil {
			return nil, err
		}
	}

	if err := runValidators(ctx, e.validators, Check{
		Operation: OpGrant,
		Awardable: req.Awardable,
		Slug:      req.Slug,
		Profile:   profile,
	}); err != nil {
		return nil, err
	}

	result, err := strategy.Grant(ctx, tx, batch, req)
	if err != nil {
		return nil, err
	}
	if result.Profile == nil {
		if result.Profile, err = tx.Profiles.FindByAwardable(ctx, req.Awardable); err != nil {
			return nil, fmt.Errorf("failed to reload profile: %w", err)
		}
	}
	result.Success = true
	result.GrantKind = strategy.Kind()
	return result, nil
}

func (e *Engine) strategy(kind string) GrantStrategy {
	for _, s := range e.strategies {
		if s.Kind() == kind {
			return s
		}
	}
	return nil
}

func (e *Engine) detect(ctx context.Context, tx *repository.Store, slug string) (GrantStrategy, error) {
	for _, s := range e.strategies {
		ok, err := s.Handles(ctx, tx, slug)
		if err != nil {
			return nil, err
		}
		if ok {
			return s, nil
		}
	}
	return nil, errs.NotFound(OpGrant, "slug", "no %s named %q", strings.Join(e.Kinds(), " or "), slug)
}
