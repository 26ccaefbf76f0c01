package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/events"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/repository"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/service/achievements"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/service/prizes"
)

// Grant kinds handled by the built-in strategies.
const (
	KindAchievement = "achievement"
	KindPrize       = "prize"
)

// GrantRequest describes one grant of a named reward.
type GrantRequest struct {
	Awardable models.Awardable
	Slug      string
	// Kind forces a strategy; empty auto-detects from the slug.
	Kind   string
	Reason string
	Source string
	Meta   json.RawMessage
}

// GrantStrategy grants one kind of reward inside the engine's transaction.
type GrantStrategy interface {
	Kind() string
	// Handles reports whether slug names a reward of this kind.
	Handles(ctx context.Context, tx *repository.Store, slug string) (bool, error)
	// Grant delivers the reward and fills the kind-specific fields of the result.
	Grant(ctx context.Context, tx *repository.Store, batch *events.Batch, req GrantRequest) (*Result, error)
}

type achievementStrategy struct {
	svc *achievements.Service
}

// AchievementStrategy grants achievements through the achievement service.
func AchievementStrategy(svc *achievements.Service) GrantStrategy {
	return &achievementStrategy{svc: svc}
}

func (s *achievementStrategy) Kind() string { return KindAchievement }

func (s *achievementStrategy) Handles(ctx context.Context, tx *repository.Store, slug string) (bool, error) {
	achievement, err := tx.Achievements.GetBySlug(ctx, slug)
	if err != nil {
		return false, fmt.Errorf("failed to load achievement: %w", err)
	}
	return achievement != nil, nil
}

func (s *achievementStrategy) Grant(ctx context.Context, tx *repository.Store, batch *events.Batch, req GrantRequest) (*Result, error) {
	grant, err := s.svc.GrantWith(ctx, tx, batch, achievements.Request{
		Awardable: req.Awardable,
		Slug:      req.Slug,
		Reason:    req.Reason,
		Source:    req.Source,
		Meta:      req.Meta,
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		Message:          fmt.Sprintf("Achievement %q granted", req.Slug),
		AchievementGrant: grant,
	}, nil
}

type prizeStrategy struct {
	svc *prizes.Service
}

// PrizeStrategy grants prizes through the prize service.
func PrizeStrategy(svc *prizes.Service) GrantStrategy {
	return &prizeStrategy{svc: svc}
}

func (s *prizeStrategy) Kind() string { return KindPrize }

func (s *prizeStrategy) Handles(ctx context.Context, tx *repository.Store, slug string) (bool, error) {
	prize, err := tx.Prizes.GetBySlug(ctx, slug)
	if err != nil {
		return false, fmt.Errorf("failed to load prize: %w", err)
	}
	return prize != nil, nil
}

func (s *prizeStrategy) Grant(ctx context.Context, tx *repository.Store, batch *events.Batch, req GrantRequest) (*Result, error) {
	grant, err := s.svc.GrantWith(ctx, tx, batch, prizes.Request{
		Awardable: req.Awardable,
		Slug:      req.Slug,
		Reason:    req.Reason,
		Source:    req.Source,
		Meta:      req.Meta,
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		Message:    fmt.Sprintf("Prize %q granted", req.Slug),
		PrizeGrant: grant,
	}, nil
}
