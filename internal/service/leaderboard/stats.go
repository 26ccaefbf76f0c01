package leaderboard

import (
	"context"
	"fmt"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
)

// Stats summarizes an awardable's standing.
type Stats struct {
	Awardable        models.Awardable `json:"awardable"`
	TotalXP          int64            `json:"total_xp"`
	AchievementCount int              `json:"achievement_count"`
	PrizeCount       int              `json:"prize_count"`
	OptIn            bool             `json:"opt_in"`
	Rank             int              `json:"rank"` // 0 when not ranked
}

// GetStats returns the totals and rank of an awardable, or nil if it has no profile.
func (s *Service) GetStats(ctx context.Context, a models.Awardable) (*Stats, error) {
	profile, err := s.profiles.FindByAwardable(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile == nil {
		return nil, nil
	}

	stats := &Stats{
		Awardable:        a,
		TotalXP:          profile.TotalXP,
		AchievementCount: profile.AchievementCount,
		PrizeCount:       profile.PrizeCount,
		OptIn:            profile.OptIn,
	}
	if !profile.OptIn {
		return stats, nil
	}

	entry, err := s.Rank(ctx, a)
	if err != nil {
		s.log.Warn().Err(err).Str("awardable", a.String()).Msg("Failed to get rank")
		return stats, nil
	}
	if entry != nil {
		stats.Rank = entry.Rank
	}
	return stats, nil
}
