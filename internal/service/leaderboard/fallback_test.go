package leaderboard_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/config"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/service/leaderboard"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/pkg/logger"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/test/mocks"
)

var cfg = config.LeaderboardConfig{Key: "lb", DefaultLimit: 5, MaxLimit: 50}

func TestTop_RedisFailureFallsBackToDatabase(t *testing.T) {
	set := mocks.NewMockSortedSet()
	ctx := context.Background()
	require.NoError(t, set.RaiseScore(ctx, "lb", "user:1", 10))
	set.Err = errors.New("connection refused")

	var requested int
	repo := &mocks.MockProfileRepository{
		ListTopByTotalXPFunc: func(limit int) ([]models.Profile, error) {
			requested = limit
			return []models.Profile{{ID: 3, AwardableType: "user", AwardableID: 3, TotalXP: 90, OptIn: true}}, nil
		},
	}
	svc := leaderboard.NewServiceWithInterfaces(set, repo, cfg, logger.Nop())

	board, err := svc.Top(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, leaderboard.SourceDatabase, board.Source)
	assert.Equal(t, 5, requested, "default limit applies")
	require.Len(t, board.Entries, 1)
	assert.Equal(t, models.NewAwardable("user", 3), board.Entries[0].Awardable)
}

func TestRank_CachedAndOptedOut(t *testing.T) {
	set := mocks.NewMockSortedSet()
	ctx := context.Background()
	require.NoError(t, set.RaiseScore(ctx, "lb", "user:1", 10))
	require.NoError(t, set.RaiseScore(ctx, "lb", "user:2", 30))

	repo := &mocks.MockProfileRepository{
		FindByAwardableFunc: func(a models.Awardable) (*models.Profile, error) {
			return &models.Profile{ID: a.ID, AwardableType: a.Type, AwardableID: a.ID, TotalXP: 70, OptIn: false}, nil
		},
	}
	svc := leaderboard.NewServiceWithInterfaces(set, repo, cfg, logger.Nop())

	entry, err := svc.Rank(ctx, models.NewAwardable("user", 1))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 2, entry.Rank)

	entry, err = svc.Rank(ctx, models.NewAwardable("user", 9))
	require.NoError(t, err)
	assert.Nil(t, entry, "opted-out profiles missing from the cache are unranked")
}

func TestRebuild_SkipsOptedOut(t *testing.T) {
	set := mocks.NewMockSortedSet()
	ctx := context.Background()
	require.NoError(t, set.RaiseScore(ctx, "lb", "user:99", 1000))

	repo := &mocks.MockProfileRepository{
		ListAfterFunc: func(afterID uint, _ int) ([]models.Profile, error) {
			if afterID > 0 {
				return nil, nil
			}
			return []models.Profile{
				{ID: 1, AwardableType: "user", AwardableID: 1, TotalXP: 40, OptIn: true},
				{ID: 2, AwardableType: "user", AwardableID: 2, TotalXP: 80, OptIn: false},
				{ID: 3, AwardableType: "team", AwardableID: 1, TotalXP: 60, OptIn: true},
			}, nil
		},
	}
	svc := leaderboard.NewServiceWithInterfaces(set, repo, cfg, logger.Nop())

	n, err := svc.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	board, err := svc.Top(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, leaderboard.SourceCache, board.Source)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, models.NewAwardable("team", 1), board.Entries[0].Awardable)
	assert.Equal(t, models.NewAwardable("user", 1), board.Entries[1].Awardable)
}
