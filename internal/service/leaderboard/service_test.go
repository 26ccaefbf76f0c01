package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/cache"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/config"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/events"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/repository"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/pkg/logger"
)

var testConfig = config.LeaderboardConfig{Key: "test:leaderboard", DefaultLimit: 10, MaxLimit: 3}

func setupStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := repository.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repository.NewStore(db)
}

func setupService(t *testing.T) (*Service, *repository.Store, *miniredis.Miniredis) {
	t.Helper()
	store := setupStore(t)
	mr := miniredis.RunT(t)
	c := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}))
	t.Cleanup(func() { _ = c.Close() })
	return NewService(c, store.Profiles, testConfig, logger.Nop()), store, mr
}

// seedProfiles creates one profile per entry of xp, keyed by user ID.
func seedProfiles(t *testing.T, store *repository.Store, xp map[uint]int64) {
	t.Helper()
	ctx := context.Background()
	for id, amount := range xp {
		p, err := store.Profiles.GetOrCreate(ctx, models.NewAwardable("user", id))
		require.NoError(t, err)
		require.NoError(t, store.Profiles.IncrementXP(ctx, p.ID, amount, time.Now()))
	}
}

func awardables(board *Board) []models.Awardable {
	out := make([]models.Awardable, 0, len(board.Entries))
	for _, e := range board.Entries {
		out = append(out, e.Awardable)
	}
	return out
}

func TestTop_FallsBackToDatabaseWhenCacheIsEmpty(t *testing.T) {
	svc, store, _ := setupService(t)
	seedProfiles(t, store, map[uint]int64{1: 10, 2: 30, 3: 20})

	board, err := svc.Top(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, SourceDatabase, board.Source)
	assert.Equal(t, []models.Awardable{
		models.NewAwardable("user", 2),
		models.NewAwardable("user", 3),
		models.NewAwardable("user", 1),
	}, awardables(board))
	assert.Equal(t, 1, board.Entries[0].Rank)
}

func TestRebuild(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	seedProfiles(t, store, map[uint]int64{1: 10, 2: 30, 3: 20, 4: 5})
	opted, err := store.Profiles.FindByAwardable(ctx, models.NewAwardable("user", 3))
	require.NoError(t, err)
	require.NoError(t, store.Profiles.SetOptIn(ctx, opted.ID, false))

	n, err := svc.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	board, err := svc.Top(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, board.Source)
	require.Len(t, board.Entries, 3, "limit is clamped to the configured maximum")
	assert.Equal(t, models.NewAwardable("user", 2), board.Entries[0].Awardable)
	assert.Equal(t, int64(30), board.Entries[0].TotalXP)
	assert.NotContains(t, awardables(board), models.NewAwardable("user", 3))
}

func TestNotify_RaisesCachedScore(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	player := models.NewAwardable("user", 1)
	rival := models.NewAwardable("user", 2)

	svc.Notify(ctx, events.XPAwarded{Header: events.NewHeader(time.Now()), Awardable: player, Amount: 50, ProfileTotal: 50})
	svc.Notify(ctx, events.XPAwarded{Header: events.NewHeader(time.Now()), Awardable: rival, Amount: 80, ProfileTotal: 80})
	svc.Notify(ctx, events.XPAwarded{Header: events.NewHeader(time.Now()), Awardable: player, Amount: 50, ProfileTotal: 100})
	// A late, stale event never lowers the score.
	svc.Notify(ctx, events.XPAwarded{Header: events.NewHeader(time.Now()), Awardable: player, Amount: 10, ProfileTotal: 60})
	svc.Notify(ctx, events.LevelReached{Header: events.NewHeader(time.Now()), Awardable: rival})

	board, err := svc.Top(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, board.Source)
	assert.Equal(t, []models.Awardable{player, rival}, awardables(board))
	assert.Equal(t, int64(100), board.Entries[0].TotalXP)

	entry, err := svc.Rank(ctx, rival)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 2, entry.Rank)

	require.NoError(t, svc.Exclude(ctx, player))
	entry, err = svc.Rank(ctx, rival)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Rank)
}

func TestNotify_SkipsOptedOutAndInclude(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	player := models.NewAwardable("user", 1)

	svc.Notify(ctx, events.XPAwarded{Header: events.NewHeader(time.Now()), Awardable: player, Amount: 40, ProfileTotal: 40, OptedOut: true})
	entry, err := svc.Rank(ctx, player)
	require.NoError(t, err)
	assert.Nil(t, entry, "opted-out awards are not ranked")

	require.NoError(t, svc.Include(ctx, player, 40))
	entry, err = svc.Rank(ctx, player)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 1, entry.Rank)
	assert.Equal(t, int64(40), entry.TotalXP)
}

func TestRank_DatabaseFallback(t *testing.T) {
	svc, store, mr := setupService(t)
	ctx := context.Background()
	seedProfiles(t, store, map[uint]int64{1: 10, 2: 30, 3: 20})
	mr.Close()

	entry, err := svc.Rank(ctx, models.NewAwardable("user", 1))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 3, entry.Rank)
	assert.Equal(t, int64(10), entry.TotalXP)

	entry, err = svc.Rank(ctx, models.NewAwardable("user", 99))
	require.NoError(t, err)
	assert.Nil(t, entry)

	board, err := svc.Top(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, SourceDatabase, board.Source)
	assert.Len(t, board.Entries, 2)
}

func TestWithoutCache(t *testing.T) {
	store := setupStore(t)
	svc := NewService(nil, store.Profiles, testConfig, logger.Nop())
	ctx := context.Background()
	seedProfiles(t, store, map[uint]int64{1: 10})

	svc.Notify(ctx, events.XPAwarded{Awardable: models.NewAwardable("user", 1), ProfileTotal: 10})
	n, err := svc.Rebuild(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	board, err := svc.Top(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, SourceDatabase, board.Source)
	require.Len(t, board.Entries, 1)
}

func TestGetStats(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	seedProfiles(t, store, map[uint]int64{1: 10, 2: 30})

	stats, err := svc.GetStats(ctx, models.NewAwardable("user", 1))
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, int64(10), stats.TotalXP)
	assert.Equal(t, 2, stats.Rank)
	assert.True(t, stats.OptIn)

	stats, err = svc.GetStats(ctx, models.NewAwardable("user", 42))
	require.NoError(t, err)
	assert.Nil(t, stats)
}
