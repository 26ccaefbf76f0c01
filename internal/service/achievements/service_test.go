package achievements

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/errs"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/events"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/repository"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/pkg/logger"
)

type recorder struct {
	events []events.Event
}

func (r *recorder) Notify(_ context.Context, e events.Event) {
	r.events = append(r.events, e)
}

func setupService(t *testing.T) (*Service, *repository.Store, *recorder) {
	t.Helper()

	db, err := repository.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := repository.NewStore(db)
	rec := &recorder{}
	svc := NewService(store, rec, logger.Nop())
	svc.SetClock(func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) })
	return svc, store, rec
}

func createAchievement(t *testing.T, store *repository.Store, a models.Achievement) *models.Achievement {
	t.Helper()
	require.NoError(t, store.Achievements.Create(context.Background(), &a))
	return &a
}

func TestGrant_Success(t *testing.T) {
	svc, store, rec := setupService(t)
	ctx := context.Background()
	createAchievement(t, store, models.Achievement{Slug: "first-blood", Name: "First Blood", Active: true})
	player := models.NewAwardable("user", 1)

	grant, err := svc.Grant(ctx, Request{
		Awardable: player,
		Slug:      "first-blood",
		Reason:    "won a duel",
		Source:    "arena",
		Meta:      json.RawMessage(`{"round":3}`),
	})
	require.NoError(t, err)
	require.NotNil(t, grant)
	assert.Equal(t, "won a duel", grant.Reason)
	assert.Equal(t, "arena", grant.Source)
	assert.Equal(t, "first-blood", grant.Achievement.Slug)
	assert.Equal(t, time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC), grant.GrantedAt)

	profile, err := store.Profiles.FindByAwardable(ctx, player)
	require.NoError(t, err)
	require.NotNil(t, profile, "profile is created lazily")
	assert.Equal(t, 1, profile.AchievementCount)

	require.Len(t, rec.events, 1)
	unlocked, ok := rec.events[0].(events.AchievementUnlocked)
	require.True(t, ok)
	assert.Equal(t, player, unlocked.Awardable)
	assert.Equal(t, "first-blood", unlocked.Achievement.Slug)
	assert.Equal(t, "arena", unlocked.Source)
}

func TestGrant_IsIdempotent(t *testing.T) {
	svc, store, rec := setupService(t)
	ctx := context.Background()
	createAchievement(t, store, models.Achievement{Slug: "first-blood", Name: "First Blood", Active: true})
	player := models.NewAwardable("user", 1)

	_, err := svc.Grant(ctx, Request{Awardable: player, Slug: "first-blood"})
	require.NoError(t, err)

	_, err = svc.Grant(ctx, Request{Awardable: player, Slug: "first-blood"})
	require.Error(t, err)
	assert.True(t, errs.IsAlreadyGranted(err))
	assert.True(t, errs.IsBusiness(err))

	profile, err := store.Profiles.FindByAwardable(ctx, player)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.AchievementCount, "counter is incremented exactly once")
	assert.Len(t, rec.events, 1)

	holders, err := svc.GetHoldersCount(ctx, "first-blood")
	require.NoError(t, err)
	assert.Equal(t, int64(1), holders)
}

func TestGrant_OptedOutShortCircuits(t *testing.T) {
	svc, store, rec := setupService(t)
	ctx := context.Background()
	player := models.NewAwardable("user", 1)

	profile, err := store.Profiles.GetOrCreate(ctx, player)
	require.NoError(t, err)
	require.NoError(t, store.Profiles.SetOptIn(ctx, profile.ID, false))
	createAchievement(t, store, models.Achievement{Slug: "first-blood", Name: "First Blood", Active: true})

	_, err = svc.Grant(ctx, Request{Awardable: player, Slug: "first-blood"})
	assert.ErrorIs(t, err, errs.ErrOptedOut)

	_, err = svc.Grant(ctx, Request{Awardable: player, Slug: "does-not-exist"})
	assert.ErrorIs(t, err, errs.ErrOptedOut, "opt-out is checked before the slug")

	assert.Empty(t, rec.events)
}

func TestGrant_Failures(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	createAchievement(t, store, models.Achievement{Slug: "retired", Name: "Retired", Active: false})
	createAchievement(t, store, models.Achievement{Slug: "squad", Name: "Squad", Active: true, AwardableType: "team"})

	tests := []struct {
		name      string
		req       Request
		wantKind  error
		wantField string
	}{
		{"unknown slug", Request{Awardable: models.NewAwardable("user", 1), Slug: "nope"}, errs.ErrNotFound, "slug"},
		{"inactive", Request{Awardable: models.NewAwardable("user", 1), Slug: "retired"}, errs.ErrInvalidState, "slug"},
		{"type restricted", Request{Awardable: models.NewAwardable("user", 1), Slug: "squad"}, errs.ErrInvalidState, "recipient"},
		{"missing recipient", Request{Slug: "squad"}, errs.ErrInvalidArgument, "recipient"},
		{"missing slug", Request{Awardable: models.NewAwardable("user", 1)}, errs.ErrInvalidArgument, "slug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Grant(ctx, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantKind)
			assert.Equal(t, tt.wantField, errs.FieldOf(err))
		})
	}

	count, err := store.Profiles.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "failed grants create no profile")
}

func TestGrant_TypeRestrictionMatches(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	createAchievement(t, store, models.Achievement{Slug: "squad", Name: "Squad", Active: true, AwardableType: "team"})

	_, err := svc.Grant(ctx, Request{Awardable: models.NewAwardable("team", 2), Slug: "squad"})
	assert.NoError(t, err)
}

func TestGrantWith_QueuesUntilFlushed(t *testing.T) {
	svc, store, rec := setupService(t)
	ctx := context.Background()
	createAchievement(t, store, models.Achievement{Slug: "first-blood", Name: "First Blood", Active: true})

	batch := events.NewBatch()
	err := store.Transaction(ctx, func(tx *repository.Store) error {
		_, err := svc.GrantWith(ctx, tx, batch, Request{Awardable: models.NewAwardable("user", 1), Slug: "first-blood"})
		return err
	})
	require.NoError(t, err)

	assert.Empty(t, rec.events)
	assert.Equal(t, 1, batch.Len())
}

func TestCatalogAndGrants(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()
	createAchievement(t, store, models.Achievement{Slug: "b-second", Name: "B", Active: true})
	createAchievement(t, store, models.Achievement{Slug: "a-first", Name: "A", Active: true})
	player := models.NewAwardable("user", 1)

	_, err := svc.Grant(ctx, Request{Awardable: player, Slug: "a-first"})
	require.NoError(t, err)

	catalog, err := svc.GetCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, catalog, 2)
	assert.Equal(t, "a-first", catalog[0].Slug)

	grants, err := svc.GetGrants(ctx, player)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, "a-first", grants[0].Achievement.Slug)

	exists, err := svc.Exists(ctx, "b-second")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = svc.GetHoldersCount(ctx, "missing")
	assert.True(t, errs.IsNotFound(err))
}
