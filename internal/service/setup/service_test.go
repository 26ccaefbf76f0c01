package setup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/errs"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/repository"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/pkg/logger"
)

func setupService(t *testing.T) (*Service, *repository.Store) {
	t.Helper()
	db, err := repository.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := repository.NewStore(db)
	return NewService(store, logger.Nop()), store
}

func TestCreateMetric_DerivesSlug(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	metric, err := svc.CreateMetric(ctx, MetricSpec{Name: "Combat XP"})
	require.NoError(t, err)
	assert.Equal(t, "combat-xp", metric.Slug)
	assert.True(t, metric.Active)

	inactive := false
	metric, err = svc.CreateMetric(ctx, MetricSpec{Slug: "retired", Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "retired", metric.Name)
	assert.False(t, metric.Active)

	_, err = svc.CreateMetric(ctx, MetricSpec{Name: "Combat XP"})
	assert.Equal(t, errs.ErrInvalidState, errs.KindOf(err))

	_, err = svc.CreateMetric(ctx, MetricSpec{})
	assert.True(t, errs.IsInvalidArgument(err))

	_, err = svc.CreateMetric(ctx, MetricSpec{Slug: "Not A Slug"})
	assert.True(t, errs.IsInvalidArgument(err))
}

func TestCreateMetricLevel_ValidatesLadder(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	_, err := svc.CreateMetric(ctx, MetricSpec{Slug: "combat-xp"})
	require.NoError(t, err)
	_, err = svc.CreateAchievement(ctx, AchievementSpec{Slug: "soldier"})
	require.NoError(t, err)

	_, err = svc.CreateMetricLevel(ctx, LevelSpec{Metric: "combat-xp", Level: 1, Threshold: 0})
	require.NoError(t, err)
	level, err := svc.CreateMetricLevel(ctx, LevelSpec{Metric: "combat-xp", Level: 2, Threshold: 100, Achievements: []string{"soldier"}})
	require.NoError(t, err)
	require.Len(t, level.Achievements, 1)

	tests := []struct {
		name string
		spec LevelSpec
		kind error
	}{
		{"threshold not increasing", LevelSpec{Metric: "combat-xp", Level: 3, Threshold: 100}, errs.ErrInvalidArgument},
		{"threshold below lower level", LevelSpec{Metric: "combat-xp", Level: 5, Threshold: 50}, errs.ErrInvalidArgument},
		{"duplicate level", LevelSpec{Metric: "combat-xp", Level: 2, Threshold: 200}, errs.ErrInvalidArgument},
		{"level zero", LevelSpec{Metric: "combat-xp", Level: 0, Threshold: 0}, errs.ErrInvalidArgument},
		{"unknown metric", LevelSpec{Metric: "missing", Level: 2, Threshold: 10}, errs.ErrNotFound},
		{"unknown achievement", LevelSpec{Metric: "combat-xp", Level: 3, Threshold: 500, Achievements: []string{"nope"}}, errs.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateMetricLevel(ctx, tt.spec)
			assert.Equal(t, tt.kind, errs.KindOf(err))
		})
	}
}

func TestCreateGroup(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()
	for _, slug := range []string{"metric-a", "metric-b"} {
		_, err := svc.CreateMetric(ctx, MetricSpec{Slug: slug})
		require.NoError(t, err)
	}

	group, err := svc.CreateGroup(ctx, GroupSpec{
		Name:    "Total Level",
		Members: []GroupMember{{Metric: "metric-a"}, {Metric: "metric-b", Weight: 0.8}},
	})
	require.NoError(t, err)
	assert.Equal(t, "total-level", group.Slug)

	members, err := store.Groups.GetMembers(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	weights := map[uint]float64{}
	for _, m := range members {
		weights[m.GamedMetricID] = m.Weight
	}
	assert.Contains(t, weights, group.Members[0].GamedMetricID)
	assert.InDelta(t, 1.0, weights[group.Members[0].GamedMetricID], 1e-9)
	assert.InDelta(t, 0.8, weights[group.Members[1].GamedMetricID], 1e-9)

	_, err = svc.CreateGroup(ctx, GroupSpec{Slug: "empty"})
	assert.True(t, errs.IsInvalidArgument(err))

	_, err = svc.CreateGroup(ctx, GroupSpec{Slug: "negative", Members: []GroupMember{{Metric: "metric-a", Weight: -1}}})
	assert.True(t, errs.IsInvalidArgument(err))

	_, err = svc.CreateGroup(ctx, GroupSpec{Slug: "twice", Members: []GroupMember{{Metric: "metric-a"}, {Metric: "metric-a"}}})
	assert.True(t, errs.IsInvalidArgument(err))

	_, err = svc.CreateGroup(ctx, GroupSpec{Slug: "ghost", Members: []GroupMember{{Metric: "missing"}}})
	assert.True(t, errs.IsNotFound(err))

	failed, err := store.Groups.GetBySlug(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, failed, "a rejected group leaves nothing behind")
}

func TestApply(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	entities := []Entity{
		AchievementSpec{Slug: "first-blood"},
		PrizeSpec{Slug: "gold-coin", Meta: map[string]any{"value": 5}},
		MetricSpec{Slug: "combat-xp"},
		LevelSpec{Metric: "combat-xp", Level: 1},
		GroupSpec{Slug: "overall", Members: []GroupMember{{Metric: "combat-xp"}}},
		GroupLevelSpec{Group: "overall", Level: 1, Achievements: []string{"first-blood"}},
	}
	kinds := []Kind{KindAchievement, KindPrize, KindMetric, KindMetricLevel, KindGroup, KindGroupLevel}
	for i, e := range entities {
		assert.Equal(t, kinds[i], e.Kind())
		created, err := svc.Apply(ctx, e)
		require.NoError(t, err, "applying %s", e.Kind())
		assert.NotNil(t, created)
	}
}

func TestSeed_IsIdempotent(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()

	catalog, err := LoadCatalog("testdata/catalog.yaml")
	require.NoError(t, err)
	require.Len(t, catalog.Metrics, 2)
	assert.Len(t, catalog.Metrics[0].Levels, 3)

	report, err := svc.Seed(ctx, catalog)
	require.NoError(t, err)
	// 3 achievements, 1 prize, 2 metrics + 4 levels, 1 group + 2 levels.
	assert.Equal(t, 13, report.Created)
	assert.Zero(t, report.Skipped)

	soldier, err := store.Achievements.GetBySlug(ctx, "soldier")
	require.NoError(t, err)
	require.NotNil(t, soldier, "slug derived from the name")
	allRounder, err := store.Achievements.GetBySlug(ctx, "all-rounder")
	require.NoError(t, err)
	assert.Equal(t, "user", allRounder.AwardableType)
	assert.JSONEq(t, `{"icon":"star"}`, string(allRounder.Meta))

	crafting, err := store.Metrics.GetBySlug(ctx, "crafting-xp")
	require.NoError(t, err)
	require.NotNil(t, crafting)

	group, err := store.Groups.GetBySlug(ctx, "total-level")
	require.NoError(t, err)
	require.Len(t, group.Members, 2)

	report, err = svc.Seed(ctx, catalog)
	require.NoError(t, err)
	assert.Zero(t, report.Created)
	assert.Equal(t, 13, report.Skipped)
}

func TestParseCatalog_Invalid(t *testing.T) {
	_, err := ParseCatalog([]byte("metrics: [unterminated"))
	assert.Error(t, err)

	_, err = LoadCatalog("testdata/missing.yaml")
	assert.Error(t, err)
}
