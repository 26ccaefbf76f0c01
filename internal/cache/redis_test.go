package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRaiseScoreNeverLowers(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.RaiseScore(ctx, "board", "user:1", 150))
	require.NoError(t, c.RaiseScore(ctx, "board", "user:1", 100))

	_, score, err := c.Rank(ctx, "board", "user:1")
	require.NoError(t, err)
	assert.Equal(t, float64(150), score)

	require.NoError(t, c.RaiseScore(ctx, "board", "user:1", 200))
	_, score, err = c.Rank(ctx, "board", "user:1")
	require.NoError(t, err)
	assert.Equal(t, float64(200), score)
}

func TestTopAndRank(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Replace(ctx, "board", []Member{
		{Name: "user:1", Score: 10},
		{Name: "user:2", Score: 30},
		{Name: "user:3", Score: 20},
	}))

	top, err := c.Top(ctx, "board", 2)
	require.NoError(t, err)
	assert.Equal(t, []Member{{Name: "user:2", Score: 30}, {Name: "user:3", Score: 20}}, top)

	rank, _, err := c.Rank(ctx, "board", "user:1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rank)

	_, _, err = c.Rank(ctx, "board", "user:9")
	assert.ErrorIs(t, err, ErrMiss)

	size, err := c.Size(ctx, "board")
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)
}

func TestReplaceDropsOldMembers(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	_, err := c.IncrScore(ctx, "board", "user:1", 5)
	require.NoError(t, err)
	require.NoError(t, c.Replace(ctx, "board", []Member{{Name: "user:2", Score: 1}}))

	_, _, err = c.Rank(ctx, "board", "user:1")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Replace(ctx, "board", nil))
	size, err := c.Size(ctx, "board")
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestHealth(t *testing.T) {
	c, mr := setupCache(t)
	require.NoError(t, c.Health(context.Background()))

	mr.Close()
	assert.Error(t, c.Health(context.Background()))
}
