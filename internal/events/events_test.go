package events

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/pkg/logger"
)

type collector struct {
	events []Event
}

func (c *collector) Notify(_ context.Context, e Event) {
	c.events = append(c.events, e)
}

func TestNewHeader(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := NewHeader(at)
	b := NewHeader(at)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, at, a.OccurredAt)
}

func TestEventTypes(t *testing.T) {
	tests := []struct {
		event Event
		want  Type
	}{
		{XPAwarded{}, TypeXPAwarded},
		{LevelReached{}, TypeLevelReached},
		{AchievementUnlocked{}, TypeAchievementUnlocked},
		{PrizeAwarded{}, TypePrizeAwarded},
		{AwardFailed{}, TypeAwardFailed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.event.Type())
	}
}

func TestDispatcher_FansOutInOrder(t *testing.T) {
	first, second := &collector{}, &collector{}
	d := NewDispatcher(first)
	d.Add(second)

	e := XPAwarded{Header: NewHeader(time.Now()), Metric: "combat-xp", Amount: 5}
	d.Notify(context.Background(), e)

	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	assert.Equal(t, e, first.events[0])
}

func TestBatch_FlushAndDiscard(t *testing.T) {
	sink := &collector{}
	b := NewBatch()

	b.Add(XPAwarded{Metric: "a"})
	b.Add(LevelReached{Slug: "a", To: 2})
	assert.Equal(t, 2, b.Len())

	b.Flush(context.Background(), sink)
	assert.Equal(t, 0, b.Len())
	require.Len(t, sink.events, 2)
	assert.Equal(t, TypeXPAwarded, sink.events[0].Type())
	assert.Equal(t, TypeLevelReached, sink.events[1].Type())

	b.Add(AwardFailed{Kind: "not_found"})
	b.Discard()
	b.Flush(context.Background(), sink)
	assert.Len(t, sink.events, 2, "discarded events are never delivered")
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(logger.NewWithWriter("info", "json", &buf))

	n.Notify(context.Background(), AchievementUnlocked{
		Header:      NewHeader(time.Now()),
		Awardable:   models.NewAwardable("user", 4),
		Achievement: models.Achievement{Slug: "veteran"},
	})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "achievement_unlocked", line["event"])
	assert.Equal(t, "user:4", line["awardable"])
	assert.Equal(t, "veteran", line["achievement"])
	assert.Equal(t, "events", line["component"])
	assert.Equal(t, "info", line["level"])
}

func TestLogNotifier_FailuresAreWarnings(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(logger.NewWithWriter("info", "json", &buf))

	n.Notify(context.Background(), AwardFailed{Operation: "grant", Kind: "opted_out"})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "opted_out", line["kind"])
}
