package events

import (
	"context"
	"sync"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/pkg/logger"
)

// Notifier consumes published events. Implementations handle their own
// failures; publishing never fails an award that already committed.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, event Event)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, event Event) {
	f(ctx, event)
}

// Nop discards every event.
var Nop Notifier = NotifierFunc(func(context.Context, Event) {})

// Dispatcher fans events out to every registered notifier in order.
type Dispatcher struct {
	mu        sync.RWMutex
	notifiers []Notifier
}

// NewDispatcher creates a dispatcher over the given notifiers.
func NewDispatcher(notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{notifiers: notifiers}
}

// Add registers another notifier.
func (d *Dispatcher) Add(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers = append(d.notifiers, n)
}

// Notify delivers the event to every notifier.
func (d *Dispatcher) Notify(ctx context.Context, event Event) {
	d.mu.RLock()
	notifiers := append([]Notifier(nil), d.notifiers...)
	d.mu.RUnlock()

	for _, n := range notifiers {
		n.Notify(ctx, event)
	}
}

// Batch queues events produced inside a transaction until it commits.
type Batch struct {
	mu     sync.Mutex
	events []Event
}

// NewBatch creates an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Add queues an event.
func (b *Batch) Add(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

// Events returns a copy of the queued events.
func (b *Batch) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events...)
}

// Len returns the number of queued events.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Discard drops the queued events; used when the transaction rolls back.
func (b *Batch) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

// Flush delivers the queued events in order and empties the batch.
func (b *Batch) Flush(ctx context.Context, n Notifier) {
	b.mu.Lock()
	pending := b.events
	b.events = nil
	b.mu.Unlock()

	for _, event := range pending {
		n.Notify(ctx, event)
	}
}

// LogNotifier writes every event as a structured log line.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a notifier that logs events.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.Component("events")}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, event Event) {
	entry := n.log.Info()
	if event.Type() == TypeAwardFailed {
		entry = n.log.Warn()
	}
	entry = entry.
		Str("event", string(event.Type())).
		Str("event_id", event.EventHeader().ID.String())

	switch e := event.(type) {
	case XPAwarded:
		entry.Str("awardable", e.Awardable.String()).
			Str("metric", e.Metric).
			Int64("amount", e.Amount).
			Int64("metric_total", e.MetricTotal).
			Int64("profile_total", e.ProfileTotal).
			Msg("XP awarded")
	case LevelReached:
		entry.Str("awardable", e.Awardable.String()).
			Str("track", e.Track).
			Str("slug", e.Slug).
			Int("from", e.From).
			Int("level", e.To).
			Msg("Level reached")
	case AchievementUnlocked:
		entry.Str("awardable", e.Awardable.String()).
			Str("achievement", e.Achievement.Slug).
			Str("source", e.Source).
			Msg("Achievement unlocked")
	case PrizeAwarded:
		entry.Str("awardable", e.Awardable.String()).
			Str("prize", e.Prize.Slug).
			Msg("Prize awarded")
	case AwardFailed:
		entry.Str("awardable", e.Awardable.String()).
			Str("operation", e.Operation).
			Str("slug", e.Slug).
			Str("kind", e.Kind).
			Str("reason", e.Reason).
			Msg("Award failed")
	default:
		entry.Msg("Event published")
	}
}
