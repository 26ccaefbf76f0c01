// Package events defines the notifications the engine publishes after a
// successful commit and the notifiers that consume them.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
)

// Type names an event kind.
type Type string

// Event types.
const (
	TypeXPAwarded           Type = "xp_awarded"
	TypeLevelReached        Type = "level_reached"
	TypeAchievementUnlocked Type = "achievement_unlocked"
	TypePrizeAwarded        Type = "prize_awarded"
	TypeAwardFailed         Type = "award_failed"
)

// Event is implemented by XPAwarded, LevelReached, AchievementUnlocked,
// PrizeAwarded and AwardFailed only.
type Event interface {
	Type() Type
	EventHeader() Header
	isEvent()
}

// Header carries the identity and time of an event.
type Header struct {
	ID         uuid.UUID `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewHeader stamps a new event.
func NewHeader(at time.Time) Header {
	return Header{ID: uuid.New(), OccurredAt: at}
}

// EventHeader returns the event header.
func (h Header) EventHeader() Header { return h }

func (Header) isEvent() {}

// XPAwarded is published for every recorded XP award.
type XPAwarded struct {
	Header
	Awardable    models.Awardable `json:"awardable"`
	ProfileID    uint             `json:"profile_id"`
	Metric       string           `json:"metric"`
	MetricID     uint             `json:"metric_id"`
	Amount       int64            `json:"amount"`
	MetricTotal  int64            `json:"metric_total"`
	ProfileTotal int64            `json:"profile_total"`
	Level        int              `json:"level"`
	Reason       string           `json:"reason,omitempty"`
	Source       string           `json:"source,omitempty"`
	Meta         json.RawMessage  `json:"meta,omitempty"`
	// OptedOut is set when the recipient has gamification disabled.
	OptedOut bool `json:"opted_out,omitempty"`
}

// Type implements Event.
func (XPAwarded) Type() Type { return TypeXPAwarded }

// LevelReached is published when a stored metric or group level is raised.
type LevelReached struct {
	Header
	Awardable models.Awardable `json:"awardable"`
	Track     string           `json:"track"` // "metric" or "group"
	Slug      string           `json:"slug"`
	From      int              `json:"from"`
	To        int              `json:"to"`
	LevelName string           `json:"level_name,omitempty"`
}

// Type implements Event.
func (LevelReached) Type() Type { return TypeLevelReached }

// AchievementUnlocked is published for every new achievement grant.
type AchievementUnlocked struct {
	Header
	Awardable   models.Awardable        `json:"awardable"`
	Achievement models.Achievement      `json:"achievement"`
	Grant       models.AchievementGrant `json:"grant"`
	Reason      string                  `json:"reason,omitempty"`
	Source      string                  `json:"source,omitempty"`
}

// Type implements Event.
func (AchievementUnlocked) Type() Type { return TypeAchievementUnlocked }

// PrizeAwarded is published for every prize grant.
type PrizeAwarded struct {
	Header
	Awardable models.Awardable  `json:"awardable"`
	Prize     models.Prize      `json:"prize"`
	Grant     models.PrizeGrant `json:"grant"`
	Reason    string            `json:"reason,omitempty"`
	Source    string            `json:"source,omitempty"`
}

// Type implements Event.
func (PrizeAwarded) Type() Type { return TypePrizeAwarded }

// AwardFailed is published when an award or grant is refused for a business reason.
type AwardFailed struct {
	Header
	Operation string            `json:"operation"` // "award" or "grant"
	Awardable models.Awardable  `json:"awardable"`
	Slug      string            `json:"slug"`
	Kind      string            `json:"kind"`
	Reason    string            `json:"reason"`
	Context   map[string]string `json:"context,omitempty"`
}

// Type implements Event.
func (AwardFailed) Type() Type { return TypeAwardFailed }
