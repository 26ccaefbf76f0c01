package models

import (
	"encoding/json"
	"time"
)

// Achievement is a one-time unlockable held at most once per awardable.
type Achievement struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Slug          string          `gorm:"uniqueIndex;not null;size:100" json:"slug"`
	Name          string          `gorm:"not null;size:255" json:"name"`
	Description   string          `gorm:"type:text" json:"description"`
	AwardableType string          `gorm:"size:100" json:"awardable_type,omitempty"` // empty means any type
	Active        bool            `gorm:"not null" json:"active"`
	Meta          json.RawMessage `gorm:"type:jsonb" json:"meta,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Achievement model.
func (Achievement) TableName() string {
	return "achievements"
}

// AllowsType reports whether the achievement may be held by the given awardable type.
func (a *Achievement) AllowsType(awardableType string) bool {
	return a.AwardableType == "" || a.AwardableType == awardableType
}

// AchievementGrant records that an awardable holds an achievement.
// The (achievement_id, awardable_type, awardable_id) index is the duplicate guard.
type AchievementGrant struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	AchievementID uint            `gorm:"not null;uniqueIndex:idx_achievement_grants_holder" json:"achievement_id"`
	Achievement   *Achievement    `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
	AwardableType string          `gorm:"size:100;not null;uniqueIndex:idx_achievement_grants_holder;index:idx_achievement_grants_awardable" json:"awardable_type"`
	AwardableID   uint            `gorm:"not null;uniqueIndex:idx_achievement_grants_holder;index:idx_achievement_grants_awardable" json:"awardable_id"`
	ProfileID     uint            `gorm:"not null;index" json:"profile_id"`
	Reason        string          `gorm:"type:text" json:"reason,omitempty"`
	Source        string          `gorm:"size:255" json:"source,omitempty"`
	Meta          json.RawMessage `gorm:"type:jsonb" json:"meta,omitempty"`
	GrantedAt     time.Time       `gorm:"not null" json:"granted_at"`
}

// TableName specifies the table name for AchievementGrant model.
func (AchievementGrant) TableName() string {
	return "achievement_grants"
}

// Awardable returns the holder of the grant.
func (g *AchievementGrant) Awardable() Awardable {
	return Awardable{Type: g.AwardableType, ID: g.AwardableID}
}
