package models

import (
	"time"
)

// Profile holds the denormalized gamification totals of one awardable.
type Profile struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	AwardableType    string     `gorm:"size:100;not null;uniqueIndex:idx_profiles_awardable" json:"awardable_type"`
	AwardableID      uint       `gorm:"not null;uniqueIndex:idx_profiles_awardable" json:"awardable_id"`
	TotalXP          int64      `gorm:"column:total_xp;not null;default:0;index" json:"total_xp"`
	AchievementCount int        `gorm:"not null;default:0" json:"achievement_count"`
	PrizeCount       int        `gorm:"not null;default:0" json:"prize_count"`
	OptIn            bool       `gorm:"not null" json:"opt_in"`
	LastActivityAt   *time.Time `json:"last_activity_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Profile model.
func (Profile) TableName() string {
	return "profiles"
}

// Awardable returns the reference this profile belongs to.
func (p *Profile) Awardable() Awardable {
	return Awardable{Type: p.AwardableType, ID: p.AwardableID}
}

// ProfileMetric is the per-awardable progress inside one GamedMetric.
type ProfileMetric struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	ProfileID     uint         `gorm:"not null;uniqueIndex:idx_profile_metrics_pair" json:"profile_id"`
	Profile       *Profile     `gorm:"foreignKey:ProfileID" json:"profile,omitempty"`
	GamedMetricID uint         `gorm:"not null;uniqueIndex:idx_profile_metrics_pair;index" json:"gamed_metric_id"`
	GamedMetric   *GamedMetric `gorm:"foreignKey:GamedMetricID" json:"gamed_metric,omitempty"`
	TotalXP       int64        `gorm:"column:total_xp;not null;default:0" json:"total_xp"`
	CurrentLevel  int          `gorm:"not null;default:1" json:"current_level"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// TableName specifies the table name for ProfileMetric model.
func (ProfileMetric) TableName() string {
	return "profile_metrics"
}

// ProfileMetricGroup caches the level an awardable has reached in a MetricLevelGroup.
// The weighted XP itself is always recomputed from the member ProfileMetrics.
type ProfileMetricGroup struct {
	ID                 uint              `gorm:"primaryKey" json:"id"`
	ProfileID          uint              `gorm:"not null;uniqueIndex:idx_profile_metric_groups_pair" json:"profile_id"`
	MetricLevelGroupID uint              `gorm:"not null;uniqueIndex:idx_profile_metric_groups_pair;index" json:"metric_level_group_id"`
	MetricLevelGroup   *MetricLevelGroup `gorm:"foreignKey:MetricLevelGroupID" json:"metric_level_group,omitempty"`
	CurrentLevel       int               `gorm:"not null;default:1" json:"current_level"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// TableName specifies the table name for ProfileMetricGroup model.
func (ProfileMetricGroup) TableName() string {
	return "profile_metric_groups"
}
