package models

import (
	"time"
)

// InitialLevel is the level every new ProfileMetric and ProfileMetricGroup starts at.
const InitialLevel = 1

// GamedMetric is a named XP bucket such as "combat-xp".
type GamedMetric struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Slug        string        `gorm:"uniqueIndex;not null;size:100" json:"slug"`
	Name        string        `gorm:"not null;size:255" json:"name"`
	Description string        `gorm:"type:text" json:"description"`
	Active      bool          `gorm:"not null" json:"active"`
	Levels      []MetricLevel `gorm:"foreignKey:GamedMetricID" json:"levels,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// TableName specifies the table name for GamedMetric model.
func (GamedMetric) TableName() string {
	return "gamed_metrics"
}

// MetricLevel is one threshold row of a GamedMetric's level ladder.
type MetricLevel struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	GamedMetricID uint          `gorm:"not null;uniqueIndex:idx_metric_levels_level" json:"gamed_metric_id"`
	Level         int           `gorm:"not null;uniqueIndex:idx_metric_levels_level" json:"level"`
	XPThreshold   int64         `gorm:"column:xp_threshold;not null" json:"xp_threshold"`
	Name          string        `gorm:"size:255" json:"name"`
	Description   string        `gorm:"type:text" json:"description"`
	Achievements  []Achievement `gorm:"many2many:metric_level_achievements;" json:"achievements,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// TableName specifies the table name for MetricLevel model.
func (MetricLevel) TableName() string {
	return "metric_levels"
}
