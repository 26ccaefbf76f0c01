package models

import (
	"time"
)

// MetricLevelGroup is a composite leveling track fed by several weighted metrics.
type MetricLevelGroup struct {
	ID          uint                    `gorm:"primaryKey" json:"id"`
	Slug        string                  `gorm:"uniqueIndex;not null;size:100" json:"slug"`
	Name        string                  `gorm:"not null;size:255" json:"name"`
	Description string                  `gorm:"type:text" json:"description"`
	Members     []MetricLevelGroupMetric `gorm:"foreignKey:MetricLevelGroupID" json:"members,omitempty"`
	Levels      []MetricLevelGroupLevel  `gorm:"foreignKey:MetricLevelGroupID" json:"levels,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// TableName specifies the table name for MetricLevelGroup model.
func (MetricLevelGroup) TableName() string {
	return "metric_level_groups"
}

// MetricLevelGroupMetric links a metric into a group with an XP multiplier.
type MetricLevelGroupMetric struct {
	ID                 uint         `gorm:"primaryKey" json:"id"`
	MetricLevelGroupID uint         `gorm:"not null;uniqueIndex:idx_group_metrics_pair" json:"metric_level_group_id"`
	GamedMetricID      uint         `gorm:"not null;uniqueIndex:idx_group_metrics_pair;index" json:"gamed_metric_id"`
	GamedMetric        *GamedMetric `gorm:"foreignKey:GamedMetricID" json:"gamed_metric,omitempty"`
	Weight             float64      `gorm:"type:decimal(10,4);not null" json:"weight"`
	CreatedAt          time.Time    `json:"created_at"`
}

// TableName specifies the table name for MetricLevelGroupMetric model.
func (MetricLevelGroupMetric) TableName() string {
	return "metric_level_group_metrics"
}

// MetricLevelGroupLevel is one threshold row of a group's level ladder.
type MetricLevelGroupLevel struct {
	ID                 uint          `gorm:"primaryKey" json:"id"`
	MetricLevelGroupID uint          `gorm:"not null;uniqueIndex:idx_group_levels_level" json:"metric_level_group_id"`
	Level              int           `gorm:"not null;uniqueIndex:idx_group_levels_level" json:"level"`
	XPThreshold        int64         `gorm:"column:xp_threshold;not null" json:"xp_threshold"`
	Name               string        `gorm:"size:255" json:"name"`
	Description        string        `gorm:"type:text" json:"description"`
	Achievements       []Achievement `gorm:"many2many:metric_level_group_level_achievements;" json:"achievements,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// TableName specifies the table name for MetricLevelGroupLevel model.
func (MetricLevelGroupLevel) TableName() string {
	return "metric_level_group_levels"
}
