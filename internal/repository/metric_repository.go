package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
)

// MetricRepository handles gamed metrics and their level ladders.
type MetricRepository struct {
	db *DB
}

// NewMetricRepository creates a new metric repository.
func NewMetricRepository(db *DB) *MetricRepository {
	return &MetricRepository{db: db}
}

// Create creates a new gamed metric.
func (r *MetricRepository) Create(ctx context.Context, metric *models.GamedMetric) error {
	return r.db.WithContext(ctx).Create(metric).Error
}

// GetBySlug retrieves a metric by slug, or nil if it does not exist.
func (r *MetricRepository) GetBySlug(ctx context.Context, slug string) (*models.GamedMetric, error) {
	var metric models.GamedMetric
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&metric).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &metric, nil
}

// GetByID retrieves a metric by its ID.
func (r *MetricRepository) GetByID(ctx context.Context, id uint) (*models.GamedMetric, error) {
	var metric models.GamedMetric
	if err := r.db.WithContext(ctx).First(&metric, id).Error; err != nil {
		return nil, err
	}
	return &metric, nil
}

// List returns all metrics ordered by slug.
func (r *MetricRepository) List(ctx context.Context) ([]models.GamedMetric, error) {
	var metrics []models.GamedMetric
	err := r.db.WithContext(ctx).Order("slug ASC").Find(&metrics).Error
	return metrics, err
}

// SetActive toggles whether a metric accepts new awards.
func (r *MetricRepository) SetActive(ctx context.Context, id uint, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.GamedMetric{}).
		Where("id = ?", id).
		Update("active", active).Error
}

// CreateLevel adds a threshold row to a metric's ladder.
func (r *MetricRepository) CreateLevel(ctx context.Context, level *models.MetricLevel) error {
	return r.db.WithContext(ctx).Omit("Achievements").Create(level).Error
}

// GetLevels returns a metric's ladder ordered by level, with attached achievements.
func (r *MetricRepository) GetLevels(ctx context.Context, metricID uint) ([]models.MetricLevel, error) {
	var levels []models.MetricLevel
	err := r.db.WithContext(ctx).
		Preload("Achievements", orderAchievements).
		Where("gamed_metric_id = ?", metricID).
		Order("level ASC").
		Find(&levels).Error
	return levels, err
}

// AttachLevelAchievement links an achievement to a metric level. Repeated links are ignored.
func (r *MetricRepository) AttachLevelAchievement(ctx context.Context, levelID, achievementID uint) error {
	return r.db.WithContext(ctx).Exec(
		"INSERT INTO metric_level_achievements (metric_level_id, achievement_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
		levelID, achievementID,
	).Error
}
