package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
)

// GroupRepository handles metric level groups, their members and ladders.
type GroupRepository struct {
	db *DB
}

// NewGroupRepository creates a new group repository.
func NewGroupRepository(db *DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func orderLevels(db *gorm.DB) *gorm.DB {
	return db.Order("level ASC")
}

func orderAchievements(db *gorm.DB) *gorm.DB {
	return db.Order("achievements.id ASC")
}

// Create creates a new group.
func (r *GroupRepository) Create(ctx context.Context, group *models.MetricLevelGroup) error {
	return r.db.WithContext(ctx).Omit("Members", "Levels").Create(group).Error
}

// GetBySlug retrieves a group with its members, or nil if it does not exist.
func (r *GroupRepository) GetBySlug(ctx context.Context, slug string) (*models.MetricLevelGroup, error) {
	var group models.MetricLevelGroup
	err := r.db.WithContext(ctx).
		Preload("Members").
		Where("slug = ?", slug).
		First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// List returns all groups ordered by slug.
func (r *GroupRepository) List(ctx context.Context) ([]models.MetricLevelGroup, error) {
	var groups []models.MetricLevelGroup
	err := r.db.WithContext(ctx).Order("slug ASC").Find(&groups).Error
	return groups, err
}

// AddMember adds a weighted metric to a group.
func (r *GroupRepository) AddMember(ctx context.Context, member *models.MetricLevelGroupMetric) error {
	return r.db.WithContext(ctx).Omit("GamedMetric").Create(member).Error
}

// GetMembers returns the weighted member metrics of a group.
func (r *GroupRepository) GetMembers(ctx context.Context, groupID uint) ([]models.MetricLevelGroupMetric, error) {
	var members []models.MetricLevelGroupMetric
	err := r.db.WithContext(ctx).
		Where("metric_level_group_id = ?", groupID).
		Order("gamed_metric_id ASC").
		Find(&members).Error
	return members, err
}

// CreateLevel adds a threshold row to a group's ladder.
func (r *GroupRepository) CreateLevel(ctx context.Context, level *models.MetricLevelGroupLevel) error {
	return r.db.WithContext(ctx).Omit("Achievements").Create(level).Error
}

// GetLevels returns a group's ladder ordered by level, with attached achievements.
func (r *GroupRepository) GetLevels(ctx context.Context, groupID uint) ([]models.MetricLevelGroupLevel, error) {
	var levels []models.MetricLevelGroupLevel
	err := r.db.WithContext(ctx).
		Preload("Achievements", orderAchievements).
		Where("metric_level_group_id = ?", groupID).
		Order("level ASC").
		Find(&levels).Error
	return levels, err
}

// AttachLevelAchievement links an achievement to a group level. Repeated links are ignored.
func (r *GroupRepository) AttachLevelAchievement(ctx context.Context, levelID, achievementID uint) error {
	return r.db.WithContext(ctx).Exec(
		"INSERT INTO metric_level_group_level_achievements (metric_level_group_level_id, achievement_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
		levelID, achievementID,
	).Error
}

// ListContainingMetric returns every group that has the metric as a member,
// loaded with members and the full ladder so progression can be evaluated.
func (r *GroupRepository) ListContainingMetric(ctx context.Context, metricID uint) ([]models.MetricLevelGroup, error) {
	memberOf := r.db.WithContext(ctx).
		Model(&models.MetricLevelGroupMetric{}).
		Select("metric_level_group_id").
		Where("gamed_metric_id = ?", metricID)

	var groups []models.MetricLevelGroup
	err := r.db.WithContext(ctx).
		Preload("Members").
		Preload("Levels", orderLevels).
		Preload("Levels.Achievements", orderAchievements).
		Where("id IN (?)", memberOf).
		Order("id ASC").
		Find(&groups).Error
	return groups, err
}

// ListWithLadders returns every group loaded with members and ladder.
func (r *GroupRepository) ListWithLadders(ctx context.Context) ([]models.MetricLevelGroup, error) {
	var groups []models.MetricLevelGroup
	err := r.db.WithContext(ctx).
		Preload("Members").
		Preload("Levels", orderLevels).
		Preload("Levels.Achievements", orderAchievements).
		Order("id ASC").
		Find(&groups).Error
	return groups, err
}
