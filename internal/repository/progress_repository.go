package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
)

// ProgressRepository handles per-profile metric and group progress rows.
type ProgressRepository struct {
	db *DB
}

// NewProgressRepository creates a new progress repository.
func NewProgressRepository(db *DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// GetOrCreateMetric returns the progress row of a profile in a metric, creating it at level 1.
func (r *ProgressRepository) GetOrCreateMetric(ctx context.Context, profileID, metricID uint) (*models.ProfileMetric, error) {
	pm := &models.ProfileMetric{
		ProfileID:     profileID,
		GamedMetricID: metricID,
		CurrentLevel:  models.InitialLevel,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(pm).Error
	if err != nil {
		return nil, err
	}

	existing, err := r.FindMetric(ctx, profileID, metricID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return existing, nil
}

// FindMetric returns the progress row of a profile in a metric, or nil if it was never touched.
func (r *ProgressRepository) FindMetric(ctx context.Context, profileID, metricID uint) (*models.ProfileMetric, error) {
	var pm models.ProfileMetric
	err := r.db.WithContext(ctx).
		Where("profile_id = ? AND gamed_metric_id = ?", profileID, metricID).
		First(&pm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pm, nil
}

// GetMetricByID re-reads a progress row; used after increments to observe the committed total.
func (r *ProgressRepository) GetMetricByID(ctx context.Context, id uint) (*models.ProfileMetric, error) {
	var pm models.ProfileMetric
	if err := r.db.WithContext(ctx).First(&pm, id).Error; err != nil {
		return nil, err
	}
	return &pm, nil
}

// IncrementMetricXP atomically adds amount to a progress row.
func (r *ProgressRepository) IncrementMetricXP(ctx context.Context, id uint, amount int64) error {
	return r.db.WithContext(ctx).
		Model(&models.ProfileMetric{}).
		Where("id = ?", id).
		Update("total_xp", gorm.Expr("total_xp + ?", amount)).Error
}

// RaiseMetricLevel sets current_level only if it is below level.
// It reports false when an equal or higher level is already stored.
func (r *ProgressRepository) RaiseMetricLevel(ctx context.Context, id uint, level int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ProfileMetric{}).
		Where("id = ? AND current_level < ?", id, level).
		Update("current_level", level)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MetricXP returns the stored XP of a profile for each of the given metrics.
// Metrics the profile never touched are absent from the map.
func (r *ProgressRepository) MetricXP(ctx context.Context, profileID uint, metricIDs []uint) (map[uint]int64, error) {
	xp := make(map[uint]int64, len(metricIDs))
	if len(metricIDs) == 0 {
		return xp, nil
	}

	var rows []models.ProfileMetric
	err := r.db.WithContext(ctx).
		Where("profile_id = ? AND gamed_metric_id IN ?", profileID, metricIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		xp[row.GamedMetricID] = row.TotalXP
	}
	return xp, nil
}

// ListMetrics returns every metric progress row of a profile with its metric.
func (r *ProgressRepository) ListMetrics(ctx context.Context, profileID uint) ([]models.ProfileMetric, error) {
	var rows []models.ProfileMetric
	err := r.db.WithContext(ctx).
		Preload("GamedMetric").
		Where("profile_id = ?", profileID).
		Order("gamed_metric_id ASC").
		Find(&rows).Error
	return rows, err
}

// SumMetricXP returns the sum of all metric totals of a profile.
func (r *ProgressRepository) SumMetricXP(ctx context.Context, profileID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.ProfileMetric{}).
		Where("profile_id = ?", profileID).
		Select("COALESCE(SUM(total_xp), 0)").
		Scan(&total).Error
	return total, err
}

// GetOrCreateGroup returns the progress row of a profile in a group, creating it at level 1.
func (r *ProgressRepository) GetOrCreateGroup(ctx context.Context, profileID, groupID uint) (*models.ProfileMetricGroup, error) {
	pg := &models.ProfileMetricGroup{
		ProfileID:          profileID,
		MetricLevelGroupID: groupID,
		CurrentLevel:       models.InitialLevel,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(pg).Error
	if err != nil {
		return nil, err
	}

	existing, err := r.FindGroup(ctx, profileID, groupID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return existing, nil
}

// FindGroup returns the progress row of a profile in a group, or nil if none exists.
func (r *ProgressRepository) FindGroup(ctx context.Context, profileID, groupID uint) (*models.ProfileMetricGroup, error) {
	var pg models.ProfileMetricGroup
	err := r.db.WithContext(ctx).
		Where("profile_id = ? AND metric_level_group_id = ?", profileID, groupID).
		First(&pg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pg, nil
}

// RaiseGroupLevel sets current_level only if it is below level.
func (r *ProgressRepository) RaiseGroupLevel(ctx context.Context, id uint, level int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ProfileMetricGroup{}).
		Where("id = ? AND current_level < ?", id, level).
		Update("current_level", level)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListGroups returns every group progress row of a profile with its group.
func (r *ProgressRepository) ListGroups(ctx context.Context, profileID uint) ([]models.ProfileMetricGroup, error) {
	var rows []models.ProfileMetricGroup
	err := r.db.WithContext(ctx).
		Preload("MetricLevelGroup").
		Where("profile_id = ?", profileID).
		Order("metric_level_group_id ASC").
		Find(&rows).Error
	return rows, err
}
