package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
)

// AchievementRepository handles achievements and their grants.
type AchievementRepository struct {
	db *DB
}

// NewAchievementRepository creates a new achievement repository.
func NewAchievementRepository(db *DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// Create creates a new achievement.
func (r *AchievementRepository) Create(ctx context.Context, achievement *models.Achievement) error {
	return r.db.WithContext(ctx).Create(achievement).Error
}

// GetBySlug retrieves an achievement by slug, or nil if it does not exist.
func (r *AchievementRepository) GetBySlug(ctx context.Context, slug string) (*models.Achievement, error) {
	var achievement models.Achievement
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&achievement).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &achievement, nil
}

// GetByID retrieves an achievement by its ID.
func (r *AchievementRepository) GetByID(ctx context.Context, id uint) (*models.Achievement, error) {
	var achievement models.Achievement
	if err := r.db.WithContext(ctx).First(&achievement, id).Error; err != nil {
		return nil, err
	}
	return &achievement, nil
}

// List returns the achievement catalog ordered by slug.
func (r *AchievementRepository) List(ctx context.Context) ([]models.Achievement, error) {
	var achievements []models.Achievement
	err := r.db.WithContext(ctx).Order("slug ASC").Find(&achievements).Error
	return achievements, err
}

// SetActive toggles whether an achievement can still be granted.
func (r *AchievementRepository) SetActive(ctx context.Context, id uint, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Achievement{}).
		Where("id = ?", id).
		Update("active", active).Error
}

// HasGrant checks whether the awardable already holds the achievement.
func (r *AchievementRepository) HasGrant(ctx context.Context, achievementID uint, a models.Awardable) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AchievementGrant{}).
		Where("achievement_id = ? AND awardable_type = ? AND awardable_id = ?", achievementID, a.Type, a.ID).
		Count(&count).Error
	return count > 0, err
}

// CreateGrant inserts a grant row guarded by the unique holder index.
// It reports false, without error, when the awardable already holds the achievement.
func (r *AchievementRepository) CreateGrant(ctx context.Context, grant *models.AchievementGrant) (bool, error) {
	res := r.db.WithContext(ctx).
		Omit("Achievement").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(grant)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// HeldAchievementIDs returns the IDs of achievements the awardable holds.
func (r *AchievementRepository) HeldAchievementIDs(ctx context.Context, a models.Awardable) (map[uint]bool, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.AchievementGrant{}).
		Where("awardable_type = ? AND awardable_id = ?", a.Type, a.ID).
		Pluck("achievement_id", &ids).Error
	if err != nil {
		return nil, err
	}

	held := make(map[uint]bool, len(ids))
	for _, id := range ids {
		held[id] = true
	}
	return held, nil
}

// ListGrants returns the grants of an awardable, most recent first.
func (r *AchievementRepository) ListGrants(ctx context.Context, a models.Awardable) ([]models.AchievementGrant, error) {
	var grants []models.AchievementGrant
	err := r.db.WithContext(ctx).
		Preload("Achievement").
		Where("awardable_type = ? AND awardable_id = ?", a.Type, a.ID).
		Order("granted_at DESC").
		Order("id DESC").
		Find(&grants).Error
	return grants, err
}

// CountHolders returns how many awardables hold the achievement.
func (r *AchievementRepository) CountHolders(ctx context.Context, achievementID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AchievementGrant{}).
		Where("achievement_id = ?", achievementID).
		Count(&count).Error
	return count, err
}
