package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
)

// ProfileRepository handles profile-related database operations.
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByAwardable returns the profile of an awardable, or nil if none exists yet.
func (r *ProfileRepository) FindByAwardable(ctx context.Context, a models.Awardable) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).
		Where("awardable_type = ? AND awardable_id = ?", a.Type, a.ID).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetByID retrieves a profile by its ID.
func (r *ProfileRepository) GetByID(ctx context.Context, id uint) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).First(&profile, id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetOrCreate returns the profile of an awardable, creating an opted-in one on first access.
// Concurrent first accesses converge on the same row through the unique awardable index.
func (r *ProfileRepository) GetOrCreate(ctx context.Context, a models.Awardable) (*models.Profile, error) {
	profile := &models.Profile{
		AwardableType: a.Type,
		AwardableID:   a.ID,
		OptIn:         true,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(profile).Error
	if err != nil {
		return nil, err
	}

	existing, err := r.FindByAwardable(ctx, a)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return existing, nil
}

// IncrementXP atomically adds amount to the profile total and stamps the activity time.
func (r *ProfileRepository) IncrementXP(ctx context.Context, profileID uint, amount int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", profileID).
		Updates(map[string]interface{}{
			"total_xp":         gorm.Expr("total_xp + ?", amount),
			"last_activity_at": at,
		}).Error
}

// SetTotalXP overwrites the profile total. Used when resynchronizing from metric rows.
func (r *ProfileRepository) SetTotalXP(ctx context.Context, profileID uint, total int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", profileID).
		Update("total_xp", total).Error
}

// IncrementAchievementCount atomically adjusts the achievement counter.
func (r *ProfileRepository) IncrementAchievementCount(ctx context.Context, profileID uint, delta int) error {
	return r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", profileID).
		Update("achievement_count", gorm.Expr("achievement_count + ?", delta)).Error
}

// IncrementPrizeCount atomically adjusts the prize counter.
func (r *ProfileRepository) IncrementPrizeCount(ctx context.Context, profileID uint, delta int) error {
	return r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", profileID).
		Update("prize_count", gorm.Expr("prize_count + ?", delta)).Error
}

// SetOptIn updates the gamification opt-in flag.
func (r *ProfileRepository) SetOptIn(ctx context.Context, profileID uint, optIn bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", profileID).
		Update("opt_in", optIn).Error
}

// ListTopByTotalXP returns opted-in profiles ordered by total XP descending.
func (r *ProfileRepository) ListTopByTotalXP(ctx context.Context, limit int) ([]models.Profile, error) {
	var profiles []models.Profile
	err := r.db.WithContext(ctx).
		Where("opt_in = ?", true).
		Order("total_xp DESC").
		Order("id ASC").
		Limit(limit).
		Find(&profiles).Error
	return profiles, err
}

// CountRankedAbove counts opted-in profiles ranked before the given total and ID
// under the total_xp DESC, id ASC ordering.
func (r *ProfileRepository) CountRankedAbove(ctx context.Context, totalXP int64, id uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("opt_in = ?", true).
		Where("total_xp > ? OR (total_xp = ? AND id < ?)", totalXP, totalXP, id).
		Count(&count).Error
	return count, err
}

// ListAfter returns up to limit profiles with an ID greater than afterID, in ID order.
func (r *ProfileRepository) ListAfter(ctx context.Context, afterID uint, limit int) ([]models.Profile, error) {
	var profiles []models.Profile
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&profiles).Error
	return profiles, err
}

// Count returns the number of profiles.
func (r *ProfileRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Profile{}).Count(&count).Error
	return count, err
}
