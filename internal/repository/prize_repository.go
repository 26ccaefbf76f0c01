package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
)

// PrizeRepository handles prizes and their grants.
type PrizeRepository struct {
	db *DB
}

// NewPrizeRepository creates a new prize repository.
func NewPrizeRepository(db *DB) *PrizeRepository {
	return &PrizeRepository{db: db}
}

// Create creates a new prize.
func (r *PrizeRepository) Create(ctx context.Context, prize *models.Prize) error {
	return r.db.WithContext(ctx).Create(prize).Error
}

// GetBySlug retrieves a prize by slug, or nil if it does not exist.
func (r *PrizeRepository) GetBySlug(ctx context.Context, slug string) (*models.Prize, error) {
	var prize models.Prize
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&prize).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &prize, nil
}

// List returns the prize catalog ordered by slug.
func (r *PrizeRepository) List(ctx context.Context) ([]models.Prize, error) {
	var prizes []models.Prize
	err := r.db.WithContext(ctx).Order("slug ASC").Find(&prizes).Error
	return prizes, err
}

// CreateGrant records one delivery of a prize.
func (r *PrizeRepository) CreateGrant(ctx context.Context, grant *models.PrizeGrant) error {
	return r.db.WithContext(ctx).Omit("Prize").Create(grant).Error
}

// ListGrants returns the prize grants of an awardable, most recent first.
func (r *PrizeRepository) ListGrants(ctx context.Context, a models.Awardable) ([]models.PrizeGrant, error) {
	var grants []models.PrizeGrant
	err := r.db.WithContext(ctx).
		Preload("Prize").
		Where("awardable_type = ? AND awardable_id = ?", a.Type, a.ID).
		Order("granted_at DESC").
		Order("id DESC").
		Find(&grants).Error
	return grants, err
}

// CountGrants returns how many times the awardable received the prize.
func (r *PrizeRepository) CountGrants(ctx context.Context, prizeID uint, a models.Awardable) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PrizeGrant{}).
		Where("prize_id = ? AND awardable_type = ? AND awardable_id = ?", prizeID, a.Type, a.ID).
		Count(&count).Error
	return count, err
}
