package mocks

import (
	"context"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
)

// MockProfileRepository is a simple mock for profile lookups
type MockProfileRepository struct {
	FindByAwardableFunc  func(a models.Awardable) (*models.Profile, error)
	ListTopByTotalXPFunc func(limit int) ([]models.Profile, error)
	ListAfterFunc        func(afterID uint, limit int) ([]models.Profile, error)
	CountRankedAboveFunc func(totalXP int64, id uint) (int64, error)
}

func (m *MockProfileRepository) FindByAwardable(_ context.Context, a models.Awardable) (*models.Profile, error) {
	if m.FindByAwardableFunc != nil {
		return m.FindByAwardableFunc(a)
	}
	return nil, nil
}

func (m *MockProfileRepository) ListTopByTotalXP(_ context.Context, limit int) ([]models.Profile, error) {
	if m.ListTopByTotalXPFunc != nil {
		return m.ListTopByTotalXPFunc(limit)
	}
	return []models.Profile{}, nil
}

func (m *MockProfileRepository) ListAfter(_ context.Context, afterID uint, limit int) ([]models.Profile, error) {
	if m.ListAfterFunc != nil {
		return m.ListAfterFunc(afterID, limit)
	}
	return []models.Profile{}, nil
}

func (m *MockProfileRepository) CountRankedAbove(_ context.Context, totalXP int64, id uint) (int64, error) {
	if m.CountRankedAboveFunc != nil {
		return m.CountRankedAboveFunc(totalXP, id)
	}
	return 0, nil
}
