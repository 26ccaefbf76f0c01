package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store bundles the repositories that share one database handle.
type Store struct {
	db *DB

	Profiles     *ProfileRepository
	Progress     *ProgressRepository
	Metrics      *MetricRepository
	Groups       *GroupRepository
	Achievements *AchievementRepository
	Prizes       *PrizeRepository
}

// NewStore creates a store over the given connection.
func NewStore(db *DB) *Store {
	return &Store{
		db:           db,
		Profiles:     NewProfileRepository(db),
		Progress:     NewProgressRepository(db),
		Metrics:      NewMetricRepository(db),
		Groups:       NewGroupRepository(db),
		Achievements: NewAchievementRepository(db),
		Prizes:       NewPrizeRepository(db),
	}
}

// DB returns the underlying connection.
func (s *Store) DB() *DB {
	return s.db
}

// Transaction runs fn with a store bound to a single database transaction.
// Calling Transaction on a store that is already transactional opens a savepoint.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(&DB{tx}))
	})
}
