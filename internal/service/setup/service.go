package setup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/errs"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/progression"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/repository"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/pkg/logger"
)

const op = "setup"

// Service validates and stores configuration entities.
type Service struct {
	store *repository.Store
	log   *logger.Logger
}

// NewService creates a new setup service.
func NewService(store *repository.Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log.Component("setup")}
}

// Apply creates any entity kind and returns the stored model.
func (s *Service) Apply(ctx context.Context, e Entity) (any, error) {
	switch spec := e.(type) {
	case MetricSpec:
		return s.CreateMetric(ctx, spec)
	case LevelSpec:
		return s.CreateMetricLevel(ctx, spec)
	case GroupSpec:
		return s.CreateGroup(ctx, spec)
	case GroupLevelSpec:
		return s.CreateGroupLevel(ctx, spec)
	case AchievementSpec:
		return s.CreateAchievement(ctx, spec)
	case PrizeSpec:
		return s.CreatePrize(ctx, spec)
	default:
		return nil, errs.InvalidArgument(op, "kind", "unsupported entity %T", e)
	}
}

// CreateMetric stores a new GamedMetric.
func (s *Service) CreateMetric(ctx context.Context, spec MetricSpec) (*models.GamedMetric, error) {
	var metric *models.GamedMetric
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		metric, err = createMetric(ctx, tx, spec)
		return err
	})
	return metric, err
}

// CreateMetricLevel adds a level to a metric's ladder.
func (s *Service) CreateMetricLevel(ctx context.Context, spec LevelSpec) (*models.MetricLevel, error) {
	var level *models.MetricLevel
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		level, err = createMetricLevel(ctx, tx, spec)
		return err
	})
	return level, err
}

// CreateGroup stores a new MetricLevelGroup with its members.
func (s *Service) CreateGroup(ctx context.Context, spec GroupSpec) (*models.MetricLevelGroup, error) {
	var group *models.MetricLevelGroup
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		group, err = createGroup(ctx, tx, spec)
		return err
	})
	return group, err
}

// CreateGroupLevel adds a level to a group's ladder.
func (s *Service) CreateGroupLevel(ctx context.Context, spec GroupLevelSpec) (*models.MetricLevelGroupLevel, error) {
	var level *models.MetricLevelGroupLevel
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		level, err = createGroupLevel(ctx, tx, spec)
		return err
	})
	return level, err
}

// CreateAchievement stores a new Achievement.
func (s *Service) CreateAchievement(ctx context.Context, spec AchievementSpec) (*models.Achievement, error) {
	return createAchievement(ctx, s.store, spec)
}

// CreatePrize stores a new Prize.
func (s *Service) CreatePrize(ctx context.Context, spec PrizeSpec) (*models.Prize, error) {
	return createPrize(ctx, s.store, spec)
}

func createMetric(ctx context.Context, tx *repository.Store, spec MetricSpec) (*models.GamedMetric, error) {
	key, err := resolveSlug(spec.Slug, spec.Name)
	if err != nil {
		return nil, err
	}
	existing, err := tx.Metrics.GetBySlug(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check metric: %w", err)
	}
	if existing != nil {
		return nil, duplicate("metric", key)
	}

	metric := &models.GamedMetric{
		Slug:        key,
		Name:        nameOrSlug(spec.Name, key),
		Description: spec.Description,
		Active:      activeOrDefault(spec.Active),
	}
	if err := tx.Metrics.Create(ctx, metric); err != nil {
		return nil, storeError("metric", key, err)
	}
	return metric, nil
}

func createMetricLevel(ctx context.Context, tx *repository.Store, spec LevelSpec) (*models.MetricLevel, error) {
	metric, err := tx.Metrics.GetBySlug(ctx, spec.Metric)
	if err != nil {
		return nil, fmt.Errorf("failed to load metric: %w", err)
	}
	if metric == nil {
		return nil, errs.NotFound(op, "metric", "metric %q not found", spec.Metric)
	}

	levels, err := tx.Metrics.GetLevels(ctx, metric.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load metric levels: %w", err)
	}
	ladder := append(progression.MetricLadder(levels), progression.Rung{Level: spec.Level, Threshold: spec.Threshold})
	if err := progression.ValidateLadder(ladder); err != nil {
		return nil, errs.InvalidArgument(op, "xp_threshold", "metric %q: %v", metric.Slug, err)
	}

	achievements, err := lookupAchievements(ctx, tx, spec.Achievements)
	if err != nil {
		return nil, err
	}

	level := &models.MetricLevel{
		GamedMetricID: metric.ID,
		Level:         spec.Level,
		XPThreshold:   spec.Threshold,
		Name:          spec.Name,
		Description:   spec.Description,
	}
	if err := tx.Metrics.CreateLevel(ctx, level); err != nil {
		return nil, fmt.Errorf("failed to create metric level: %w", err)
	}
	for i := range achievements {
		if err := tx.Metrics.AttachLevelAchievement(ctx, level.ID, achievements[i].ID); err != nil {
			return nil, fmt.Errorf("failed to attach achievement %q: %w", achievements[i].Slug, err)
		}
	}
	level.Achievements = achievements
	return level, nil
}

func createGroup(ctx context.Context, tx *repository.Store, spec GroupSpec) (*models.MetricLevelGroup, error) {
	key, err := resolveSlug(spec.Slug, spec.Name)
	if err != nil {
		return nil, err
	}
	if len(spec.Members) == 0 {
		return nil, errs.InvalidArgument(op, "metrics", "group %q needs at least one metric", key)
	}
	existing, err := tx.Groups.GetBySlug(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check group: %w", err)
	}
	if existing != nil {
		return nil, duplicate("group", key)
	}

	group := &models.MetricLevelGroup{
		Slug:        key,
		Name:        nameOrSlug(spec.Name, key),
		Description: spec.Description,
	}
	if err := tx.Groups.Create(ctx, group); err != nil {
		return nil, storeError("group", key, err)
	}

	seen := make(map[string]bool, len(spec.Members))
	for _, m := range spec.Members {
		if seen[m.Metric] {
			return nil, errs.InvalidArgument(op, "metrics", "metric %q is listed twice in group %q", m.Metric, key)
		}
		seen[m.Metric] = true

		weight := m.Weight
		if weight == 0 {
			weight = 1
		}
		if weight < 0 {
			return nil, errs.InvalidArgument(op, "weight", "weight of %q in group %q must be positive", m.Metric, key)
		}
		metric, err := tx.Metrics.GetBySlug(ctx, m.Metric)
		if err != nil {
			return nil, fmt.Errorf("failed to load metric: %w", err)
		}
		if metric == nil {
			return nil, errs.NotFound(op, "metrics", "metric %q not found", m.Metric)
		}

		member := models.MetricLevelGroupMetric{
			MetricLevelGroupID: group.ID,
			GamedMetricID:      metric.ID,
			Weight:             weight,
		}
		if err := tx.Groups.AddMember(ctx, &member); err != nil {
			return nil, fmt.Errorf("failed to add metric %q to group: %w", m.Metric, err)
		}
		member.GamedMetric = metric
		group.Members = append(group.Members, member)
	}
	return group, nil
}

func createGroupLevel(ctx context.Context, tx *repository.Store, spec GroupLevelSpec) (*models.MetricLevelGroupLevel, error) {
	group, err := tx.Groups.GetBySlug(ctx, spec.Group)
	if err != nil {
		return nil, fmt.Errorf("failed to load group: %w", err)
	}
	if group == nil {
		return nil, errs.NotFound(op, "group", "group %q not found", spec.Group)
	}

	levels, err := tx.Groups.GetLevels(ctx, group.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load group levels: %w", err)
	}
	ladder := append(progression.GroupLadder(levels), progression.Rung{Level: spec.Level, Threshold: spec.Threshold})
	if err := progression.ValidateLadder(ladder); err != nil {
		return nil, errs.InvalidArgument(op, "xp_threshold", "group %q: %v", group.Slug, err)
	}

	achievements, err := lookupAchievements(ctx, tx, spec.Achievements)
	if err != nil {
		return nil, err
	}

	level := &models.MetricLevelGroupLevel{
		MetricLevelGroupID: group.ID,
		Level:              spec.Level,
		XPThreshold:        spec.Threshold,
		Name:               spec.Name,
		Description:        spec.Description,
	}
	if err := tx.Groups.CreateLevel(ctx, level); err != nil {
		return nil, fmt.Errorf("failed to create group level: %w", err)
	}
	for i := range achievements {
		if err := tx.Groups.AttachLevelAchievement(ctx, level.ID, achievements[i].ID); err != nil {
			return nil, fmt.Errorf("failed to attach achievement %q: %w", achievements[i].Slug, err)
		}
	}
	level.Achievements = achievements
	return level, nil
}

func createAchievement(ctx context.Context, tx *repository.Store, spec AchievementSpec) (*models.Achievement, error) {
	key, err := resolveSlug(spec.Slug, spec.Name)
	if err != nil {
		return nil, err
	}
	meta, err := encodeMeta(spec.Meta)
	if err != nil {
		return nil, err
	}
	existing, err := tx.Achievements.GetBySlug(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check achievement: %w", err)
	}
	if existing != nil {
		return nil, duplicate("achievement", key)
	}

	achievement := &models.Achievement{
		Slug:          key,
		Name:          nameOrSlug(spec.Name, key),
		Description:   spec.Description,
		AwardableType: spec.AwardableType,
		Active:        activeOrDefault(spec.Active),
		Meta:          meta,
	}
	if err := tx.Achievements.Create(ctx, achievement); err != nil {
		return nil, storeError("achievement", key, err)
	}
	return achievement, nil
}

func createPrize(ctx context.Context, tx *repository.Store, spec PrizeSpec) (*models.Prize, error) {
	key, err := resolveSlug(spec.Slug, spec.Name)
	if err != nil {
		return nil, err
	}
	meta, err := encodeMeta(spec.Meta)
	if err != nil {
		return nil, err
	}
	existing, err := tx.Prizes.GetBySlug(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check prize: %w", err)
	}
	if existing != nil {
		return nil, duplicate("prize", key)
	}

	prize := &models.Prize{
		Slug:          key,
		Name:          nameOrSlug(spec.Name, key),
		Description:   spec.Description,
		AwardableType: spec.AwardableType,
		Active:        activeOrDefault(spec.Active),
		Meta:          meta,
	}
	if err := tx.Prizes.Create(ctx, prize); err != nil {
		return nil, storeError("prize", key, err)
	}
	return prize, nil
}

func lookupAchievements(ctx context.Context, tx *repository.Store, slugs []string) ([]models.Achievement, error) {
	achievements := make([]models.Achievement, 0, len(slugs))
	for _, key := range slugs {
		a, err := tx.Achievements.GetBySlug(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to load achievement: %w", err)
		}
		if a == nil {
			return nil, errs.NotFound(op, "achievements", "achievement %q not found", key)
		}
		achievements = append(achievements, *a)
	}
	return achievements, nil
}

// resolveSlug returns the explicit slug, or one derived from the name.
func resolveSlug(explicit, name string) (string, error) {
	if explicit != "" {
		if !slug.IsSlug(explicit) {
			return "", errs.InvalidArgument(op, "slug", "%q is not a valid slug", explicit)
		}
		return explicit, nil
	}
	if strings.TrimSpace(name) == "" {
		return "", errs.InvalidArgument(op, "name", "a name or slug is required")
	}
	derived := slug.Make(name)
	if derived == "" {
		return "", errs.InvalidArgument(op, "name", "cannot derive a slug from %q", name)
	}
	return derived, nil
}

func nameOrSlug(name, key string) string {
	if name != "" {
		return name
	}
	return key
}

func encodeMeta(meta map[string]any) (json.RawMessage, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, &errs.Error{Op: op, Kind: errs.ErrInvalidArgument, Field: "meta", Message: "metadata cannot be encoded", Err: err}
	}
	return raw, nil
}

func duplicate(kind, key string) error {
	return errs.InvalidState(op, "slug", "%s %q already exists", kind, key)
}

func storeError(kind, key string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return duplicate(kind, key)
	}
	return fmt.Errorf("failed to create %s %q: %w", kind, key, err)
}
