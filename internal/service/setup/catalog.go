package setup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/errs"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/repository"
)

// Catalog is the YAML description of a whole game configuration.
type Catalog struct {
	Achievements []AchievementSpec `yaml:"achievements"`
	Prizes       []PrizeSpec       `yaml:"prizes"`
	Metrics      []CatalogMetric   `yaml:"metrics"`
	Groups       []CatalogGroup    `yaml:"groups"`
}

// CatalogMetric is a metric with its ladder inline.
type CatalogMetric struct {
	MetricSpec `yaml:",inline"`
	Levels     []LevelSpec `yaml:"levels"`
}

// CatalogGroup is a group with its ladder inline.
type CatalogGroup struct {
	GroupSpec `yaml:",inline"`
	Levels    []GroupLevelSpec `yaml:"levels"`
}

// SeedReport counts what Seed created and skipped.
type SeedReport struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// LoadCatalog reads a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return &c, nil
}

// Seed applies a catalog in one transaction. Entities whose slug (or, for
// levels, whose level number) already exists are skipped, so seeding the same
// catalog twice is a no-op. Achievements are created first so that levels can
// reference them.
func (s *Service) Seed(ctx context.Context, c *Catalog) (*SeedReport, error) {
	report := &SeedReport{}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		count := func(err error) error {
			switch {
			case err == nil:
				report.Created++
				return nil
			case errs.KindOf(err) == errs.ErrInvalidState && errs.FieldOf(err) == "slug":
				report.Skipped++
				return nil
			default:
				return err
			}
		}

		for _, spec := range c.Achievements {
			_, err := createAchievement(ctx, tx, spec)
			if err := count(err); err != nil {
				return err
			}
		}
		for _, spec := range c.Prizes {
			_, err := createPrize(ctx, tx, spec)
			if err := count(err); err != nil {
				return err
			}
		}

		for _, m := range c.Metrics {
			metric, err := createMetric(ctx, tx, m.MetricSpec)
			if err := count(err); err != nil {
				return err
			}
			key := m.Slug
			if metric != nil {
				key = metric.Slug
			} else if key == "" {
				if key, err = resolveSlug("", m.Name); err != nil {
					return err
				}
			}

			existing, err := s.metricLevels(ctx, tx, key)
			if err != nil {
				return err
			}
			for _, spec := range m.Levels {
				if existing[spec.Level] {
					report.Skipped++
					continue
				}
				spec.Metric = key
				if _, err := createMetricLevel(ctx, tx, spec); err != nil {
					return err
				}
				report.Created++
			}
		}

		for _, g := range c.Groups {
			group, err := createGroup(ctx, tx, g.GroupSpec)
			if err := count(err); err != nil {
				return err
			}
			key := g.Slug
			if group != nil {
				key = group.Slug
			} else if key == "" {
				if key, err = resolveSlug("", g.Name); err != nil {
					return err
				}
			}

			existing, err := s.groupLevels(ctx, tx, key)
			if err != nil {
				return err
			}
			for _, spec := range g.Levels {
				if existing[spec.Level] {
					report.Skipped++
					continue
				}
				spec.Group = key
				if _, err := createGroupLevel(ctx, tx, spec); err != nil {
					return err
				}
				report.Created++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int("created", report.Created).
		Int("skipped", report.Skipped).
		Msg("Catalog seeded")
	return report, nil
}

func (s *Service) metricLevels(ctx context.Context, tx *repository.Store, key string) (map[int]bool, error) {
	metric, err := tx.Metrics.GetBySlug(ctx, key)
	if err != nil || metric == nil {
		return nil, err
	}
	levels, err := tx.Metrics.GetLevels(ctx, metric.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load metric levels: %w", err)
	}
	existing := make(map[int]bool, len(levels))
	for _, l := range levels {
		existing[l.Level] = true
	}
	return existing, nil
}

func (s *Service) groupLevels(ctx context.Context, tx *repository.Store, key string) (map[int]bool, error) {
	group, err := tx.Groups.GetBySlug(ctx, key)
	if err != nil || group == nil {
		return nil, err
	}
	levels, err := tx.Groups.GetLevels(ctx, group.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load group levels: %w", err)
	}
	existing := make(map[int]bool, len(levels))
	for _, l := range levels {
		existing[l.Level] = true
	}
	return existing, nil
}
