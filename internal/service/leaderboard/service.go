// Package leaderboard provides XP rankings backed by a Redis sorted set.
package leaderboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/cache"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/config"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/events"
	prommetrics "github.com/Particle-Academy/laravel-fun-labs-sub000/internal/metrics"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/repository"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/pkg/logger"
)

const rebuildPageSize = 500

// Sources reported in a Board.
const (
	SourceCache    = "cache"
	SourceDatabase = "database"
)

// SortedSet interface for ranking storage.
type SortedSet interface {
	RaiseScore(ctx context.Context, key, member string, score float64) error
	Remove(ctx context.Context, key string, members ...string) error
	Top(ctx context.Context, key string, limit int) ([]cache.Member, error)
	Rank(ctx context.Context, key, member string) (int64, float64, error)
	Size(ctx context.Context, key string) (int64, error)
	Replace(ctx context.Context, key string, members []cache.Member) error
}

// ProfileRepository interface for profile lookups.
type ProfileRepository interface {
	FindByAwardable(ctx context.Context, a models.Awardable) (*models.Profile, error)
	ListTopByTotalXP(ctx context.Context, limit int) ([]models.Profile, error)
	ListAfter(ctx context.Context, afterID uint, limit int) ([]models.Profile, error)
	CountRankedAbove(ctx context.Context, totalXP int64, id uint) (int64, error)
}

// Entry represents a single entry in a leaderboard.
type Entry struct {
	Rank      int              `json:"rank"`
	Awardable models.Awardable `json:"awardable"`
	TotalXP   int64            `json:"total_xp"`
}

// Board is a ranked list together with where it was read from.
type Board struct {
	Entries []Entry `json:"entries"`
	Source  string  `json:"source"`
}

// Service maintains and serves the total XP leaderboard.
type Service struct {
	cache    SortedSet
	profiles ProfileRepository
	cfg      config.LeaderboardConfig
	log      *logger.Logger
}

// NewService creates a new leaderboard service with concrete dependencies.
// A nil cache serves every read from the database.
func NewService(
	c *cache.Cache,
	profiles *repository.ProfileRepository,
	cfg config.LeaderboardConfig,
	log *logger.Logger,
) *Service {
	var set SortedSet
	if c != nil {
		set = c
	}
	return NewServiceWithInterfaces(set, profiles, cfg, log)
}

// NewServiceWithInterfaces creates a new leaderboard service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	set SortedSet,
	profiles ProfileRepository,
	cfg config.LeaderboardConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		cache:    set,
		profiles: profiles,
		cfg:      cfg,
		log:      log.Component("leaderboard"),
	}
}

// Notify implements events.Notifier. The cached score follows the profile
// total carried by XPAwarded and never moves backwards. Awards to opted-out
// recipients are not ranked.
func (s *Service) Notify(ctx context.Context, event events.Event) {
	awarded, ok := event.(events.XPAwarded)
	if !ok || awarded.OptedOut || s.cache == nil {
		return
	}
	member := awarded.Awardable.String()
	if err := s.cache.RaiseScore(ctx, s.cfg.Key, member, float64(awarded.ProfileTotal)); err != nil {
		s.log.Warn().
			Err(err).
			Str("member", member).
			Msg("Failed to update cached leaderboard")
	}
}

// Exclude removes an awardable from the cached ranking, e.g. after it opted out.
func (s *Service) Exclude(ctx context.Context, a models.Awardable) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Remove(ctx, s.cfg.Key, a.String()); err != nil {
		return fmt.Errorf("failed to remove %s from leaderboard: %w", a, err)
	}
	return nil
}

// Include ranks an awardable at its current total, e.g. after it opted back in.
func (s *Service) Include(ctx context.Context, a models.Awardable, totalXP int64) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.RaiseScore(ctx, s.cfg.Key, a.String(), float64(totalXP)); err != nil {
		return fmt.Errorf("failed to add %s to leaderboard: %w", a, err)
	}
	return nil
}

// Top returns the best ranked profiles. The cache answers when it holds any
// entries; otherwise, or when Redis fails, the database is queried.
func (s *Service) Top(ctx context.Context, limit int) (*Board, error) {
	limit = s.clamp(limit)

	if s.cache != nil {
		board, err := s.topFromCache(ctx, limit)
		if err == nil && board != nil {
			return board, nil
		}
		if err != nil {
			s.log.Warn().Err(err).Msg("Cached leaderboard unavailable, falling back to database")
		}
	}

	profiles, err := s.profiles.ListTopByTotalXP(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list top profiles: %w", err)
	}
	entries := make([]Entry, 0, len(profiles))
	for i := range profiles {
		entries = append(entries, Entry{
			Rank:      i + 1,
			Awardable: profiles[i].Awardable(),
			TotalXP:   profiles[i].TotalXP,
		})
	}
	return &Board{Entries: entries, Source: SourceDatabase}, nil
}

func (s *Service) topFromCache(ctx context.Context, limit int) (*Board, error) {
	size, err := s.cache.Size(ctx, s.cfg.Key)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}

	members, err := s.cache.Top(ctx, s.cfg.Key, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(members))
	for _, m := range members {
		a, err := models.ParseAwardable(m.Name)
		if err != nil {
			s.log.Warn().Str("member", m.Name).Msg("Skipping malformed leaderboard member")
			continue
		}
		entries = append(entries, Entry{
			Rank:      len(entries) + 1,
			Awardable: a,
			TotalXP:   int64(m.Score),
		})
	}
	return &Board{Entries: entries, Source: SourceCache}, nil
}

// Rank returns the position of an awardable, or nil when it is not ranked.
func (s *Service) Rank(ctx context.Context, a models.Awardable) (*Entry, error) {
	if s.cache != nil {
		rank, score, err := s.cache.Rank(ctx, s.cfg.Key, a.String())
		switch {
		case err == nil:
			return &Entry{Rank: int(rank) + 1, Awardable: a, TotalXP: int64(score)}, nil
		case !errors.Is(err, cache.ErrMiss):
			s.log.Warn().Err(err).Str("member", a.String()).Msg("Cached rank unavailable, falling back to database")
		}
	}

	profile, err := s.profiles.FindByAwardable(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile == nil || !profile.OptIn {
		return nil, nil
	}
	above, err := s.profiles.CountRankedAbove(ctx, profile.TotalXP, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to rank profile: %w", err)
	}
	return &Entry{Rank: int(above) + 1, Awardable: a, TotalXP: profile.TotalXP}, nil
}

// Rebuild replaces the cached ranking with every opted-in profile.
func (s *Service) Rebuild(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, nil
	}

	var members []cache.Member
	var after uint
	for {
		page, err := s.profiles.ListAfter(ctx, after, rebuildPageSize)
		if err != nil {
			return 0, fmt.Errorf("failed to list profiles: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for i := range page {
			after = page[i].ID
			if !page[i].OptIn {
				continue
			}
			members = append(members, cache.Member{
				Name:  page[i].Awardable().String(),
				Score: float64(page[i].TotalXP),
			})
		}
	}

	if err := s.cache.Replace(ctx, s.cfg.Key, members); err != nil {
		return 0, fmt.Errorf("failed to replace cached leaderboard: %w", err)
	}
	prommetrics.SetLeaderboardSize(int64(len(members)))

	s.log.Info().Int("entries", len(members)).Msg("Leaderboard rebuilt")
	return len(members), nil
}

func (s *Service) clamp(limit int) int {
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if s.cfg.MaxLimit > 0 && limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}
	return limit
}
