// Package progression holds the storage-free level evaluation pipeline:
// evaluate ladders against XP, aggregate weighted group XP, and plan the
// level raises and achievement grants that an award produces.
package progression

import (
	"fmt"
	"sort"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
)

// Rung is one level of a ladder, metric or group alike.
type Rung struct {
	LevelID      uint
	Level        int
	Threshold    int64
	Name         string
	Achievements []models.Achievement
}

// MetricLadder converts metric level rows into a ladder ordered by level.
func MetricLadder(levels []models.MetricLevel) []Rung {
	ladder := make([]Rung, 0, len(levels))
	for _, l := range levels {
		ladder = append(ladder, Rung{
			LevelID:      l.ID,
			Level:        l.Level,
			Threshold:    l.XPThreshold,
			Name:         l.Name,
			Achievements: l.Achievements,
		})
	}
	return sortLadder(ladder)
}

// GroupLadder converts group level rows into a ladder ordered by level.
func GroupLadder(levels []models.MetricLevelGroupLevel) []Rung {
	ladder := make([]Rung, 0, len(levels))
	for _, l := range levels {
		ladder = append(ladder, Rung{
			LevelID:      l.ID,
			Level:        l.Level,
			Threshold:    l.XPThreshold,
			Name:         l.Name,
			Achievements: l.Achievements,
		})
	}
	return sortLadder(ladder)
}

func sortLadder(ladder []Rung) []Rung {
	sort.SliceStable(ladder, func(i, j int) bool { return ladder[i].Level < ladder[j].Level })
	return ladder
}

// ValidateLadder checks that levels are positive and unique and that
// thresholds strictly increase with the level number.
func ValidateLadder(ladder []Rung) error {
	sorted := sortLadder(append([]Rung(nil), ladder...))
	for i, r := range sorted {
		if r.Level < models.InitialLevel {
			return fmt.Errorf("level %d is below the initial level %d", r.Level, models.InitialLevel)
		}
		if r.Threshold < 0 {
			return fmt.Errorf("level %d has a negative threshold", r.Level)
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if r.Level == prev.Level {
			return fmt.Errorf("level %d is defined twice", r.Level)
		}
		if r.Threshold <= prev.Threshold {
			return fmt.Errorf("level %d threshold %d must exceed level %d threshold %d",
				r.Level, r.Threshold, prev.Level, prev.Threshold)
		}
	}
	return nil
}

// Reached reports whether xp satisfies the threshold of the given level.
// The initial level is always reached; a level missing from the ladder never is.
func Reached(level int, xp int64, ladder []Rung) bool {
	if level <= models.InitialLevel {
		return true
	}
	for _, r := range ladder {
		if r.Level == level {
			return xp >= r.Threshold
		}
	}
	return false
}
