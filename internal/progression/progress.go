package progression

import "math"

// LevelProgress describes how far a profile is through its current level.
type LevelProgress struct {
	CurrentLevel     int
	XP               int64
	CurrentThreshold int64
	NextLevel        *int
	NextThreshold    *int64
	// ProgressPercent is 0-100 towards the next level; 100 at the top of the ladder.
	ProgressPercent float64
}

// MaxLevel reports whether no rung exists above the current level.
func (p LevelProgress) MaxLevel() bool {
	return p.NextLevel == nil
}

// Progress reports the stored level against the live XP total.
func Progress(storedLevel int, xp int64, ladder []Rung) LevelProgress {
	p := LevelProgress{CurrentLevel: storedLevel, XP: xp}

	for _, r := range sortLadder(append([]Rung(nil), ladder...)) {
		if r.Level == storedLevel {
			p.CurrentThreshold = r.Threshold
		}
		if r.Level > storedLevel && p.NextLevel == nil {
			level, threshold := r.Level, r.Threshold
			p.NextLevel = &level
			p.NextThreshold = &threshold
		}
	}

	if p.NextThreshold == nil {
		p.ProgressPercent = 100
		return p
	}

	span := *p.NextThreshold - p.CurrentThreshold
	if span <= 0 {
		if xp >= *p.NextThreshold {
			p.ProgressPercent = 100
		}
		return p
	}

	pct := float64(xp-p.CurrentThreshold) / float64(span) * 100
	p.ProgressPercent = math.Round(math.Max(0, math.Min(100, pct))*100) / 100
	return p
}
