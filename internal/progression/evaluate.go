package progression

import "github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"

// Evaluation is the outcome of comparing XP against a ladder.
type Evaluation struct {
	PreviousLevel int
	NewLevel      int
	XP            int64
	// Unlocked lists every rung above PreviousLevel whose threshold was met, in level order.
	Unlocked []Rung
}

// LevelReached reports whether the evaluation moves the stored level.
func (e Evaluation) LevelReached() bool {
	return e.NewLevel > e.PreviousLevel
}

// Evaluate finds every rung above currentLevel whose threshold is at most xp.
// The new level jumps straight to the highest such rung; the skipped rungs are
// still reported as unlocked so their achievements cascade.
func Evaluate(currentLevel int, xp int64, ladder []Rung) Evaluation {
	if currentLevel < models.InitialLevel {
		currentLevel = models.InitialLevel
	}

	eval := Evaluation{
		PreviousLevel: currentLevel,
		NewLevel:      currentLevel,
		XP:            xp,
	}
	for _, r := range sortLadder(append([]Rung(nil), ladder...)) {
		if r.Level <= currentLevel || r.Threshold > xp {
			continue
		}
		eval.Unlocked = append(eval.Unlocked, r)
		if r.Level > eval.NewLevel {
			eval.NewLevel = r.Level
		}
	}
	return eval
}

// weightScale matches the four decimal places weights are stored with.
const weightScale = 10000

// WeightedTotal sums each member's XP multiplied by its weight, truncating
// every member's contribution before the sum. Members without XP count as 0.
func WeightedTotal(members []models.MetricLevelGroupMetric, xpByMetric map[uint]int64) int64 {
	var total int64
	for _, m := range members {
		total += weighted(xpByMetric[m.GamedMetricID], m.Weight)
	}
	return total
}

func weighted(xp int64, weight float64) int64 {
	// Fixed-point keeps 0.29 * 100 at 29 instead of 28.999... truncated to 28.
	scaled := int64(weight*weightScale + 0.5)
	if weight < 0 {
		scaled = int64(weight*weightScale - 0.5)
	}
	// Split xp so the intermediate product cannot overflow int64.
	return xp/weightScale*scaled + xp%weightScale*scaled/weightScale
}
