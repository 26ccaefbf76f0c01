package progression

import "github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"

// TrackKind distinguishes the two ladder owners.
type TrackKind string

const (
	TrackMetric TrackKind = "metric"
	TrackGroup  TrackKind = "group"
)

// Track is the evaluation of one ladder for one profile.
type Track struct {
	Kind TrackKind
	// OwnerID is the GamedMetric or MetricLevelGroup ID.
	OwnerID uint
	Slug    string
	// ProgressID is the ProfileMetric or ProfileMetricGroup row holding the stored level.
	ProgressID uint
	Evaluation Evaluation
}

// LevelRaise stores a higher level on a progress row.
type LevelRaise struct {
	Kind       TrackKind
	Slug       string
	ProgressID uint
	From       int
	To         int
	Rung       Rung
}

// GrantEffect auto-grants an achievement unlocked by a rung.
type GrantEffect struct {
	Achievement models.Achievement
	Kind        TrackKind
	Slug        string
	Level       int
}

// Plan lists the effects an award produces, in application order.
type Plan struct {
	Raises []LevelRaise
	Grants []GrantEffect
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool {
	return len(p.Raises) == 0 && len(p.Grants) == 0
}

// BuildPlan turns evaluations into effects. Achievements are granted in track
// then level order, skipping inactive ones, ones restricted to another
// awardable type, ones already held, and repeats across tracks.
func BuildPlan(awardableType string, held map[uint]bool, tracks ...Track) Plan {
	var plan Plan
	seen := make(map[uint]bool, len(held))
	for id, ok := range held {
		if ok {
			seen[id] = true
		}
	}

	for _, t := range tracks {
		ev := t.Evaluation
		if !ev.LevelReached() {
			continue
		}

		top := ev.Unlocked[len(ev.Unlocked)-1]
		plan.Raises = append(plan.Raises, LevelRaise{
			Kind:       t.Kind,
			Slug:       t.Slug,
			ProgressID: t.ProgressID,
			From:       ev.PreviousLevel,
			To:         ev.NewLevel,
			Rung:       top,
		})

		for _, rung := range ev.Unlocked {
			for _, a := range rung.Achievements {
				if !a.Active || !a.AllowsType(awardableType) || seen[a.ID] {
					continue
				}
				seen[a.ID] = true
				plan.Grants = append(plan.Grants, GrantEffect{
					Achievement: a,
					Kind:        t.Kind,
					Slug:        t.Slug,
					Level:       rung.Level,
				})
			}
		}
	}
	return plan
}
