package engine

import (
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/errs"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/progression"
)

// Result is the uniform outcome of an award or grant. Rule failures
// (not found, inactive, already granted, opted out, rejected by a validator)
// come back as a Result with Success false; caller mistakes and storage
// failures are returned as errors instead.
type Result struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
	// Kind is the failure kind ("not_found", "invalid_state", "already_granted", "opted_out").
	Kind string `json:"kind,omitempty"`
	// GrantKind is the strategy that handled a grant ("achievement", "prize", ...).
	GrantKind string `json:"grant_kind,omitempty"`

	Profile          *models.Profile          `json:"profile,omitempty"`
	ProfileMetric    *models.ProfileMetric    `json:"profile_metric,omitempty"`
	AchievementGrant *models.AchievementGrant `json:"achievement_grant,omitempty"`
	PrizeGrant       *models.PrizeGrant       `json:"prize_grant,omitempty"`
	Progression      *Progression             `json:"progression,omitempty"`

	err error
}

// Err returns the rule failure behind an unsuccessful result.
func (r *Result) Err() error {
	return r.err
}

// Progression summarizes what an award changed beyond the XP totals.
type Progression struct {
	Tracks  []progression.Track       `json:"tracks"`
	Raised  []progression.LevelRaise  `json:"raised,omitempty"`
	Granted []models.AchievementGrant `json:"granted,omitempty"`
}

// LevelsRaised reports whether any stored level moved.
func (p *Progression) LevelsRaised() bool {
	return p != nil && len(p.Raised) > 0
}

// Level returns the stored level after the award for the given track, or 0
// when the track was not evaluated.
func (p *Progression) Level(kind progression.TrackKind, slug string) int {
	if p == nil {
		return 0
	}
	for _, t := range p.Tracks {
		if t.Kind == kind && t.Slug == slug {
			return t.Evaluation.NewLevel
		}
	}
	return 0
}

func failed(err error) *Result {
	field := errs.FieldOf(err)
	if field == "" {
		field = "base"
	}
	message := errs.MessageOf(err)
	return &Result{
		Success: false,
		Message: message,
		Errors:  map[string][]string{field: {message}},
		Kind:    errs.KindName(err),
		err:     err,
	}
}
