package engine

import (
	"context"
	"fmt"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/errs"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/events"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/repository"
)

const resyncPageSize = 100

// ResyncReport summarizes the corrections applied to one or more profiles.
type ResyncReport struct {
	Profiles int `json:"profiles"`
	Raised   int `json:"levels_raised"`
	Granted  int `json:"achievements_granted"`
	XPFixed  int `json:"xp_totals_fixed"`
	Failed   int `json:"failed"`
}

func (r *ResyncReport) merge(other ResyncReport) {
	r.Profiles += other.Profiles
	r.Raised += other.Raised
	r.Granted += other.Granted
	r.XPFixed += other.XPFixed
	r.Failed += other.Failed
}

// Resync re-evaluates every ladder the awardable takes part in. Levels and
// achievements missed because thresholds changed after XP was recorded are
// applied, and a profile total that drifted from its metric rows is reset.
func (e *Engine) Resync(ctx context.Context, a models.Awardable) (*ResyncReport, error) {
	if a.IsZero() {
		return nil, errs.InvalidArgument("resync", "recipient", "a recipient is required")
	}

	profile, err := e.store.Profiles.FindByAwardable(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile == nil {
		return &ResyncReport{}, nil
	}
	report, err := e.resyncProfile(ctx, profile)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (e *Engine) resyncProfile(ctx context.Context, profile *models.Profile) (ResyncReport, error) {
	report := ResyncReport{Profiles: 1}
	batch := events.NewBatch()

	err := e.store.Transaction(ctx, func(tx *repository.Store) error {
		sum, err := tx.Progress.SumMetricXP(ctx, profile.ID)
		if err != nil {
			return fmt.Errorf("failed to sum metric xp: %w", err)
		}
		if sum != profile.TotalXP {
			if err := tx.Profiles.SetTotalXP(ctx, profile.ID, sum); err != nil {
				return fmt.Errorf("failed to fix profile xp: %w", err)
			}
			e.log.Warn().
				Uint("profile_id", profile.ID).
				Int64("stored", profile.TotalXP).
				Int64("computed", sum).
				Msg("Profile XP total drifted from metric rows")
			report.XPFixed++
		}

		rows, err := tx.Progress.ListMetrics(ctx, profile.ID)
		if err != nil {
			return fmt.Errorf("failed to load profile metrics: %w", err)
		}
		for i := range rows {
			pm := &rows[i]
			if pm.GamedMetric == nil {
				continue
			}
			prog, err := e.advance(ctx, tx, batch, profile, pm.GamedMetric, pm)
			if err != nil {
				return fmt.Errorf("failed to resync metric %q: %w", pm.GamedMetric.Slug, err)
			}
			report.Raised += len(prog.Raised)
			report.Granted += len(prog.Granted)
		}
		return nil
	})
	if err != nil {
		batch.Discard()
		return ResyncReport{}, err
	}

	batch.Flush(ctx, e.notifier)
	return report, nil
}

// ResyncAll walks every profile in ID order. A profile that fails is logged
// and counted; the walk continues until all profiles are visited or ctx is done.
func (e *Engine) ResyncAll(ctx context.Context) (*ResyncReport, error) {
	total := &ResyncReport{}
	var after uint

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		page, err := e.store.Profiles.ListAfter(ctx, after, resyncPageSize)
		if err != nil {
			return total, fmt.Errorf("failed to list profiles: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for i := range page {
			profile := &page[i]
			after = profile.ID

			report, err := e.resyncProfile(ctx, profile)
			if err != nil {
				e.log.Error().
					Err(err).
					Uint("profile_id", profile.ID).
					Msg("Failed to resync profile")
				total.Profiles++
				total.Failed++
				continue
			}
			total.merge(report)
		}
	}

	e.log.Info().
		Int("profiles", total.Profiles).
		Int("levels_raised", total.Raised).
		Int("achievements_granted", total.Granted).
		Int("xp_fixed", total.XPFixed).
		Int("failed", total.Failed).
		Msg("Progression resync completed")
	return total, nil
}
