package engine

import (
	"context"

	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/errs"
	"github.com/Particle-Academy/laravel-fun-labs-sub000/internal/models"
)

// Operation names used by validators, events and metrics.
const (
	OpAward = "award"
	OpGrant = "grant"
)

// Check is what a validator sees before an award or grant touches any state.
type Check struct {
	Operation string
	Awardable models.Awardable
	Slug      string
	// Amount is zero for grants.
	Amount int64
	// Profile is nil when the awardable has never been seen.
	Profile *models.Profile
}

// Validator accepts a pending award or grant by returning nil, or rejects it
// with a reason. Unclassified errors are reported as invalid state.
type Validator func(ctx context.Context, c Check) error

func runValidators(ctx context.Context, validators []Validator, c Check) error {
	for _, v := range validators {
		err := v(ctx, c)
		if err == nil {
			continue
		}
		if errs.KindOf(err) == nil {
			return &errs.Error{Op: c.Operation, Kind: errs.ErrInvalidState, Field: "base", Message: err.Error(), Err: err}
		}
		return err
	}
	return nil
}

// MaxAmount rejects single XP awards above limit.
func MaxAmount(limit int64) Validator {
	return func(_ context.Context, c Check) error {
		if c.Operation == OpAward && c.Amount > limit {
			return errs.InvalidState(c.Operation, "amount", "amount %d exceeds the per-award limit of %d", c.Amount, limit)
		}
		return nil
	}
}

// RejectOptedOut refuses XP awards to opted-out recipients. Grants always
// refuse them regardless of this validator.
func RejectOptedOut() Validator {
	return func(_ context.Context, c Check) error {
		if c.Profile != nil && !c.Profile.OptIn {
			return errs.OptedOut(c.Operation)
		}
		return nil
	}
}

// AllowedTypes only accepts recipients of the listed awardable types.
func AllowedTypes(types ...string) Validator {
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	return func(_ context.Context, c Check) error {
		if !allowed[c.Awardable.Type] {
			return errs.InvalidState(c.Operation, "recipient", "awardable type %q is not accepted", c.Awardable.Type)
		}
		return nil
	}
}

// Reject builds a validator from a predicate; the award or grant is refused
// with message when pred returns true.
func Reject(pred func(c Check) bool, message string) Validator {
	return func(_ context.Context, c Check) error {
		if pred(c) {
			return errs.InvalidState(c.Operation, "base", "%s", message)
		}
		return nil
	}
}
