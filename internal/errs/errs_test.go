package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesKind(t *testing.T) {
	err := NotFound("award", "metric", "metric %q not found", "combat-xp")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrInvalidState))
	assert.Equal(t, `award: metric "combat-xp" not found`, err.Error())
	assert.Equal(t, "metric", FieldOf(err))
}

func TestErrorSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("failed to award: %w", OptedOut("grant"))

	assert.True(t, errors.Is(wrapped, ErrOptedOut))
	assert.Equal(t, "opted_out", KindName(wrapped))
	assert.Equal(t, "recipient has opted out of gamification", MessageOf(wrapped))
}

func TestIsBusiness(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not found", NotFound("grant", "slug", "missing"), true},
		{"invalid state", InvalidState("award", "metric", "inactive"), true},
		{"already granted", AlreadyGranted("grant", "dup"), true},
		{"opted out", OptedOut("grant"), true},
		{"invalid argument", InvalidArgument("award", "amount", "must be positive"), false},
		{"infrastructure", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBusiness(tt.err))
		})
	}
}

func TestCauseIsExposed(t *testing.T) {
	cause := errors.New("disk full")
	err := &Error{Op: "grant", Kind: ErrInvalidState, Message: "cannot grant", Err: cause}

	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.Equal(t, "grant: cannot grant: disk full", err.Error())
	assert.Equal(t, "internal", KindName(cause))
}
