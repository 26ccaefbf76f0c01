// Package models defines the persisted entities of the gamification engine.
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Awardable identifies any entity that can receive XP, achievements or prizes.
// Type is a stable tag such as "user" or "team"; ID is the owner's identifier.
type Awardable struct {
	Type string `json:"type"`
	ID   uint   `json:"id"`
}

// NewAwardable creates an awardable reference.
func NewAwardable(kind string, id uint) Awardable {
	return Awardable{Type: kind, ID: id}
}

// IsZero reports whether the reference is missing its type or id.
func (a Awardable) IsZero() bool {
	return a.Type == "" || a.ID == 0
}

// String renders the reference as "type:id".
func (a Awardable) String() string {
	return fmt.Sprintf("%s:%d", a.Type, a.ID)
}

// ParseAwardable parses the "type:id" form produced by String.
func ParseAwardable(s string) (Awardable, error) {
	kind, rawID, ok := strings.Cut(s, ":")
	if !ok || kind == "" {
		return Awardable{}, fmt.Errorf("invalid awardable reference %q", s)
	}
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || id == 0 {
		return Awardable{}, fmt.Errorf("invalid awardable id in %q", s)
	}
	return Awardable{Type: kind, ID: uint(id)}, nil
}
