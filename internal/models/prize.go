package models

import (
	"encoding/json"
	"time"
)

// Prize is a repeatable reward, granted through the same builder as achievements.
type Prize struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Slug          string          `gorm:"uniqueIndex;not null;size:100" json:"slug"`
	Name          string          `gorm:"not null;size:255" json:"name"`
	Description   string          `gorm:"type:text" json:"description"`
	AwardableType string          `gorm:"size:100" json:"awardable_type,omitempty"`
	Active        bool            `gorm:"not null" json:"active"`
	Meta          json.RawMessage `gorm:"type:jsonb" json:"meta,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Prize model.
func (Prize) TableName() string {
	return "prizes"
}

// AllowsType reports whether the prize may be granted to the given awardable type.
func (p *Prize) AllowsType(awardableType string) bool {
	return p.AwardableType == "" || p.AwardableType == awardableType
}

// PrizeGrant records one delivery of a prize.
type PrizeGrant struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	PrizeID       uint            `gorm:"not null;index" json:"prize_id"`
	Prize         *Prize          `gorm:"foreignKey:PrizeID" json:"prize,omitempty"`
	AwardableType string          `gorm:"size:100;not null;index:idx_prize_grants_awardable" json:"awardable_type"`
	AwardableID   uint            `gorm:"not null;index:idx_prize_grants_awardable" json:"awardable_id"`
	ProfileID     uint            `gorm:"not null;index" json:"profile_id"`
	Reason        string          `gorm:"type:text" json:"reason,omitempty"`
	Source        string          `gorm:"size:255" json:"source,omitempty"`
	Meta          json.RawMessage `gorm:"type:jsonb" json:"meta,omitempty"`
	GrantedAt     time.Time       `gorm:"not null" json:"granted_at"`
}

// TableName specifies the table name for PrizeGrant model.
func (PrizeGrant) TableName() string {
	return "prize_grants"
}
