package models

import "time"

// JoinCode is a signup invite. Codes are 7 characters from A-Z0-9, carry
// the role the new account will receive and disappear once exhausted.
type JoinCode struct {
	Code      string     `gorm:"primaryKey;type:varchar(7)" json:"code"`
	Role      Role       `gorm:"type:varchar(10);not null" json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
	CreatedBy *uint      `json:"createdBy,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	MaxUses   int        `gorm:"default:1" json:"maxUses"`
	UsedCount int        `gorm:"default:0" json:"usedCount"`
}

// TableName specifies the table name for the JoinCode model.
func (JoinCode) TableName() string {
	return "join_codes"
}

// JoinCodeLength is the normalized length of a join code.
const JoinCodeLength = 7

// Exhausted reports whether the code has no uses left.
func (c *JoinCode) Exhausted() bool {
	return c.UsedCount >= c.MaxUses
}

// Expired reports whether the code has an expiry in the past.
func (c *JoinCode) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}
