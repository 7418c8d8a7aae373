package models

import "time"

// User is an account that owns settlements. Guests who comment without
// signing in have no User row.
type User struct {
	Base
	Email       string       `gorm:"uniqueIndex;not null" json:"email"`
	Password    string       `gorm:"not null" json:"-"`
	DisplayName string       `json:"display_name"`
	LastLoginAt *time.Time   `json:"last_login_at,omitempty"`
	Settlements []Settlement `gorm:"foreignKey:OwnerID" json:"settlements,omitempty"`
}
