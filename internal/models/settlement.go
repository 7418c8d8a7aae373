package models

import "settleup/internal/sheet"

// Settlement statuses.
const (
	SettlementStatusActive   = "active"
	SettlementStatusArchived = "archived"
	SettlementStatusDeleted  = "deleted"
)

// Settlement is one expense sheet. The sheet is stored whole as a JSON
// document; Title is copied out of it so listings can search and sort.
type Settlement struct {
	Base
	OwnerID string      `gorm:"type:uuid;not null;index" json:"owner_id"`
	Title   string      `gorm:"not null;index" json:"title"`
	Status  string      `gorm:"not null;default:active;index" json:"status"`
	Version int64       `gorm:"not null;default:1" json:"version"`
	Data    sheet.Sheet `gorm:"type:jsonb;serializer:json;not null" json:"data"`
}

// IsArchived reports whether the settlement has been completed.
func (s *Settlement) IsArchived() bool {
	return s.Status == SettlementStatusArchived
}
