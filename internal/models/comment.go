package models

// GuestNameOrganizer is the display name stored on comments written by a
// signed-in user.
const GuestNameOrganizer = "Organizer"

// MaxCommentImages is the number of image URLs a comment may carry.
const MaxCommentImages = 10

// Comment is a message on a settlement, optionally replying to another
// comment. A comment is either authored by a user (UserID set) or by a guest
// protected with a password.
type Comment struct {
	Base
	SettlementID    string   `gorm:"type:uuid;not null;index" json:"settlement_id"`
	ParentCommentID *string  `gorm:"type:uuid;index" json:"parent_comment_id"`
	Content         string   `gorm:"type:text;not null;default:''" json:"content"`
	ImageURLs       []string `gorm:"column:image_url;type:jsonb;serializer:json" json:"image_url"`
	UserID          *string  `gorm:"type:uuid;index" json:"user_id"`
	GuestName       string   `gorm:"not null" json:"guest_name"`
	PasswordHash    string   `json:"-"`
	IsDeleted       bool     `gorm:"not null;default:false" json:"is_deleted"`
	IsPinned        bool     `gorm:"not null;default:false" json:"is_pinned"`
}

// IsGuest reports whether the comment was written without an account.
func (c *Comment) IsGuest() bool {
	return c.UserID == nil
}
