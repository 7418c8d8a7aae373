package services

import (
	"context"

	"settleup/internal/autosave"
	"settleup/internal/models"
	"settleup/internal/pagination"
	"settleup/internal/sheet"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, displayName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
}

// SettlementFilter holds optional filter parameters for listing settlements.
type SettlementFilter struct {
	// Search matches the title case-insensitively.
	Search string
	// Status restricts to active or archived settlements.
	Status string
	// Sort is one of latest (default), oldest or title.
	Sort string
}

// DraftStatus reports the autosave state of a settlement.
type DraftStatus struct {
	SettlementID string          `json:"settlement_id"`
	Status       autosave.Status `json:"status"`
	Error        string          `json:"error,omitempty"`
}

// ParticipantShare is one participant's line of a settlement summary.
type ParticipantShare struct {
	ParticipantID int    `json:"participant_id"`
	Name          string `json:"name"`
	// Amount is the share rounded up to the next currency unit.
	Amount int64 `json:"amount"`
	// Exact is the unrounded share as a decimal string.
	Exact string `json:"exact"`
	Paid  bool   `json:"paid"`
}

// ExpenseLine is one expense of a settlement summary.
type ExpenseLine struct {
	ExpenseID     int    `json:"expense_id"`
	ItemName      string `json:"item_name"`
	TotalCost     int64  `json:"total_cost"`
	AttendeeCount int    `json:"attendee_count"`
	CostPerPerson int64  `json:"cost_per_person"`
	Personal      bool   `json:"personal"`
}

// SettlementSummary is the computed breakdown of a settlement.
type SettlementSummary struct {
	SettlementID  string             `json:"settlement_id"`
	Title         string             `json:"title"`
	Status        string             `json:"status"`
	Participants  []ParticipantShare `json:"participants"`
	Expenses      []ExpenseLine      `json:"expenses"`
	TotalExpenses int64              `json:"total_expenses"`
	GrandTotal    int64              `json:"grand_total"`
	HasDeductions bool               `json:"has_deductions"`
	AllPaid       bool               `json:"all_paid"`
}

// SettlementServicer defines the contract for settlement-related business logic.
type SettlementServicer interface {
	CreateSettlement(userID, title string) (*models.Settlement, error)
	GetUserSettlements(userID string, page pagination.PageRequest, filter SettlementFilter) (*pagination.PageResponse[models.Settlement], error)
	GetSettlement(settlementID string) (*models.Settlement, error)
	SaveSheet(userID, settlementID string, data sheet.Sheet, expectedVersion *int64) (*models.Settlement, error)
	QueueDraft(userID, settlementID string, data sheet.Sheet) (*DraftStatus, error)
	GetDraftStatus(userID, settlementID string) (*DraftStatus, error)
	ApplyEdit(userID, settlementID string, edit sheet.Edit) (*models.Settlement, error)
	CompleteSettlement(userID, settlementID string, final *sheet.Sheet) (*models.Settlement, error)
	ReactivateSettlement(userID, settlementID string) (*models.Settlement, error)
	DeleteSettlement(userID, settlementID string) error
	GetSummary(settlementID string, participantID *int) (*SettlementSummary, error)
	FlushDrafts(ctx context.Context) error
}

// NewComment holds the fields of a comment being posted.
type NewComment struct {
	ParentCommentID *string
	Content         string
	ImageURLs       []string
	GuestName       string
	Password        string
}

// CommentNode is a comment with its visible replies.
type CommentNode struct {
	models.Comment
	Replies []*CommentNode `json:"replies"`
}

// CommentServicer defines the contract for comment-related business logic.
type CommentServicer interface {
	GetCommentTree(settlementID string) ([]*CommentNode, error)
	CreateUserComment(userID, settlementID string, in NewComment) (*models.Comment, error)
	CreateGuestComment(settlementID string, in NewComment) (*models.Comment, error)
	UpdateComment(userID, commentID, content string, imageURLs []string) (*models.Comment, error)
	UpdateGuestComment(commentID, password, content string, imageURLs []string) (*models.Comment, error)
	VerifyGuestPassword(commentID, password string) (bool, error)
	DeleteComment(userID, commentID string) error
	DeleteGuestComment(commentID, password string) error
	SetPinned(userID, commentID string, pinned bool) (*models.Comment, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
