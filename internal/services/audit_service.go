package services

import (
	"settleup/internal/logger"
	"settleup/internal/models"

	"gorm.io/gorm"
)

// Audit actions.
const (
	AuditCreateSettlement     = "CREATE_SETTLEMENT"
	AuditSaveSheet            = "SAVE_SHEET"
	AuditCompleteSettlement   = "COMPLETE_SETTLEMENT"
	AuditReactivateSettlement = "REACTIVATE_SETTLEMENT"
	AuditDeleteSettlement     = "DELETE_SETTLEMENT"
	AuditDeleteComment        = "DELETE_COMMENT"
	AuditPinComment           = "PIN_COMMENT"
)

// Audited resource types.
const (
	ResourceSettlement = "settlement"
	ResourceComment    = "comment"
)

// auditService writes audit entries for owner and moderator actions.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records an audit event. A failed write is logged and swallowed so the
// audited request still succeeds.
func (s *auditService) Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{}) {
	entry := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      changes,
	}

	if err := s.db.Create(entry).Error; err != nil {
		logger.Get().Errorw("failed to create audit log entry",
			"error", err,
			"user_id", userID,
			"action", action,
			"resource", resourceType+"/"+resourceID,
		)
	}
}
