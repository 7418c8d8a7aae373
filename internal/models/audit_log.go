package models

// AuditLog records owner operations on settlements and moderation of comments.
type AuditLog struct {
	Base
	UserID       string                 `gorm:"type:uuid;index" json:"user_id"`
	Action       string                 `gorm:"not null" json:"action"`
	ResourceType string                 `gorm:"not null;index:idx_audit_logs_resource" json:"resource_type"`
	ResourceID   string                 `gorm:"type:uuid;index:idx_audit_logs_resource" json:"resource_id"`
	IPAddress    string                 `json:"ip_address"`
	Changes      map[string]interface{} `gorm:"type:jsonb;serializer:json" json:"changes,omitempty"`
}
