// Package models - audit_log.go defines the AuditLog model. Audit rows are append-only:
// the admin username is denormalized at write time so a record stays meaningful after
// the administrator is renamed or removed, and entity/admin ids are weak references.
package models

import "time"

// AuditAction is what an administrator did.
type AuditAction string

const (
	ActionApprove AuditAction = "approve"
	ActionReject  AuditAction = "reject"
	ActionDelete  AuditAction = "delete"
	ActionCreate  AuditAction = "create"
	ActionUpdate  AuditAction = "update"
	ActionLogin   AuditAction = "login"
	ActionLogout  AuditAction = "logout"
	ActionExport  AuditAction = "export"
)

// Valid reports whether a is a known audit action.
func (a AuditAction) Valid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionDelete, ActionCreate, ActionUpdate,
		ActionLogin, ActionLogout, ActionExport:
		return true
	}
	return false
}

// EntityType is the kind of thing an audit record refers to.
type EntityType string

const (
	EntityFeedback EntityType = "feedback"
	EntityAdmin    EntityType = "admin"
	EntitySystem   EntityType = "system"
)

// Valid reports whether e is a known entity type.
func (e EntityType) Valid() bool {
	switch e {
	case EntityFeedback, EntityAdmin, EntitySystem:
		return true
	}
	return false
}

// AuditLog is one immutable audit record.
type AuditLog struct {
	ID            string                 `json:"id"`
	Action        AuditAction            `json:"action"`
	EntityType    EntityType             `json:"entityType"`
	EntityID      *string                `json:"entityId,omitempty"` // nil for bulk/export actions
	AdminID       string                 `json:"adminId"`
	AdminUsername string                 `json:"adminUsername"`
	Details       map[string]interface{} `json:"details,omitempty"` // JSONB
	IPAddress     *string                `json:"ipAddress,omitempty"`
	UserAgent     *string                `json:"userAgent,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
}
