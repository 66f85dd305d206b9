package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog captures auditable events emitted by the assessment pipeline
// and the review approval workflow. The actor is zero for automated actions.
type ActivityLog struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	ActorID      uint              `json:"actor_id"`
	ActorRole    string            `gorm:"size:32" json:"actor_role"`
	Action       string            `gorm:"size:64;not null" json:"action"`
	ResourceType string            `gorm:"size:64;not null" json:"resource_type"`
	ResourceID   *uint             `json:"resource_id"`
	Outcome      string            `gorm:"size:32;not null" json:"outcome"`
	Metadata     datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt    time.Time         `json:"created_at"`
}

const (
	// ActivityOutcomeSuccess marks an action that completed normally.
	ActivityOutcomeSuccess = "success"
	// ActivityOutcomeFailure marks an action that was attempted but failed.
	ActivityOutcomeFailure = "failure"
)
