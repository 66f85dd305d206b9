package dto

import (
	"time"

	"github.com/arketa-lab/gradeflow-api/internal/models"
)

// ActivityListRequest filters the audit log listing endpoint.
type ActivityListRequest struct {
	Page         int    `query:"page" validate:"omitempty,gte=1"`
	PageSize     int    `query:"page_size" validate:"omitempty,gte=1,lte=100"`
	ActorID      uint   `query:"actor_id"`
	Action       string `query:"action"`
	ResourceType string `query:"resource_type"`
}

// ActivityResponse serializes one audit log entry.
type ActivityResponse struct {
	ID           uint                   `json:"id"`
	ActorID      uint                   `json:"actor_id"`
	ActorRole    string                 `json:"actor_role"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   *uint                  `json:"resource_id"`
	Outcome      string                 `json:"outcome"`
	Metadata     map[string]interface{} `json:"metadata"`
	CreatedAt    time.Time              `json:"created_at"`
}

// ActivityListResponse wraps a paginated audit log listing.
type ActivityListResponse struct {
	Items      []ActivityResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

// NewActivityResponse converts an ActivityLog model into a DTO.
func NewActivityResponse(model models.ActivityLog) ActivityResponse {
	return ActivityResponse{
		ID:           model.ID,
		ActorID:      model.ActorID,
		ActorRole:    model.ActorRole,
		Action:       model.Action,
		ResourceType: model.ResourceType,
		ResourceID:   model.ResourceID,
		Outcome:      model.Outcome,
		Metadata:     model.Metadata,
		CreatedAt:    model.CreatedAt,
	}
}
