package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/arketa-lab/gradeflow-api/internal/dto"
	"github.com/arketa-lab/gradeflow-api/internal/models"
	"github.com/arketa-lab/gradeflow-api/internal/repository"
)

// ActivityActor represents the authenticated actor performing an action.
// A zero ID denotes the automated evaluator.
type ActivityActor struct {
	ID   uint
	Role string
}

// ActivityEntry captures the details required to persist an audit entry.
type ActivityEntry struct {
	ActorID      uint
	ActorRole    string
	Action       string
	ResourceType string
	ResourceID   *uint
	Outcome      string
	Metadata     map[string]interface{}
}

// ActivityRecorder defines behaviour for recording audit events.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error)
}

// ActivityService exposes methods to query and persist audit events. Events
// are additionally published to NATS for external audit consumers.
type ActivityService interface {
	ActivityRecorder
	List(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
}

type activityService struct {
	repo        repository.ActivityLogRepository
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
}

type auditEvent struct {
	ActorID      uint                   `json:"actor_id"`
	ActorRole    string                 `json:"actor_role"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   *uint                  `json:"resource_id"`
	Outcome      string                 `json:"outcome"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	EmittedAt    time.Time              `json:"emitted_at"`
}

// NewActivityService constructs the audit service. The NATS connection is
// optional; without it events are only persisted locally.
func NewActivityService(repo repository.ActivityLogRepository, natsConn *nats.Conn, subjectBase string, validate *validator.Validate, logger zerolog.Logger) ActivityService {
	subject := ""
	if subjectBase != "" {
		subject = strings.ReplaceAll(subjectBase, ":", ".") + ".audit"
	}

	return &activityService{
		repo:        repo,
		nats:        natsConn,
		natsSubject: subject,
		validator:   validate,
		logger:      logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	if strings.TrimSpace(entry.Action) == "" {
		return dto.ActivityResponse{}, fmt.Errorf("action is required")
	}
	if strings.TrimSpace(entry.ResourceType) == "" {
		return dto.ActivityResponse{}, fmt.Errorf("resource type is required")
	}

	outcome := entry.Outcome
	if outcome == "" {
		outcome = models.ActivityOutcomeSuccess
	}

	model := models.ActivityLog{
		ActorID:      entry.ActorID,
		ActorRole:    normalizeRole(entry.ActorRole),
		Action:       strings.ToLower(strings.TrimSpace(entry.Action)),
		ResourceType: strings.ToLower(strings.TrimSpace(entry.ResourceType)),
		ResourceID:   entry.ResourceID,
		Outcome:      outcome,
		Metadata:     datatypes.JSONMap(sanitizeMetadata(entry.Metadata)),
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist audit entry")
		return dto.ActivityResponse{}, err
	}

	s.publish(model)

	return dto.NewActivityResponse(model), nil
}

func (s *activityService) publish(model models.ActivityLog) {
	if s.nats == nil || s.natsSubject == "" {
		return
	}

	payload, err := json.Marshal(auditEvent{
		ActorID:      model.ActorID,
		ActorRole:    model.ActorRole,
		Action:       model.Action,
		ResourceType: model.ResourceType,
		ResourceID:   model.ResourceID,
		Outcome:      model.Outcome,
		Metadata:     model.Metadata,
		EmittedAt:    time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode audit event")
		return
	}

	if err := s.nats.Publish(s.natsSubject, payload); err != nil {
		s.logger.Warn().Err(err).Str("subject", s.natsSubject).Msg("failed to publish audit event")
	}
}

func (s *activityService) List(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ActivityListResponse{}, err
	}

	filter := repository.ActivityLogFilter{
		Page:         req.Page,
		PageSize:     req.PageSize,
		Action:       strings.TrimSpace(req.Action),
		ResourceType: strings.TrimSpace(req.ResourceType),
	}
	if req.ActorID > 0 {
		filter.ActorID = &req.ActorID
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.ActivityListResponse{}, err
	}

	responses := make([]dto.ActivityResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, dto.NewActivityResponse(entry))
	}

	pagination := dto.PaginationMeta{
		Page:       maxInt(req.Page, 1),
		PageSize:   req.PageSize,
		TotalItems: total,
	}
	if req.PageSize > 0 {
		pagination.TotalPages = int((total + int64(req.PageSize) - 1) / int64(req.PageSize))
	}

	return dto.ActivityListResponse{Items: responses, Pagination: pagination}, nil
}
