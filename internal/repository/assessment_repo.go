package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/arketa-lab/gradeflow-api/internal/models"
)

// AssessmentRepository defines data operations for automated assessments.
type AssessmentRepository interface {
	GetByID(ctx context.Context, id uint) (models.AutoAssessment, error)
	GetBySolutionAndModel(ctx context.Context, solutionID uint, model string) (models.AutoAssessment, error)
	ListBySolution(ctx context.Context, solutionID uint) ([]models.AutoAssessment, error)
	Create(ctx context.Context, assessment *models.AutoAssessment) error
}

type assessmentRepository struct {
	db *gorm.DB
}

// NewAssessmentRepository instantiates the repository.
func NewAssessmentRepository(db *gorm.DB) AssessmentRepository {
	return &assessmentRepository{db: db}
}

func (r *assessmentRepository) GetByID(ctx context.Context, id uint) (models.AutoAssessment, error) {
	var assessment models.AutoAssessment
	if err := r.db.WithContext(ctx).First(&assessment, id).Error; err != nil {
		return models.AutoAssessment{}, err
	}
	return assessment, nil
}

func (r *assessmentRepository) GetBySolutionAndModel(ctx context.Context, solutionID uint, model string) (models.AutoAssessment, error) {
	var assessment models.AutoAssessment
	if err := r.db.WithContext(ctx).
		Where("solution_id = ?", solutionID).
		Where("model = ?", model).
		First(&assessment).Error; err != nil {
		return models.AutoAssessment{}, err
	}
	return assessment, nil
}

func (r *assessmentRepository) ListBySolution(ctx context.Context, solutionID uint) ([]models.AutoAssessment, error) {
	var assessments []models.AutoAssessment
	if err := r.db.WithContext(ctx).
		Where("solution_id = ?", solutionID).
		Order("created_at DESC").
		Find(&assessments).Error; err != nil {
		return nil, err
	}
	return assessments, nil
}

func (r *assessmentRepository) Create(ctx context.Context, assessment *models.AutoAssessment) error {
	return r.db.WithContext(ctx).Create(assessment).Error
}
