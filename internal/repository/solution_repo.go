package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/arketa-lab/gradeflow-api/internal/models"
)

// SolutionFilter narrows solution queries.
type SolutionFilter struct {
	TaskID   *uint
	AuthorID *uint
	SourceID string
	Status   *string
}

// SolutionRepository defines data operations for solutions.
type SolutionRepository interface {
	List(ctx context.Context, filter SolutionFilter) ([]models.Solution, error)
	ListIDs(ctx context.Context, filter SolutionFilter) ([]uint, error)
	GetByID(ctx context.Context, id uint) (models.Solution, error)
	Create(ctx context.Context, solution *models.Solution) error
	Update(ctx context.Context, solution *models.Solution) error
	UpdateStatus(ctx context.Context, id uint, status string) error
}

type solutionRepository struct {
	db *gorm.DB
}

// NewSolutionRepository instantiates the repository.
func NewSolutionRepository(db *gorm.DB) SolutionRepository {
	return &solutionRepository{db: db}
}

func (r *solutionRepository) applyFilter(query *gorm.DB, filter SolutionFilter) *gorm.DB {
	if filter.TaskID != nil {
		query = query.Where("task_id = ?", *filter.TaskID)
	}
	if filter.AuthorID != nil {
		query = query.Where("author_id = ?", *filter.AuthorID)
	}
	if filter.SourceID != "" {
		query = query.Where("source_id = ?", filter.SourceID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

func (r *solutionRepository) List(ctx context.Context, filter SolutionFilter) ([]models.Solution, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.Solution{}), filter)

	var solutions []models.Solution
	if err := query.Order("created_at DESC").Find(&solutions).Error; err != nil {
		return nil, err
	}
	return solutions, nil
}

func (r *solutionRepository) ListIDs(ctx context.Context, filter SolutionFilter) ([]uint, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.Solution{}), filter)

	var ids []uint
	if err := query.Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *solutionRepository) GetByID(ctx context.Context, id uint) (models.Solution, error) {
	var solution models.Solution
	if err := r.db.WithContext(ctx).First(&solution, id).Error; err != nil {
		return models.Solution{}, err
	}
	return solution, nil
}

func (r *solutionRepository) Create(ctx context.Context, solution *models.Solution) error {
	return r.db.WithContext(ctx).Create(solution).Error
}

func (r *solutionRepository) Update(ctx context.Context, solution *models.Solution) error {
	return r.db.WithContext(ctx).Save(solution).Error
}

func (r *solutionRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).Model(&models.Solution{}).
		Where("id = ?", id).
		Update("status", status).Error
}
