package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/arketa-lab/gradeflow-api/internal/models"
)

// ReviewFilter narrows review queries.
type ReviewFilter struct {
	SolutionID *uint
	ReviewerID *uint
	Source     string
}

// ReviewRepository defines data operations for reviews.
type ReviewRepository interface {
	List(ctx context.Context, filter ReviewFilter) ([]models.Review, error)
	GetByID(ctx context.Context, id uint) (models.Review, error)
	GetBySolution(ctx context.Context, solutionID uint) (models.Review, error)
	Create(ctx context.Context, review *models.Review) error
	Update(ctx context.Context, review *models.Review) error
	ReplaceScores(ctx context.Context, reviewID uint, scores []models.ReviewCriterionScore) error
	Delete(ctx context.Context, id uint) error
}

type reviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository instantiates the repository.
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Review{}).
		Preload("Scores", func(db *gorm.DB) *gorm.DB {
			return db.Order("criterion_id ASC")
		})
}

func (r *reviewRepository) List(ctx context.Context, filter ReviewFilter) ([]models.Review, error) {
	query := r.baseQuery(ctx)

	if filter.SolutionID != nil {
		query = query.Where("solution_id = ?", *filter.SolutionID)
	}
	if filter.ReviewerID != nil {
		query = query.Where("reviewer_id = ?", *filter.ReviewerID)
	}
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}

	var reviews []models.Review
	if err := query.Order("created_at DESC").Find(&reviews).Error; err != nil {
		return nil, err
	}
	return reviews, nil
}

func (r *reviewRepository) GetByID(ctx context.Context, id uint) (models.Review, error) {
	var review models.Review
	if err := r.baseQuery(ctx).First(&review, id).Error; err != nil {
		return models.Review{}, err
	}
	return review, nil
}

func (r *reviewRepository) GetBySolution(ctx context.Context, solutionID uint) (models.Review, error) {
	var review models.Review
	if err := r.baseQuery(ctx).Where("solution_id = ?", solutionID).First(&review).Error; err != nil {
		return models.Review{}, err
	}
	return review, nil
}

func (r *reviewRepository) Create(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *reviewRepository) Update(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Omit("Scores").Save(review).Error
}

func (r *reviewRepository) ReplaceScores(ctx context.Context, reviewID uint, scores []models.ReviewCriterionScore) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("review_id = ?", reviewID).Delete(&models.ReviewCriterionScore{}).Error; err != nil {
			return err
		}
		for i := range scores {
			scores[i].ID = 0
			scores[i].ReviewID = reviewID
		}
		if len(scores) == 0 {
			return nil
		}
		return tx.Create(&scores).Error
	})
}

func (r *reviewRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("review_id = ?", id).Delete(&models.ReviewCriterionScore{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Review{}, id).Error
	})
}
