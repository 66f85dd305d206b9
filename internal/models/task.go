package models

import "time"

// Task represents an open-ended assignment graded against a weighted rubric.
type Task struct {
	ID                uint        `gorm:"primaryKey" json:"id"`
	Title             string      `gorm:"size:255;not null" json:"title"`
	Description       string      `gorm:"type:text" json:"description"`
	ReferenceSolution string      `gorm:"type:text" json:"reference_solution"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
	Criteria          []Criterion `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"criteria"`
}

// Criterion is one weighted grading dimension of a task's rubric.
type Criterion struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	TaskID      uint    `gorm:"not null;index" json:"task_id"`
	Name        string  `gorm:"size:255;not null" json:"name"`
	Description string  `gorm:"type:text" json:"description"`
	MaxPoints   float64 `gorm:"not null" json:"max_points"`
	Position    int     `gorm:"not null;default:0" json:"position"`
}

// MaxTotalPoints sums the maximum achievable points across the rubric.
func (t Task) MaxTotalPoints() float64 {
	total := 0.0
	for _, criterion := range t.Criteria {
		total += criterion.MaxPoints
	}
	return total
}
