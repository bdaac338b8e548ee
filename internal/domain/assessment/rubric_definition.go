package assessment

import (
	"time"

	"gorm.io/gorm"
)

// RubricDefinition declares how many points one question of a lesson is worth.
type RubricDefinition struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	LessonTitle string    `gorm:"column:lesson_title;not null;index" json:"lesson_title"`
	Domain      string    `gorm:"column:domain;not null" json:"domain"`
	Question    string    `gorm:"column:question;type:text" json:"question"`
	Points      float64   `gorm:"column:points;not null" json:"points"`
	CreatedAt   time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (RubricDefinition) TableName() string { return "rubric_definition" }

func (r *RubricDefinition) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return nil
}
