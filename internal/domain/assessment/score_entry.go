package assessment

import (
	"time"

	"gorm.io/gorm"
)

// ScoreEntry is one awarded score. Rows are append-only; ID order is insertion order.
type ScoreEntry struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	LearnerID   string    `gorm:"column:learner_id;not null;index" json:"learner_id"`
	LessonTitle string    `gorm:"column:lesson_title;not null;index" json:"lesson_title"`
	Domain      string    `gorm:"column:domain;not null" json:"domain"`
	Question    string    `gorm:"column:question;type:text" json:"question"`
	Score       float64   `gorm:"column:score;not null" json:"score"`
	Timestamp   time.Time `gorm:"column:timestamp;not null;index" json:"timestamp"`
}

func (ScoreEntry) TableName() string { return "score_entry" }

func (s *ScoreEntry) BeforeCreate(tx *gorm.DB) error {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}
	return nil
}

// ScoreFilter narrows a ledger query. Empty fields match everything.
type ScoreFilter struct {
	LearnerID   string `form:"learner_id" json:"learner_id,omitempty"`
	LessonTitle string `form:"lesson_title" json:"lesson_title,omitempty"`
	Limit       int    `form:"limit" json:"limit,omitempty"`
}
