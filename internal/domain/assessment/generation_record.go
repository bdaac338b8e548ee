package assessment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GenerationRecord is the audit row written for every validated artifact.
type GenerationRecord struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Session           string         `gorm:"column:session_key;index" json:"session,omitempty"`
	Kind              string         `gorm:"column:kind;not null;index" json:"kind"`
	Stream            string         `gorm:"column:stream;not null" json:"stream"`
	LessonTitle       string         `gorm:"column:lesson_title;index" json:"lesson_title"`
	Model             string         `gorm:"column:model" json:"model,omitempty"`
	PromptName        string         `gorm:"column:prompt_name;not null" json:"prompt_name"`
	PromptVersion     int            `gorm:"column:prompt_version;not null" json:"prompt_version"`
	PromptFingerprint string         `gorm:"column:prompt_fingerprint;not null" json:"prompt_fingerprint"`
	Attempts          int            `gorm:"column:attempts;not null" json:"attempts"`
	Repaired          bool           `gorm:"column:repaired;not null" json:"repaired"`
	Artifact          datatypes.JSON `gorm:"column:artifact" json:"artifact"`
	LatencyMS         int64          `gorm:"column:latency_ms" json:"latency_ms"`
	CreatedAt         time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (GenerationRecord) TableName() string { return "generation_record" }

func (g *GenerationRecord) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	return nil
}
