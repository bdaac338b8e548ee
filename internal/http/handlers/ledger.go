package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/rubric-backend/internal/domain"
	"github.com/yungbote/rubric-backend/internal/http/response"
	"github.com/yungbote/rubric-backend/internal/learning/rubric"
	"github.com/yungbote/rubric-backend/internal/platform/apierr"
	"github.com/yungbote/rubric-backend/internal/services"
)

type LedgerHandler struct {
	ledger services.LedgerService
}

func NewLedgerHandler(ledger services.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

type recordScoreRequest struct {
	LearnerID   string     `json:"learner_id"`
	LessonTitle string     `json:"lesson_title"`
	Domain      string     `json:"domain"`
	Question    string     `json:"question"`
	Score       *float64   `json:"score"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// POST /api/scores
func (h *LedgerHandler) RecordScore(c *gin.Context) {
	var req recordScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, apierr.New(apierr.KindInvalidInput, "invalid score body", err))
		return
	}
	if req.Score == nil {
		response.RespondAPIError(c, apierr.Newf(apierr.KindInvalidInput, "score required"))
		return
	}
	entry := &types.ScoreEntry{
		LearnerID:   req.LearnerID,
		LessonTitle: req.LessonTitle,
		Domain:      req.Domain,
		Question:    req.Question,
		Score:       *req.Score,
	}
	if req.Timestamp != nil {
		entry.Timestamp = req.Timestamp.UTC()
	}
	created, err := h.ledger.Record(c.Request.Context(), entry)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"score": created})
}

// GET /api/scores?learner_id=&lesson_title=&limit=
func (h *LedgerHandler) ListScores(c *gin.Context) {
	var filter types.ScoreFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.RespondAPIError(c, apierr.New(apierr.KindInvalidInput, "invalid query", err))
		return
	}
	scores, err := h.ledger.Query(c.Request.Context(), filter)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"scores": scores})
}

type defineRubricRequest struct {
	Definitions []*types.RubricDefinition `json:"definitions"`
}

// POST /api/rubrics
func (h *LedgerHandler) DefineRubric(c *gin.Context) {
	var req defineRubricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, apierr.New(apierr.KindInvalidInput, "invalid rubric body", err))
		return
	}
	if len(req.Definitions) == 0 {
		response.RespondAPIError(c, apierr.Newf(apierr.KindInvalidInput, "definitions required"))
		return
	}
	defs, err := h.ledger.DefineRubric(c.Request.Context(), req.Definitions)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"definitions": defs})
}

// GET /api/rubrics?lesson_title=
func (h *LedgerHandler) ListRubrics(c *gin.Context) {
	defs, err := h.ledger.Definitions(c.Request.Context(), c.Query("lesson_title"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"definitions": defs})
}

// POST /api/rubrics/from-artifact
// body: a descriptive or quantitative artifact as returned by /generate
func (h *LedgerHandler) DefineRubricFromArtifact(c *gin.Context) {
	var art rubric.Artifact
	if err := c.ShouldBindJSON(&art); err != nil {
		response.RespondAPIError(c, apierr.New(apierr.KindSchemaViolation, "artifact body", err))
		return
	}
	defs, err := h.ledger.RecordRubricFromArtifact(c.Request.Context(), &art)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"definitions": defs})
}
