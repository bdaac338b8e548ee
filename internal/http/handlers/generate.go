package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/rubric-backend/internal/http/response"
	"github.com/yungbote/rubric-backend/internal/learning/rubric"
	"github.com/yungbote/rubric-backend/internal/platform/apierr"
	"github.com/yungbote/rubric-backend/internal/services"
)

type GenerateHandler struct {
	ingest   services.IngestService
	maxBytes int64
}

func NewGenerateHandler(ingest services.IngestService, maxUploadBytes int64) *GenerateHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &GenerateHandler{ingest: ingest, maxBytes: maxUploadBytes}
}

// POST /generate
// multipart: stream, lessonTitle, lessonFile | lessonText, kind, session
func (h *GenerateHandler) Generate(c *gin.Context) {
	kind, ok := rubric.ParseKind(c.PostForm("kind"))
	if !ok {
		response.RespondAPIError(c, apierr.Newf(apierr.KindInvalidInput, "kind must be descriptive or quantitative"))
		return
	}
	doc, err := readUpload(c, "lessonFile", h.maxBytes)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	text := c.PostForm("lessonText")
	if doc == nil && strings.TrimSpace(text) == "" {
		response.RespondAPIError(c, apierr.Newf(apierr.KindInvalidInput, "no lesson content provided"))
		return
	}

	art, err := h.ingest.Generate(c.Request.Context(), services.GenerateRequest{
		Kind:     kind,
		Stream:   c.PostForm("stream"),
		Title:    c.PostForm("lessonTitle"),
		Text:     text,
		Document: doc,
		Session:  sessionFrom(c),
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"result": art})
}
