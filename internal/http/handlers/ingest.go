package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/rubric-backend/internal/http/response"
	"github.com/yungbote/rubric-backend/internal/learning/rubric"
	"github.com/yungbote/rubric-backend/internal/platform/apierr"
	"github.com/yungbote/rubric-backend/internal/services"
)

type IngestHandler struct {
	ingest   services.IngestService
	maxBytes int64
}

func NewIngestHandler(ingest services.IngestService, maxUploadBytes int64) *IngestHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &IngestHandler{ingest: ingest, maxBytes: maxUploadBytes}
}

// POST /api/ingest
func (h *IngestHandler) Ingest(c *gin.Context) {
	doc, err := readUpload(c, "file", h.maxBytes)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if doc == nil {
		response.RespondAPIError(c, apierr.Newf(apierr.KindInvalidInput, "file required"))
		return
	}
	text, err := h.ingest.Ingest(c.Request.Context(), *doc)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"name": doc.Name, "text": text})
}

// POST /api/ingest/book
func (h *IngestHandler) IngestBook(c *gin.Context) {
	kind, ok := rubric.ParseKind(c.PostForm("kind"))
	if !ok {
		response.RespondAPIError(c, apierr.Newf(apierr.KindInvalidInput, "kind must be descriptive or quantitative"))
		return
	}
	doc, err := readUpload(c, "file", h.maxBytes)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if doc == nil {
		response.RespondAPIError(c, apierr.Newf(apierr.KindInvalidInput, "file required"))
		return
	}
	res, err := h.ingest.IngestBook(c.Request.Context(), *doc, services.BookRequest{
		Kind:    kind,
		Stream:  c.PostForm("stream"),
		Session: sessionFrom(c),
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, res)
}
