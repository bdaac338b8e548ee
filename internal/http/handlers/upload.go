package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/rubric-backend/internal/ingestion/extractor"
	"github.com/yungbote/rubric-backend/internal/learning/generation"
	"github.com/yungbote/rubric-backend/internal/platform/apierr"
	"github.com/yungbote/rubric-backend/internal/platform/ctxutil"
)

// DefaultMaxUploadBytes caps a single uploaded document.
const DefaultMaxUploadBytes int64 = 20 << 20

// readUpload returns the named multipart file, or nil when the field is absent.
func readUpload(c *gin.Context, field string, maxBytes int64) (*extractor.Document, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidInput, "read multipart form", err)
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, apierr.Newf(apierr.KindBudgetExceeded, "%s is %d bytes, limit %d", fh.Filename, fh.Size, maxBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidInput, "open upload", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apierr.New(apierr.KindInvalidInput, fmt.Sprintf("read %s", fh.Filename), err)
	}
	return &extractor.Document{Name: fh.Filename, Data: data}, nil
}

// sessionFrom prefers the form field and falls back to the X-Session-Id header.
func sessionFrom(c *gin.Context) generation.SessionKey {
	if v := strings.TrimSpace(c.PostForm("session")); v != "" {
		return generation.SessionKey(v)
	}
	if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
		return generation.SessionKey(rd.SessionKey)
	}
	return ""
}
