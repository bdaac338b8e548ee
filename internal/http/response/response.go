package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/rubric-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
		_ = c.Error(err)
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAPIError derives status and code from the error's kind.
func RespondAPIError(c *gin.Context, err error) {
	code := string(apierr.KindOf(err))
	if code == "" {
		code = "internal"
	}
	RespondError(c, apierr.StatusOf(err), code, err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
