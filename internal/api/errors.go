package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rongwang/claims-tracker/internal/models"
	"github.com/rongwang/claims-tracker/internal/service"
)

var errorStatus = []struct {
	kind   error
	status int
	code   string
}{
	{service.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
	{service.ErrDuplicate, http.StatusBadRequest, "DUPLICATE"},
	{service.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{service.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{service.ErrUnavailable, http.StatusServiceUnavailable, "UNAVAILABLE"},
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error: message,
		Code:  "VALIDATION_ERROR",
	})
}

// respondError writes err as a JSON error. Business errors keep their
// message; anything else is logged and reported as a generic 500.
func (h *Handler) respondError(c *gin.Context, err error) {
	var serr *service.Error
	if errors.As(err, &serr) {
		for _, e := range errorStatus {
			if errors.Is(serr.Kind, e.kind) {
				c.JSON(e.status, models.ErrorResponse{Error: serr.Message, Code: e.code})
				return
			}
		}
	}

	_ = c.Error(err)
	h.logger.Error().Err(err).
		Str("request_id", c.GetString(ctxRequestID)).
		Str("path", c.Request.URL.Path).
		Msg("request failed")
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error: "Internal server error",
		Code:  "INTERNAL_ERROR",
	})
}
