package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rongwang/claims-tracker/internal/models"
)

// Health reports that the server is up
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "OK",
		Timestamp: time.Now().In(h.svc.Location()).Format(time.RFC3339),
	})
}

// Login handles user login
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Username and password required")
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
