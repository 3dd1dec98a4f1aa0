package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rongwang/claims-tracker/internal/models"
)

// ListUsers returns every agent
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.svc.ListAgents(c.Request.Context(), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// GetUser returns one user; agents may only fetch themselves
func (h *Handler) GetUser(c *gin.Context) {
	user, err := h.svc.GetUser(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// CreateUser creates an agent, or an admin when the caller is the master
func (h *Handler) CreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Username, name, and password are required")
		return
	}

	resp, err := h.svc.CreateUser(c.Request.Context(), actor(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// UpdateUser changes a profile or password
func (h *Handler) UpdateUser(c *gin.Context) {
	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	resp, err := h.svc.UpdateUser(c.Request.Context(), actor(c), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteUser removes an agent
func (h *Handler) DeleteUser(c *gin.Context) {
	if err := h.svc.DeleteUser(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "User deleted successfully"})
}
