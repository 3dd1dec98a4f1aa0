package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rongwang/claims-tracker/internal/service"
)

// AgentDailyReport lists the claims an agent worked today
func (h *Handler) AgentDailyReport(c *gin.Context) {
	report, err := h.svc.AgentDailyReport(c.Request.Context(), actor(c), c.Param("userId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// AgentReport lists the claims an agent worked in ?startDate=&endDate=
func (h *Handler) AgentReport(c *gin.Context) {
	report, err := h.svc.AgentReport(c.Request.Context(), actor(c),
		c.Param("userId"), c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// AdminAgentReport is AgentReport with the agent's profile attached
func (h *Handler) AdminAgentReport(c *gin.Context) {
	report, err := h.svc.AdminAgentReport(c.Request.Context(), actor(c),
		c.Param("userId"), c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// AdminClaimsReport lists claims in a bucket (?filterType=) and date range
func (h *Handler) AdminClaimsReport(c *gin.Context) {
	report, err := h.svc.AdminClaimsReport(c.Request.Context(), actor(c),
		c.Query("filterType"), c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// AdminStats returns claim counts per bucket
func (h *Handler) AdminStats(c *gin.Context) {
	stats, err := h.svc.AdminStats(c.Request.Context(), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// AgentSummaries returns per-agent totals for the admin dashboard
func (h *Handler) AgentSummaries(c *gin.Context) {
	summaries, err := h.svc.AgentSummaries(c.Request.Context(), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// ListActivity returns the most recent audit rows, ?limit= overrides the default
func (h *Handler) ListActivity(c *gin.Context) {
	limit, ok := queryInt(c, "limit", service.DefaultActivityLimit)
	if !ok {
		badRequest(c, "limit must be a number")
		return
	}

	logs, err := h.svc.ListActivity(c.Request.Context(), actor(c), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}
