package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rongwang/claims-tracker/internal/importer"
	"github.com/rongwang/claims-tracker/internal/models"
	"github.com/rongwang/claims-tracker/internal/workqueue"
)

// ListClaims returns every claim, oldest first
func (h *Handler) ListClaims(c *gin.Context) {
	claims, err := h.svc.ListClaims(c.Request.Context(), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, claims)
}

// GetClaim returns one claim with its history
func (h *Handler) GetClaim(c *gin.Context) {
	claim, err := h.svc.GetClaim(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, claim)
}

// CreateClaim adds a single claim
func (h *Handler) CreateClaim(c *gin.Context) {
	var in models.ClaimInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	claim, err := h.svc.CreateClaim(c.Request.Context(), actor(c), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, claim)
}

// UpdateClaim applies the fields present in the body to a claim
func (h *Handler) UpdateClaim(c *gin.Context) {
	var patch models.ClaimPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	claim, err := h.svc.UpdateClaim(c.Request.Context(), actor(c), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, claim)
}

// DeleteClaim removes a claim, keeping a snapshot for restore
func (h *Handler) DeleteClaim(c *gin.Context) {
	if err := h.svc.DeleteClaim(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "Claim deleted successfully"})
}

// RecordWork appends a history entry and updates the claim's work fields
func (h *Handler) RecordWork(c *gin.Context) {
	var req models.RecordWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	claim, err := h.svc.RecordWork(c.Request.Context(), actor(c), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, claim)
}

// AssignClaim sets or clears the assignee
func (h *Handler) AssignClaim(c *gin.Context) {
	var req models.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	claim, err := h.svc.AssignClaim(c.Request.Context(), actor(c), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, claim)
}

// ShareClaim replaces the share list
func (h *Handler) ShareClaim(c *gin.Context) {
	var req models.ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	claim, err := h.svc.ShareClaim(c.Request.Context(), actor(c), c.Param("id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, claim)
}

func bulkStatus(resp *models.BulkImportResponse) int {
	if resp.Errors > 0 {
		return http.StatusMultiStatus
	}
	return http.StatusCreated
}

// BulkCreateClaims inserts a JSON array of claims, skipping duplicates
func (h *Handler) BulkCreateClaims(c *gin.Context) {
	var inputs []models.ClaimInput
	if err := c.ShouldBindJSON(&inputs); err != nil {
		badRequest(c, "Expected an array of claims")
		return
	}

	resp, err := h.svc.BulkCreateClaims(c.Request.Context(), actor(c), inputs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(bulkStatus(resp), resp)
}

// ImportClaims accepts a multipart "file" upload (CSV, or JSON rows when
// the name ends in .json) or a JSON array of spreadsheet rows.
func (h *Handler) ImportClaims(c *gin.Context) {
	ctx := c.Request.Context()

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			badRequest(c, "No file uploaded")
			return
		}
		f, err := header.Open()
		if err != nil {
			h.respondError(c, fmt.Errorf("error opening upload: %w", err))
			return
		}
		defer f.Close()

		if strings.EqualFold(filepath.Ext(header.Filename), ".json") {
			var rows []importer.Row
			if err := json.NewDecoder(f).Decode(&rows); err != nil {
				badRequest(c, "Invalid JSON file")
				return
			}
			h.importRows(c, rows)
			return
		}

		resp, err := h.svc.ImportCSV(ctx, actor(c), f)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(bulkStatus(resp), resp)
		return
	}

	var rows []importer.Row
	if err := c.ShouldBindJSON(&rows); err != nil {
		badRequest(c, "Expected an array of rows")
		return
	}
	h.importRows(c, rows)
}

func (h *Handler) importRows(c *gin.Context, rows []importer.Row) {
	resp, err := h.svc.ImportRows(c.Request.Context(), actor(c), rows)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(bulkStatus(resp), resp)
}

// ExportClaims downloads claims as JSON (default) or CSV. Agents only get
// their own claims.
func (h *Handler) ExportClaims(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", "json"))
	if format != "json" && format != "csv" {
		badRequest(c, "format must be json or csv")
		return
	}

	claims, err := h.svc.ExportClaims(c.Request.Context(), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	loc := h.svc.Location()
	filename := fmt.Sprintf("claims-export-%s.%s", time.Now().In(loc).Format("2006-01-02"), format)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	if format == "json" {
		c.JSON(http.StatusOK, claims)
		return
	}

	var buf bytes.Buffer
	if err := importer.WriteCSV(&buf, claims, loc); err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	v := c.Query(key)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Queue returns one filtered page of the caller's work queue
func (h *Handler) Queue(c *gin.Context) {
	var f workqueue.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		badRequest(c, "Invalid filter")
		return
	}
	page, ok := queryInt(c, "page", 1)
	if !ok {
		badRequest(c, "page must be a number")
		return
	}
	perPage, ok := queryInt(c, "perPage", workqueue.DefaultPerPage)
	if !ok {
		badRequest(c, "perPage must be a number")
		return
	}

	view, err := h.svc.Queue(c.Request.Context(), actor(c), f, page, perPage)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListDeletedClaims returns the snapshots of deleted claims
func (h *Handler) ListDeletedClaims(c *gin.Context) {
	deleted, err := h.svc.ListDeletedClaims(c.Request.Context(), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deleted)
}

// RestoreClaim brings a deleted claim back with its history
func (h *Handler) RestoreClaim(c *gin.Context) {
	claim, err := h.svc.RestoreClaim(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, claim)
}
