package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rongwang/claims-tracker/internal/models"
	"github.com/rongwang/claims-tracker/internal/service"
)

// Handler serves the REST API on top of a Service
type Handler struct {
	svc       service.Service
	logger    zerolog.Logger
	staticDir string
}

// HandlerOption customizes a Handler
type HandlerOption func(*Handler)

// WithStaticDir serves the front-end build from dir for non-API paths
func WithStaticDir(dir string) HandlerOption {
	return func(h *Handler) {
		h.staticDir = dir
	}
}

// NewHandler creates a new Handler
func NewHandler(svc service.Service, logger zerolog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{svc: svc, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetupRoutes registers every route on router. The router must already carry
// the JWTSecret middleware.
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)

	api := router.Group("/api")
	api.POST("/login", h.Login)

	auth := api.Group("", AuthMiddleware())

	users := auth.Group("/users")
	users.GET("", h.ListUsers)
	users.POST("", RequireCapability(models.CapManageUsers), h.CreateUser)
	users.GET("/:id", h.GetUser)
	users.PUT("/:id", h.UpdateUser)
	users.DELETE("/:id", RequireCapability(models.CapManageUsers), h.DeleteUser)

	claims := auth.Group("/claims")
	claims.GET("", h.ListClaims)
	claims.POST("", h.CreateClaim)
	claims.POST("/bulk", h.BulkCreateClaims)
	claims.POST("/import", h.ImportClaims)
	claims.GET("/export", h.ExportClaims)
	claims.GET("/deleted", h.ListDeletedClaims)
	claims.POST("/deleted/:id/restore", h.RestoreClaim)
	claims.GET("/:id", h.GetClaim)
	claims.PUT("/:id", h.UpdateClaim)
	claims.DELETE("/:id", h.DeleteClaim)
	claims.POST("/:id/work", h.RecordWork)
	claims.PUT("/:id/assign", h.AssignClaim)
	claims.PUT("/:id/share", h.ShareClaim)

	auth.GET("/queue", h.Queue)

	reports := auth.Group("/reports")
	reports.GET("/agent/daily/:userId", h.AgentDailyReport)
	reports.GET("/agent/:userId", h.AgentReport)
	reports.GET("/admin/agent/:userId", h.AdminAgentReport)
	reports.GET("/admin/claims", h.AdminClaimsReport)
	reports.GET("/admin/stats", h.AdminStats)
	reports.GET("/admin/agents", h.AgentSummaries)

	auth.GET("/activity", h.ListActivity)

	router.NoRoute(h.NotFound)
}

// NotFound answers unknown API paths with JSON and everything else with the
// front-end, falling back to index.html for client-side routes.
func (h *Handler) NotFound(c *gin.Context) {
	path := c.Request.URL.Path
	if strings.HasPrefix(path, "/api/") || path == "/api" {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: "API endpoint not found",
			Code:  "NOT_FOUND",
		})
		return
	}
	if h.staticDir == "" {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Not found", Code: "NOT_FOUND"})
		return
	}

	if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
		file := filepath.Join(h.staticDir, filepath.Clean("/"+path))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			c.File(file)
			return
		}
	}
	c.File(filepath.Join(h.staticDir, "index.html"))
}
