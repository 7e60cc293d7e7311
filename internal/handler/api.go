package handler

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"comment-moderation/internal/middleware"
	"comment-moderation/internal/models"
	"comment-moderation/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler handles HTTP requests
type Handler struct {
	moderator *service.Moderator
	auth      *service.Authenticator
	logger    *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(moderator *service.Moderator, auth *service.Authenticator, logger *zap.Logger) *Handler {
	return &Handler{
		moderator: moderator,
		auth:      auth,
		logger:    logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		// Public chat
		api.POST("/comments", h.SubmitComment)
		api.GET("/comments", h.GetApprovedFeed)

		// Moderator session
		api.POST("/auth/login", h.Login)
		api.POST("/auth/logout", h.Logout)
	}

	mod := api.Group("/moderation")
	mod.Use(middleware.AuthMiddleware(h.auth, h.logger))
	{
		mod.GET("/queue", h.GetQueue)
		mod.POST("/queue/:id/approve", h.ApproveComment)
		mod.POST("/queue/:id/reject", h.RejectComment)
		mod.GET("/feed", h.GetModeratorFeed)
		mod.GET("/stats", h.GetStats)
		mod.GET("/compliance", h.GetCompliance)
		mod.PUT("/compliance", h.UpdateCompliance)

		// Export
		mod.GET("/export/csv", h.ExportCSV)
		mod.GET("/export/json", h.ExportJSON)
	}

	// Health check
	r.GET("/health", h.HealthCheck)
}

// SubmitComment classifies and stores a new comment
func (h *Handler) SubmitComment(c *gin.Context) {
	var req models.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.moderator.Submit(c.Request.Context(), req.Author, req.Text)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to submit comment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "submission failed"})
		return
	}

	status := "posted"
	if comment.ApprovalState == models.StatePending {
		status = "awaiting_review"
	}
	c.JSON(http.StatusCreated, models.SubmitResponse{Comment: comment, Status: status})
}

// GetApprovedFeed returns the public feed, newest first
func (h *Handler) GetApprovedFeed(c *gin.Context) {
	h.writeFeed(c, false)
}

// GetModeratorFeed returns approved and pending comments, newest first
func (h *Handler) GetModeratorFeed(c *gin.Context) {
	h.writeFeed(c, true)
}

func (h *Handler) writeFeed(c *gin.Context, includePending bool) {
	items, err := h.moderator.Feed(c.Request.Context(), includePending)
	if err != nil {
		h.logger.Error("Failed to get feed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get comments"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"comments": items,
		"total":    len(items),
	})
}

// GetQueue returns comments awaiting review in arrival order
func (h *Handler) GetQueue(c *gin.Context) {
	pending, err := h.moderator.ListPending(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get review queue", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get queue"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"comments": pending,
		"total":    len(pending),
	})
}

// ApproveComment publishes a pending comment
func (h *Handler) ApproveComment(c *gin.Context) {
	comment, err := h.moderator.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.decisionError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

// RejectComment discards a pending comment
func (h *Handler) RejectComment(c *gin.Context) {
	if err := h.moderator.Reject(c.Request.Context(), c.Param("id")); err != nil {
		h.decisionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) decisionError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.logger.Error("Moderation decision failed", zap.String("id", c.Param("id")), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "decision failed"})
}

// GetStats returns collection counts
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.moderator.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetCompliance returns the compliance rule set
func (h *Handler) GetCompliance(c *gin.Context) {
	c.JSON(http.StatusOK, h.moderator.ComplianceRules())
}

// UpdateCompliance edits the compliance rule set
func (h *Handler) UpdateCompliance(c *gin.Context) {
	var req models.ComplianceUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.moderator.SetComplianceRules(req))
}

// Login exchanges the moderator password for a session token
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, expiresAt, err := h.auth.Login(req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid password"})
			return
		}
		h.logger.Error("Login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{Token: token, ExpiresAt: expiresAt})
}

// Logout revokes the session token in the Authorization header
func (h *Handler) Logout(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer <token>"})
		return
	}

	if err := h.auth.Logout(token); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	c.Status(http.StatusNoContent)
}

// ExportCSV exports the approved feed to CSV
func (h *Handler) ExportCSV(c *gin.Context) {
	items, err := h.moderator.Feed(c.Request.Context(), false)
	if err != nil {
		h.logger.Error("Failed to export CSV", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=comments.csv")

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{"id", "author", "text", "safe", "reason", "confidence", "created_at"})
	for _, item := range items {
		writer.Write([]string{
			item.ID,
			item.Author,
			item.Text,
			strconv.FormatBool(item.Safe),
			item.Reason,
			strconv.FormatFloat(item.Confidence, 'f', -1, 64),
			item.CreatedAt.Format(time.RFC3339),
		})
	}
}

// ExportJSON exports the approved feed to JSON
func (h *Handler) ExportJSON(c *gin.Context) {
	items, err := h.moderator.Feed(c.Request.Context(), false)
	if err != nil {
		h.logger.Error("Failed to export JSON", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", "attachment; filename=comments.json")

	encoder := json.NewEncoder(c.Writer)
	encoder.SetIndent("", "  ")
	encoder.Encode(items)
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "comment-moderation",
	})
}
