package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"content-safety/internal/metrics"
	"content-safety/internal/models"
	"content-safety/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Uploads larger than this are refused before classification
const maxImageBytes = 10 << 20

// StatusFunc reports the remote analyzer status for the health check
type StatusFunc func() string

// Handler handles HTTP requests
type Handler struct {
	safety *service.SafetyService
	status StatusFunc
	logger *zap.Logger
}

// NewHandler creates a new API handler. status may be nil.
func NewHandler(safety *service.SafetyService, status StatusFunc, logger *zap.Logger) *Handler {
	if status == nil {
		status = func() string { return "disabled" }
	}
	return &Handler{
		safety: safety,
		status: status,
		logger: logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		// Classification
		api.POST("/safety/check/text", h.CheckText)
		api.POST("/safety/check/image", h.CheckImage)

		// Reports and escalation
		api.POST("/safety/report", h.Report)

		// Reference publish path
		api.POST("/content/:type", h.Publish)
		api.GET("/content/:type/:id", h.GetContent)

		// Moderation records and appeals
		api.GET("/safety/moderation", h.ListModeration)
		api.GET("/safety/moderation/history/:authorId", h.ModerationHistory)
		api.GET("/safety/moderation/stats/:authorId", h.ModerationStats)
		api.POST("/safety/appeals/:id", h.SubmitAppeal)
		api.POST("/safety/appeals/:id/resolve", h.ResolveAppeal)
	}

	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// CheckText classifies a text body without storing it
func (h *Handler) CheckText(c *gin.Context) {
	var req models.CheckContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contentType := models.ContentPost
	if req.ContentType != "" {
		ct, err := models.ParseContentType(req.ContentType)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		contentType = ct
	}

	verdict := h.safety.CheckContent(c.Request.Context(), req.Text, req.UserID, contentType,
		models.CheckOptions{OnlyFast: req.OnlyFast})

	c.JSON(http.StatusOK, verdict)
}

// CheckImage classifies an uploaded image, sent either as the multipart
// field "image" or as the raw request body
func (h *Handler) CheckImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageBytes)

	buf, err := readImage(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.safety.CheckImage(c.Request.Context(), buf))
}

func readImage(c *gin.Context) ([]byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("image")
		if err != nil {
			return nil, err
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	return io.ReadAll(c.Request.Body)
}

// Report records a community report and runs the escalation policy
func (h *Handler) Report(c *gin.Context) {
	var req models.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	targetType, err := models.ParseTargetType(req.TargetType)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var comment *string
	if req.Comment != "" {
		comment = &req.Comment
	}

	report, err := h.safety.Report(c.Request.Context(), req.ReporterID, req.TargetID, targetType, req.Reason, comment)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, report)
}

// Publish checks and stores a post or reply
func (h *Handler) Publish(c *gin.Context) {
	contentType, err := models.ParseContentType(c.Param("type"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	var req models.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.safety.Publish(c.Request.Context(), contentType, req.AuthorID, req.Body)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

// GetContent returns a live post or reply
func (h *Handler) GetContent(c *gin.Context) {
	contentType, err := models.ParseContentType(c.Param("type"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	item, err := h.safety.GetContent(c.Request.Context(), contentType, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

// ListModeration returns moderation records for the admin view
func (h *Handler) ListModeration(c *gin.Context) {
	limit, offset := pagination(c)
	filter := models.ModerationFilter{
		AuthorID: c.Query("author_id"),
		Source:   models.ModerationSource(strings.ToUpper(c.Query("source"))),
		Limit:    limit,
		Offset:   offset,
	}
	if code := c.Query("reason_code"); code != "" {
		filter.ReasonCode = models.ParseReasonCode(code)
	}

	page, err := h.safety.ListModerationRecords(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// ModerationHistory returns an author's moderation records
func (h *Handler) ModerationHistory(c *gin.Context) {
	limit, offset := pagination(c)

	page, err := h.safety.ModerationHistory(c.Request.Context(), c.Param("authorId"), limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// ModerationStats returns per-reason counts for an author
func (h *Handler) ModerationStats(c *gin.Context) {
	stats, err := h.safety.ModerationStats(c.Request.Context(), c.Param("authorId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// SubmitAppeal lets an author contest a moderation record
func (h *Handler) SubmitAppeal(c *gin.Context) {
	var req models.AppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.safety.SubmitAppeal(c.Request.Context(), req.UserID, c.Param("id"), req.Text)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// ResolveAppeal decides a pending appeal
func (h *Handler) ResolveAppeal(c *gin.Context) {
	var req models.ResolveAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.safety.ResolveAppeal(c.Request.Context(), c.Param("id"), req.Upheld, req.Resolution)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	mode := "keyword"
	if h.safety.HasChecker() {
		mode = "pipeline"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"service":  "content-safety",
		"version":  "1.0.0",
		"mode":     mode,
		"analyzer": h.status(),
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var rejected *service.RejectedError
	switch {
	case errors.As(err, &rejected):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     rejected.Verdict.Reason,
			"verdict":   rejected.Verdict,
			"record_id": rejected.RecordID,
		})
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrInvalidTargetType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, models.ErrAppealWindowExpired):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrAppealExists), errors.Is(err, models.ErrNoPendingAppeal):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.Query("limit"))
	offset, _ = strconv.Atoi(c.Query("offset"))
	return limit, offset
}
