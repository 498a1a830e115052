package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/MacJediWizard/statsbot/internal/models"
	"github.com/MacJediWizard/statsbot/internal/reports"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ReportService computes reports on demand.
type ReportService interface {
	StatsReport(ctx context.Context, trigger models.Trigger) (*models.StatsReport, error)
	NewUsersReport(ctx context.Context, trigger models.Trigger) (*models.NewUsersReport, error)
}

// RunLister lists recorded report runs.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]*models.ReportRun, error)
}

// ReportsHandler serves reports over HTTP.
type ReportsHandler struct {
	service ReportService
	history RunLister
	logger  zerolog.Logger
}

// NewReportsHandler creates a new ReportsHandler. history may be nil.
func NewReportsHandler(service ReportService, history RunLister, logger zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{
		service: service,
		history: history,
		logger:  logger.With().Str("component", "reports_handler").Logger(),
	}
}

// RegisterRoutes registers report routes on the given router group.
func (h *ReportsHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/stats", h.Stats)
	r.GET("/newusers", h.NewUsers)
	r.GET("/history", h.History)
}

// Stats computes the statistics report.
// GET /api/stats
func (h *ReportsHandler) Stats(c *gin.Context) {
	report, err := h.service.StatsReport(c.Request.Context(), models.TriggerHTTP)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to generate stats")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to generate stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   reports.RenderStats(report),
		"report":  report,
		"rates":   reports.ComputeRates(report.Metrics),
	})
}

// NewUsers lists today's new users.
// GET /api/newusers
func (h *ReportsHandler) NewUsers(c *gin.Context) {
	report, err := h.service.NewUsersReport(c.Request.Context(), models.TriggerHTTP)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list new users")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch new users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"newUsers": reports.RenderNewUsers(report),
		"report":   report,
	})
}

// History lists recent report runs.
// GET /api/history?limit=N
func (h *ReportsHandler) History(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "run history is disabled"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid limit"})
			return
		}
		limit = n
	}

	runs, err := h.history.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list report runs")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to list report runs"})
		return
	}
	if runs == nil {
		runs = []*models.ReportRun{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "runs": runs})
}
