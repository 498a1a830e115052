package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RunningMessage is the body of GET /.
const RunningMessage = "Bot is running!"

// VersionInfo contains build information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
}

// StatusHandler serves the liveness text and build information.
type StatusHandler struct {
	info VersionInfo
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(info VersionInfo) *StatusHandler {
	return &StatusHandler{info: info}
}

// RegisterPublicRoutes registers status routes.
func (h *StatusHandler) RegisterPublicRoutes(r *gin.Engine) {
	r.GET("/", h.Root)
	r.GET("/version", h.Version)
}

// Root reports that the bot is up.
// GET /
func (h *StatusHandler) Root(c *gin.Context) {
	c.String(http.StatusOK, RunningMessage)
}

// Version returns build information.
// GET /version
func (h *StatusHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, h.info)
}
