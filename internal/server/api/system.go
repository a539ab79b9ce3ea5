package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fernhill/clienthub/internal/build"
)

type SystemHandlers struct{}

func NewSystemHandlers() *SystemHandlers {
	return &SystemHandlers{}
}

// Health is the liveness endpoint.
func (h *SystemHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": build.Version,
	})
}

// BuildInfo reports version, platform, and uptime.
func (h *SystemHandlers) BuildInfo(c *gin.Context) {
	c.JSON(http.StatusOK, build.GetBuildInfo())
}
