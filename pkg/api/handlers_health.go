package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/kitt/pkg/database"
	"github.com/codeready-toolchain/kitt/pkg/version"
)

// healthHandler handles GET /health, a liveness probe per spec §4.H.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(reqCtx, s.store.DB())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status:   "unhealthy",
			Version:  version.Full(),
			Database: dbHealth.Status,
		})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Version:  version.Full(),
		Database: dbHealth.Status,
	})
}
