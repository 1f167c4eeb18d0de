package controller

import (
	"net/http"

	"orchestrator-service/src/db"

	"github.com/gin-gonic/gin"
)

// HealthController reports service liveness and readiness.
type HealthController struct {
	Database *db.DB
}

func NewHealthController(database *db.DB) *HealthController {
	return &HealthController{
		Database: database,
	}
}

// Healthz reports readiness: healthy only when the database answers a ping.
func (hc *HealthController) Healthz(ctx *gin.Context) {
	if err := hc.Database.GetConnection().PingContext(ctx.Request.Context()); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"detail": "database unreachable",
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}
