package router

import (
	"orchestrator-service/src/controller"
	"orchestrator-service/src/db"
	"orchestrator-service/src/orchestrator"
	"orchestrator-service/src/presence"
	"orchestrator-service/src/repository"
	"orchestrator-service/src/service"
	"orchestrator-service/src/store"
	"orchestrator-service/src/ws"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with the websocket endpoint and the
// read-only admin routes.
func NewRouter(
	database *db.DB,
	orch *orchestrator.Orchestrator,
	registry *presence.Registry,
	sessionStore *store.SessionStore,
) *gin.Engine {
	router := gin.Default()

	wsHandler := ws.NewHandler(orch, registry)
	router.GET("/ws", wsHandler.Serve)

	sessionService := service.NewSessionService(
		sessionStore,
		repository.NewSessionRepository(database),
		repository.NewLedgerRepository(database),
	)
	sessionController := controller.NewSessionController(sessionService)
	router.GET("/sessions/active", sessionController.ListActive)
	router.GET("/sessions", sessionController.GetHistory)
	router.GET("/sessions/:session_id", sessionController.GetRecord)
	router.GET("/sessions/:session_id/ledger", sessionController.GetLedger)

	healthController := controller.NewHealthController(database)
	router.GET("/healthz", healthController.Healthz)

	return router
}
