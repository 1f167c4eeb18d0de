package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"orchestrator-service/src/billing"
	"orchestrator-service/src/config"
	"orchestrator-service/src/db"
	"orchestrator-service/src/notify"
	"orchestrator-service/src/orchestrator"
	"orchestrator-service/src/presence"
	"orchestrator-service/src/rabbitmq"
	"orchestrator-service/src/repository"
	"orchestrator-service/src/router"
	"orchestrator-service/src/store"
	"orchestrator-service/src/tariff"
	"orchestrator-service/src/timers"
)

// Server represents the HTTP server and its long-lived dependencies.
type Server struct {
	config          *config.GlobalConfig
	database        *db.DB
	publisher       *rabbitmq.AMQPPublisher
	timers          *timers.Manager
	http            *http.Server
	shutdownHandler ShutdownHandlerInterface
}

// NewServer creates a new server instance and connects the backends.
func NewServer(cfg *config.GlobalConfig) (*Server, error) {
	database, err := db.NewDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	publisher, err := rabbitmq.NewAMQPPublisher(cfg.GetRabbitMQURL())
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	server := &Server{
		config:    cfg,
		database:  database,
		publisher: publisher,
	}

	server.shutdownHandler = NewShutdownHandler(server)

	return server, nil
}

// Run starts the server with graceful shutdown using ShutdownHandler
func (s *Server) Run() error {
	osSignals := make(chan os.Signal, 1)
	signal.Notify(osSignals, syscall.SIGINT, syscall.SIGTERM)

	serverDone := s.startServerGoroutine()

	return s.shutdownHandler.HandleShutdown(serverDone, osSignals)
}

// startServerGoroutine wires the session engine, starts the HTTP server in
// a goroutine and returns a channel for errors
func (s *Server) startServerGoroutine() chan error {
	serverDone := make(chan error, 1)

	go func() {
		accounts := repository.NewAccountRepository(s.database)
		settlements := repository.NewSettlementRepository(s.database)

		sessionStore := store.NewSessionStore()
		registry := presence.NewRegistry()
		s.timers = timers.NewManager()

		resolver := tariff.NewResolver(accounts, tariff.Config{
			DailyFreeLimit:       s.config.FreeSessionDailyLimit,
			FreeMaxMinutes:       s.config.FreeSessionMaxMinutes,
			MinAffordableMinutes: s.config.MinAffordableMinutes,
			Timezone:             s.config.QuotaTimezone,
		})
		engine := billing.NewEngine(settlements, billing.Config{
			FreeSessionCredit: s.config.FreeSessionCredit,
		})
		dispatcher := notify.NewDispatcher(s.publisher)

		orch := orchestrator.NewOrchestrator(
			sessionStore,
			registry,
			s.timers,
			accounts,
			resolver,
			engine,
			dispatcher,
			orchestrator.Config{
				ResponseTimeout:       s.config.ResponseTimeout,
				NotifyTerminationBoth: s.config.NotifyTerminationBoth,
			},
		)

		r := router.NewRouter(s.database, orch, registry, sessionStore)
		httpServer := &http.Server{
			Addr:    fmt.Sprintf("%s:%s", s.config.GetHost(), s.config.GetPort()),
			Handler: r,
		}
		s.http = httpServer

		slog.Info("Starting orchestrator service",
			"host", s.config.GetHost(),
			"port", s.config.GetPort())

		serverDone <- s.startServer()
	}()

	return serverDone
}

// startServer starts the HTTP server and handles errors
func (s *Server) startServer() error {
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
