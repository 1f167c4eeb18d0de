package main

import (
	"log"
	"log/slog"
	"os"

	"orchestrator-service/logger"
	"orchestrator-service/src/config"
	"orchestrator-service/src/server"
)

func main() {
	cfg := loadConfig()
	setupLogging(cfg.LogLevel)

	srv, err := server.NewServer(&cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	if err := srv.Run(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}

func loadConfig() config.GlobalConfig {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

func setupLogging(level string) {
	logger.Init(level)

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slogLevel(level),
	}))
	slog.SetDefault(slogger)
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "warn", "WARN":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
