package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tjfontaine/interview-conductor/internal/telemetry"
	"github.com/tjfontaine/interview-conductor/pkg/conductor"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to configuration file")
	dbPath := flag.String("db", "./data/conductor.db", "path to SQLite database")
	interviewID := flag.String("interview", "", "interview record to attach the transcript to")
	flag.Parse()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	shutdown, err := telemetry.InitTracer("interview-conductor", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	c, err := conductor.New(
		conductor.WithFileConfig(*configPath),
		conductor.WithSQLite(*dbPath),
		conductor.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("Failed to create conductor: %v", err)
	}

	// Cancel the session on interrupt so the farewell persistence still
	// runs on its detached context.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := c.RunInterview(ctx, *interviewID)
	if err != nil {
		log.Fatalf("Failed to run interview: %v", err)
	}

	logger.Info("interview session finished",
		slog.String("session_id", outcome.SessionID),
		slog.Bool("completed", outcome.Completed),
		slog.Int("responses", outcome.Responses),
		slog.Int("extensions_used", outcome.ExtensionsUsed),
		slog.Float64("elapsed_seconds", outcome.ElapsedSeconds),
	)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
