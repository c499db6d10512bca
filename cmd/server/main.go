package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"study-buddy/internal/api"
	"study-buddy/internal/config"
	"study-buddy/internal/db"
	"study-buddy/internal/logger"
	"study-buddy/internal/ocr"
	"study-buddy/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.Setup("info", "json")
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)
	log.Info().
		Int("port", cfg.Server.Port).
		Str("database", cfg.Storage.DatabasePath).
		Str("model", cfg.Groq.Model).
		Msg("Starting study-buddy")

	if err := cfg.EnsureDirs(); err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare storage directories")
	}

	conn, err := db.Open(cfg.Storage.DatabasePath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer conn.Close()

	ai, err := services.NewAIService(services.AIConfig{
		APIKey:  cfg.Groq.APIKey,
		BaseURL: cfg.Groq.BaseURL,
		Model:   cfg.Groq.Model,
		Timeout: cfg.Groq.Timeout,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure generation client")
	}
	if !ai.Enabled() {
		log.Warn().Msg("GROQ_API_KEY not set; generation endpoints will return 503")
	}

	vision := ocr.NewService(ocr.Config{
		APIKey:  cfg.OCR.APIKey,
		BaseURL: cfg.OCR.BaseURL,
		Model:   cfg.OCR.Model,
	}, log)
	if cfg.OCR.APIKey == "" {
		log.Warn().Msg("OCR_API_KEY not set; image input is disabled")
	}

	pdf := services.NewPDFService()
	documents := services.NewDocumentService(conn, cfg.Storage.UploadDir, pdf, log)
	flashcards := services.NewFlashcardService(conn, log)

	server := api.NewServer(api.Services{
		Documents:  documents,
		Ingestion:  services.NewIngestionService(documents, pdf, ai, flashcards, log),
		AI:         ai,
		Flashcards: flashcards,
		Quizzes:    services.NewQuizService(conn, log),
		Doubts:     services.NewDoubtService(conn),
		Analytics:  services.NewAnalyticsService(conn),
		OCR:        vision,
	}, api.Options{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		CORS:           cfg.CORS,
	}, log)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info().Msg("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := server.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Upload jobs still running at shutdown")
	}

	log.Info().Msg("Shutdown complete")
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
