package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"study-buddy/internal/config"
	"study-buddy/internal/ocr"
	"study-buddy/internal/services"
)

const maxMultipartMemory = 8 << 20 // 8 MB

// Services bundles the dependencies the handlers call.
type Services struct {
	Documents  *services.DocumentService
	Ingestion  *services.IngestionService
	AI         *services.AIService
	Flashcards *services.FlashcardService
	Quizzes    *services.QuizService
	Doubts     *services.DoubtService
	Analytics  *services.AnalyticsService
	OCR        ocr.Service
}

// Options tunes the HTTP surface.
type Options struct {
	MaxUploadBytes int64
	CORS           config.CORSConfig
}

type Server struct {
	router    chi.Router
	svc       Services
	opts      Options
	jobs      *JobManager
	validator *requestValidator
	log       zerolog.Logger

	// background tracks upload jobs still running.
	background sync.WaitGroup
}

func NewServer(svc Services, opts Options, log zerolog.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 25 << 20
	}
	s := &Server{
		router:    chi.NewRouter(),
		svc:       svc,
		opts:      opts,
		jobs:      NewJobManager(),
		validator: newRequestValidator(),
		log:       log.With().Str("component", "api").Logger(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Wait blocks until running upload jobs finish or ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogging(s.log)...)
	r.Use(middleware.Recoverer)
	r.Use(cors(s.opts.CORS))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/pdf", func(r chi.Router) {
			r.Post("/upload", s.handleUploadPDF)
			r.Get("/", s.handleListDocuments)
			r.Post("/jobs", s.handleCreateUploadJob)
			r.Get("/jobs/{id}", s.handleJobStatus)
			r.Get("/{id}", s.handleGetDocument)
			r.Delete("/{id}", s.handleDeleteDocument)
		})

		r.Post("/summarize", s.handleSummarize)

		r.Route("/flashcards", func(r chi.Router) {
			r.Post("/", s.handleGenerateFlashcardsFromText)
			r.Get("/pdfs", s.handleListFlashcardDocuments)
			r.Post("/generate/{documentId}", s.handleGenerateDocumentFlashcards)
			r.Get("/document/{documentId}", s.handleGetDocumentFlashcards)
			r.Get("/next", s.handleNextFlashcard)
			r.Get("/stats", s.handleFlashcardStats)
			r.Post("/{id}/review", s.handleReviewFlashcard)
		})

		r.Post("/quiz", s.handleGenerateQuizFromText)
		r.Post("/quiz/result", s.handleQuizResult)
		r.Route("/quizzes", func(r chi.Router) {
			r.Get("/", s.handleListQuizzes)
			r.Post("/generate/{documentId}", s.handleGenerateDocumentQuiz)
			r.Get("/{id}", s.handleGetQuiz)
			r.Post("/{id}/submit", s.handleSubmitQuiz)
		})

		r.Post("/solve", s.handleSolve)
		r.Post("/ai/doubt", s.handleDoubt)
		r.Get("/study/doubts", s.handleListDoubts)

		r.Post("/study-path", s.handleStudyPath)
		r.Get("/analytics", s.handleAnalytics)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
