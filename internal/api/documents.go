package api

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"study-buddy/internal/models"
	"study-buddy/internal/services"
)

type documentSummary struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"createdAt"`
}

type documentResponse struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

func summarizeDocuments(docs []models.Document) []documentSummary {
	out := make([]documentSummary, 0, len(docs))
	for _, doc := range docs {
		out = append(out, documentSummary{ID: doc.ID, Filename: doc.Filename, CreatedAt: doc.CreatedAt})
	}
	return out
}

func (s *Server) handleUploadPDF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if !s.parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("pdf")
	if err != nil {
		writeError(w, http.StatusBadRequest, "PDF file is required")
		return
	}
	defer file.Close()

	if !isPDF(header) {
		writeError(w, http.StatusBadRequest, "only PDF files are supported")
		return
	}

	doc, err := s.svc.Documents.Create(r.Context(), header.Filename, file)
	if err != nil {
		writeServiceError(w, r, err, "Failed to process PDF")
		return
	}

	writeJSON(w, http.StatusOK, documentResponse{ID: doc.ID, Filename: doc.Filename, Text: doc.Text})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.svc.Documents.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Failed to list documents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": summarizeDocuments(docs)})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.Documents.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to get document")
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{ID: doc.ID, Filename: doc.Filename, Text: doc.Text})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.Documents.Delete(r.Context(), id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Document not found")
			return
		}
		writeServiceError(w, r, err, "Failed to delete document")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Document deleted successfully",
		"id":      id,
	})
}

// storedUpload is a file copied out of the multipart form before the
// request ends. err is set when the copy failed.
type storedUpload struct {
	name string
	path string
	err  error
}

func (s *Server) handleCreateUploadJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if !s.parseMultipart(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	opts := services.IngestOptions{}
	if raw := r.FormValue("flashcards"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "flashcards must be true or false")
			return
		}
		opts.GenerateFlashcards = enabled
	}

	fileNames := make([]string, len(files))
	for i, file := range files {
		fileNames[i] = file.Filename
	}
	snapshot := s.jobs.CreateJob(fileNames)

	// The multipart temp files are removed when the request returns.
	uploads := make([]storedUpload, len(files))
	for i, header := range files {
		uploads[i] = s.storeUpload(header)
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		s.runUploadJob(context.Background(), snapshot.ID, uploads, opts)
	}()

	writeJSON(w, http.StatusAccepted, snapshot)
}

func (s *Server) storeUpload(header *multipart.FileHeader) storedUpload {
	upload := storedUpload{name: header.Filename}
	if !isPDF(header) {
		upload.err = errors.New("only PDF files are supported")
		return upload
	}
	src, err := header.Open()
	if err != nil {
		upload.err = fmt.Errorf("open file %s: %w", header.Filename, err)
		return upload
	}
	defer src.Close()

	upload.path, upload.err = s.svc.Documents.Store(header.Filename, src)
	return upload
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.GetJob(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) runUploadJob(ctx context.Context, jobID string, uploads []storedUpload, opts services.IngestOptions) {
	log := s.log.With().Str("job_id", jobID).Logger()
	s.jobs.MarkProcessing(jobID)

	for idx, upload := range uploads {
		s.jobs.MarkFileStarted(jobID, idx)
		result := DocumentResult{Name: upload.name}
		if upload.err != nil {
			s.jobs.MarkFileError(jobID, idx, upload.err.Error(), result)
			continue
		}

		progress := func(step, message string, current, total int) {
			s.jobs.UpdateFileProgress(jobID, idx, step, message, current, total)
		}
		ingested, err := s.svc.Ingestion.ProcessStored(ctx, upload.name, upload.path, opts, progress)
		if err != nil {
			log.Warn().Err(err).Str("filename", upload.name).Msg("upload processing failed")
			s.jobs.MarkFileError(jobID, idx, err.Error(), result)
			continue
		}

		result.DocumentID = ingested.Document.ID
		result.Pages = ingested.Document.PageCount
		result.Flashcards = ingested.FlashcardCount
		result.Message = ingested.Warning
		s.jobs.MarkFileComplete(jobID, idx, result)
	}

	s.jobs.MarkCompleted(jobID)
	log.Info().Int("files", len(uploads)).Msg("upload job finished")
}

func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return false
	}
	return true
}

func isPDF(header *multipart.FileHeader) bool {
	if strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		return true
	}
	return strings.HasPrefix(header.Header.Get("Content-Type"), "application/pdf")
}
