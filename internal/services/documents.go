package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"study-buddy/internal/models"
)

// TextExtractor reads the text layer of a stored PDF.
type TextExtractor interface {
	ExtractText(path string) (*PDFText, error)
}

type DocumentService struct {
	db        *sql.DB
	uploadDir string
	pdf       TextExtractor
	log       zerolog.Logger
}

func NewDocumentService(db *sql.DB, uploadDir string, pdf TextExtractor, log zerolog.Logger) *DocumentService {
	return &DocumentService{
		db:        db,
		uploadDir: uploadDir,
		pdf:       pdf,
		log:       log.With().Str("component", "documents").Logger(),
	}
}

// Create stores an uploaded PDF, extracts its text and records it.
func (s *DocumentService) Create(ctx context.Context, filename string, src io.Reader) (*models.Document, error) {
	storedPath, err := s.Store(filename, src)
	if err != nil {
		return nil, err
	}
	text, err := s.pdf.ExtractText(storedPath)
	if err != nil {
		s.discard(storedPath)
		return nil, fmt.Errorf("extract text from %s: %w", filename, err)
	}
	doc, err := s.Insert(ctx, filename, storedPath, text)
	if err != nil {
		s.discard(storedPath)
		return nil, err
	}
	return doc, nil
}

// Store writes src under a fresh uuid name in the upload directory and
// returns the stored path.
func (s *DocumentService) Store(filename string, src io.Reader) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure upload dir: %w", err)
	}

	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".pdf"
	}
	storedPath := filepath.Join(s.uploadDir, uuid.NewString()+ext)
	out, err := os.Create(storedPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		s.discard(storedPath)
		return "", fmt.Errorf("write file: %w", err)
	}
	return storedPath, nil
}

// Insert records a stored PDF and its extracted text.
func (s *DocumentService) Insert(ctx context.Context, filename, storedPath string, text *PDFText) (*models.Document, error) {
	doc := &models.Document{
		ID:         uuid.NewString(),
		Filename:   filename,
		StoredPath: storedPath,
		Text:       text.Text,
		PageCount:  text.Pages,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, stored_path, text, page_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?);
	`, doc.ID, doc.Filename, doc.StoredPath, doc.Text, doc.PageCount, doc.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}

	s.log.Info().
		Str("document_id", doc.ID).
		Str("filename", filename).
		Int("pages", doc.PageCount).
		Int("text_length", len(doc.Text)).
		Msg("document stored")
	return doc, nil
}

// List returns all documents, newest first, without their text.
func (s *DocumentService) List(ctx context.Context) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, stored_path, page_count, created_at
		FROM documents
		ORDER BY created_at DESC, rowid DESC;
	`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.StoredPath, &doc.PageCount, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, stored_path, text, page_count, created_at
		FROM documents WHERE id = ?;
	`, id)
	var doc models.Document
	if err := row.Scan(&doc.ID, &doc.Filename, &doc.StoredPath, &doc.Text, &doc.PageCount, &doc.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &doc, nil
}

// Delete removes a document, its stored file, and the flashcards and quizzes
// generated from it.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?;`, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	// Foreign keys cascade to flashcards, quizzes and quiz_questions.
	s.discard(doc.StoredPath)

	s.log.Info().Str("document_id", id).Msg("document deleted")
	return nil
}

func (s *DocumentService) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn().Err(err).Str("path", path).Msg("failed to remove stored file")
	}
}
