package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"study-buddy/internal/models"
)

// MinFlashcardTextLength is the shortest document text flashcards are
// generated from.
const MinFlashcardTextLength = 50

// ProgressCallback is called during document processing to report progress.
type ProgressCallback func(step, message string, current, total int)

// IngestOptions selects the optional work done after text extraction.
type IngestOptions struct {
	GenerateFlashcards bool
}

// IngestResult summarizes one processed upload.
type IngestResult struct {
	Document       *models.Document
	FlashcardCount int
	// Warning is set when optional work failed but the document was kept.
	Warning string
}

// IngestionService coordinates PDF parsing, optional flashcard generation and
// persistence for uploads processed in the background.
type IngestionService struct {
	documents *DocumentService
	pdf       TextExtractor
	ai        *AIService
	cards     *FlashcardService
	log       zerolog.Logger
}

func NewIngestionService(
	documents *DocumentService,
	pdf TextExtractor,
	ai *AIService,
	cards *FlashcardService,
	log zerolog.Logger,
) *IngestionService {
	return &IngestionService{
		documents: documents,
		pdf:       pdf,
		ai:        ai,
		cards:     cards,
		log:       log.With().Str("component", "ingestion").Logger(),
	}
}

// ProcessStored extracts and records a PDF already written by
// DocumentService.Store. The stored file is removed when processing fails.
func (s *IngestionService) ProcessStored(ctx context.Context, filename, storedPath string, opts IngestOptions, progress ProgressCallback) (*IngestResult, error) {
	report := func(step, message string, current int) {
		if progress != nil {
			progress(step, message, current, 100)
		}
	}

	report("extract", "Extracting text from PDF", 10)
	text, err := s.pdf.ExtractText(storedPath)
	if err != nil {
		s.documents.discard(storedPath)
		return nil, fmt.Errorf("extract text from %s: %w", filename, err)
	}

	report("save", fmt.Sprintf("Saving %d pages of text", text.Pages), 50)
	doc, err := s.documents.Insert(ctx, filename, storedPath, text)
	if err != nil {
		s.documents.discard(storedPath)
		return nil, err
	}
	result := &IngestResult{Document: doc}

	if opts.GenerateFlashcards {
		report("flashcards", "Generating flashcards", 60)
		count, err := s.generateFlashcards(ctx, doc)
		if err != nil {
			// The document stays usable; flashcards can be generated later.
			result.Warning = err.Error()
			s.log.Warn().Err(err).Str("document_id", doc.ID).Msg("flashcard generation after upload failed")
		}
		result.FlashcardCount = count
		report("flashcards", fmt.Sprintf("Saved %d flashcards", count), 95)
	}

	report("complete", "Processing complete", 100)
	return result, nil
}

func (s *IngestionService) generateFlashcards(ctx context.Context, doc *models.Document) (int, error) {
	if len(strings.TrimSpace(doc.Text)) < MinFlashcardTextLength {
		return 0, errors.New("document text is too short to generate flashcards")
	}
	batch, err := s.ai.GenerateFlashcards(ctx, doc.Text)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, errors.New("the model returned no usable flashcards")
	}
	saved, err := s.cards.SaveBatch(ctx, doc.ID, batch)
	if err != nil {
		return 0, err
	}
	return len(saved), nil
}
