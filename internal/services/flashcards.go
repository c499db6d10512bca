package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
	"github.com/rs/zerolog"

	"study-buddy/internal/models"
	"study-buddy/internal/normalize"
)

const (
	workingQueueSize = 20

	flashcardColumns = `
		c.id, c.document_id, c.question, c.answer, c.tag,
		c.due, c.stability, c.difficulty, c.elapsed_days, c.scheduled_days,
		c.reps, c.lapses, c.state, c.last_review, c.created_at, c.updated_at,
		c.working_queue_position, d.filename`
	flashcardFrom = `
		FROM flashcards c
		LEFT JOIN documents d ON c.document_id = d.id`
)

// ParseRating maps a review button name to an FSRS rating.
func ParseRating(s string) (fsrs.Rating, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "again":
		return fsrs.Again, nil
	case "hard":
		return fsrs.Hard, nil
	case "good":
		return fsrs.Good, nil
	case "easy":
		return fsrs.Easy, nil
	default:
		return 0, fmt.Errorf("unknown rating %q", s)
	}
}

// FlashcardService orchestrates card scheduling and persistence with FSRS.
type FlashcardService struct {
	db     *sql.DB
	params fsrs.Parameters
	log    zerolog.Logger
	now    func() time.Time
}

func NewFlashcardService(db *sql.DB, log zerolog.Logger) *FlashcardService {
	return &FlashcardService{
		db:     db,
		params: fsrs.DefaultParam(),
		log:    log.With().Str("component", "flashcards").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ListForDocument returns the cards generated from a document in batch order.
func (s *FlashcardService) ListForDocument(ctx context.Context, documentID string) ([]models.Flashcard, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+flashcardColumns+flashcardFrom+`
		WHERE c.document_id = ?
		ORDER BY c.id ASC;
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list flashcards for %s: %w", documentID, err)
	}
	defer rows.Close()

	cards := []models.Flashcard{}
	for rows.Next() {
		card, err := scanFlashcard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan flashcard: %w", err)
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flashcards: %w", err)
	}
	return cards, nil
}

// SaveBatch persists a normalized batch as new cards, due immediately.
func (s *FlashcardService) SaveBatch(ctx context.Context, documentID string, batch []normalize.Flashcard) (saved []models.Flashcard, err error) {
	if len(batch) == 0 {
		return []models.Flashcard{}, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO flashcards (document_id, question, answer, tag, due, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare flashcard insert: %w", err)
	}
	defer stmt.Close()

	now := s.now()
	docID := sql.NullString{String: documentID, Valid: documentID != ""}
	saved = make([]models.Flashcard, 0, len(batch))
	for _, fc := range batch {
		card := models.Flashcard{
			DocumentID: docID,
			Question:   fc.Question,
			Answer:     fc.Answer,
			Tag:        fc.Tag,
			Due:        sql.NullTime{Time: now, Valid: true},
			State:      int(fsrs.New),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		res, err := stmt.ExecContext(ctx, nullStringPtr(docID), card.Question, card.Answer, card.Tag,
			card.Due.Time, card.State, card.CreatedAt, card.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert flashcard %q: %w", card.Question, err)
		}
		if card.ID, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("flashcard id: %w", err)
		}
		saved = append(saved, card)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit flashcards: %w", err)
	}
	s.log.Info().Str("document_id", documentID).Int("count", len(saved)).Msg("flashcards saved")
	return saved, nil
}

// NextCard returns the next card to review.
// Priority order: 1) cards in the working queue, 2) due cards, 3) the oldest unseen card.
func (s *FlashcardService) NextCard(ctx context.Context) (*models.Flashcard, error) {
	card, err := s.fetchCard(ctx, `SELECT `+flashcardColumns+flashcardFrom+`
		WHERE c.working_queue_position IS NOT NULL
		ORDER BY c.working_queue_position ASC
		LIMIT 1;
	`)
	if err == nil {
		return card, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	card, err = s.fetchCard(ctx, `SELECT `+flashcardColumns+flashcardFrom+`
		WHERE c.due IS NOT NULL AND c.due <= ? AND c.working_queue_position IS NULL
		ORDER BY c.due ASC, c.id ASC
		LIMIT 1;
	`, s.now())
	if err == nil {
		return card, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	card, err = s.fetchCard(ctx, `SELECT `+flashcardColumns+flashcardFrom+`
		WHERE c.working_queue_position IS NULL AND c.reps = 0
		ORDER BY c.created_at ASC, c.id ASC
		LIMIT 1;
	`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoDueCards
		}
		return nil, err
	}
	return card, nil
}

// ReviewCard updates the scheduling information based on the user's rating.
func (s *FlashcardService) ReviewCard(ctx context.Context, cardID int64, rating fsrs.Rating) (card *models.Flashcard, review *models.ReviewLog, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	card, err = scanFlashcard(tx.QueryRowContext(ctx, `SELECT `+flashcardColumns+flashcardFrom+`
		WHERE c.id = ?;
	`, cardID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("flashcard %d: %w", cardID, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("load flashcard %d: %w", cardID, err)
	}

	now := s.now()
	scheduling := s.params.Repeat(card.ToFSRSCard(), now)
	info, ok := scheduling[rating]
	if !ok {
		return nil, nil, fmt.Errorf("rating %d not supported", rating)
	}
	card.ApplyFSRSCard(info.Card)
	card.UpdatedAt = now

	if rating == fsrs.Again {
		err = s.addToWorkingQueue(ctx, tx, cardID)
	} else {
		err = s.removeFromWorkingQueue(ctx, tx, cardID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("update working queue: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE flashcards
		SET due = ?, stability = ?, difficulty = ?, elapsed_days = ?, scheduled_days = ?,
		    reps = ?, lapses = ?, state = ?, last_review = ?, updated_at = ?
		WHERE id = ?;
	`,
		nullTimePtr(card.Due),
		card.Stability,
		card.Difficulty,
		card.ElapsedDays,
		card.ScheduledDays,
		card.Reps,
		card.Lapses,
		card.State,
		nullTimePtr(card.LastReview),
		card.UpdatedAt,
		card.ID,
	); err != nil {
		return nil, nil, fmt.Errorf("update flashcard %d: %w", card.ID, err)
	}

	if err = tx.QueryRowContext(ctx, `SELECT working_queue_position FROM flashcards WHERE id = ?`, cardID).
		Scan(&card.WorkingQueuePosition); err != nil {
		return nil, nil, fmt.Errorf("read queue position: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO review_logs (flashcard_id, rating, scheduled_days, elapsed_days, state, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?);
	`, card.ID, info.ReviewLog.Rating, info.ReviewLog.ScheduledDays, info.ReviewLog.ElapsedDays, info.ReviewLog.State, now); err != nil {
		return nil, nil, fmt.Errorf("insert review log: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit review: %w", err)
	}

	review = &models.ReviewLog{
		FlashcardID:   card.ID,
		Rating:        int(info.ReviewLog.Rating),
		ScheduledDays: int(info.ReviewLog.ScheduledDays),
		ElapsedDays:   int(info.ReviewLog.ElapsedDays),
		State:         int(info.ReviewLog.State),
		ReviewedAt:    now,
	}
	s.log.Debug().Int64("flashcard_id", card.ID).Int("rating", review.Rating).Time("due", card.Due.Time).Msg("flashcard reviewed")
	return card, review, nil
}

// Stats counts cards by scheduling state.
func (s *FlashcardService) Stats(ctx context.Context) (map[string]int, error) {
	var total, due, fresh, learning, reviewing int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN due IS NOT NULL AND due <= ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN state = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN state IN (?, ?) THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN state = ? THEN 1 ELSE 0 END), 0)
		FROM flashcards;
	`, s.now(), int(fsrs.New), int(fsrs.Learning), int(fsrs.Relearning), int(fsrs.Review)).Scan(&total, &due, &fresh, &learning, &reviewing)
	if err != nil {
		return nil, fmt.Errorf("flashcard stats: %w", err)
	}
	return map[string]int{
		"total":    total,
		"due":      due,
		"new":      fresh,
		"learning": learning,
		"review":   reviewing,
	}, nil
}

// addToWorkingQueue appends a card to the working queue, evicting the oldest
// entry once the queue is full.
func (s *FlashcardService) addToWorkingQueue(ctx context.Context, tx *sql.Tx, cardID int64) error {
	var existing sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT working_queue_position FROM flashcards WHERE id = ?`, cardID).Scan(&existing); err != nil {
		return fmt.Errorf("check existing position: %w", err)
	}
	if existing.Valid {
		return nil
	}

	var maxPosition sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(working_queue_position) FROM flashcards`).Scan(&maxPosition); err != nil {
		return fmt.Errorf("get max position: %w", err)
	}

	position := int64(1)
	if maxPosition.Valid {
		position = maxPosition.Int64 + 1
	}

	if position > workingQueueSize {
		if _, err := tx.ExecContext(ctx, `
			UPDATE flashcards SET working_queue_position = NULL
			WHERE working_queue_position = (SELECT MIN(working_queue_position) FROM flashcards);
		`); err != nil {
			return fmt.Errorf("evict oldest card: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE flashcards SET working_queue_position = working_queue_position - 1
			WHERE working_queue_position IS NOT NULL;
		`); err != nil {
			return fmt.Errorf("shift positions: %w", err)
		}
		position = workingQueueSize
	}

	if _, err := tx.ExecContext(ctx, `UPDATE flashcards SET working_queue_position = ? WHERE id = ?`, position, cardID); err != nil {
		return fmt.Errorf("add card to queue: %w", err)
	}
	return nil
}

// removeFromWorkingQueue takes a card out of the working queue and closes the gap.
func (s *FlashcardService) removeFromWorkingQueue(ctx context.Context, tx *sql.Tx, cardID int64) error {
	var position sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT working_queue_position FROM flashcards WHERE id = ?`, cardID).Scan(&position); err != nil {
		return fmt.Errorf("get card position: %w", err)
	}
	if !position.Valid {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE flashcards SET working_queue_position = NULL WHERE id = ?`, cardID); err != nil {
		return fmt.Errorf("remove card from queue: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE flashcards SET working_queue_position = working_queue_position - 1
		WHERE working_queue_position > ?;
	`, position.Int64); err != nil {
		return fmt.Errorf("shift positions down: %w", err)
	}
	return nil
}

func (s *FlashcardService) fetchCard(ctx context.Context, query string, args ...any) (*models.Flashcard, error) {
	return scanFlashcard(s.db.QueryRowContext(ctx, query, args...))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlashcard(row rowScanner) (*models.Flashcard, error) {
	card := &models.Flashcard{}
	if err := row.Scan(
		&card.ID,
		&card.DocumentID,
		&card.Question,
		&card.Answer,
		&card.Tag,
		&card.Due,
		&card.Stability,
		&card.Difficulty,
		&card.ElapsedDays,
		&card.ScheduledDays,
		&card.Reps,
		&card.Lapses,
		&card.State,
		&card.LastReview,
		&card.CreatedAt,
		&card.UpdatedAt,
		&card.WorkingQueuePosition,
		&card.DocumentName,
	); err != nil {
		return nil, err
	}
	return card, nil
}

func nullTimePtr(t sql.NullTime) any {
	if t.Valid {
		return t.Time
	}
	return nil
}

func nullStringPtr(v sql.NullString) any {
	if v.Valid {
		return v.String
	}
	return nil
}
