package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"study-buddy/internal/models"
	"study-buddy/internal/normalize"
)

// MinQuizTextLength is the shortest document text quizzes are generated from.
const MinQuizTextLength = 100

const (
	listLimit         = 50
	sourcePreviewSize = 1000
)

// NewQuiz describes a quiz to persist. DocumentID is empty for quizzes
// generated from pasted text.
type NewQuiz struct {
	DocumentID string
	Topic      string
	SourceText string
	Questions  []normalize.QuizItem
}

type QuizService struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewQuizService(db *sql.DB, log zerolog.Logger) *QuizService {
	return &QuizService{db: db, log: log.With().Str("component", "quizzes").Logger()}
}

// Create stores a quiz and its questions. Both the answer index and the
// answer text are kept for every question.
func (s *QuizService) Create(ctx context.Context, in NewQuiz) (quiz *models.Quiz, err error) {
	quiz = &models.Quiz{
		ID:         uuid.NewString(),
		DocumentID: sql.NullString{String: in.DocumentID, Valid: in.DocumentID != ""},
		Topic:      in.Topic,
		SourceText: truncateRunes(in.SourceText, sourcePreviewSize),
		Questions:  in.Questions,
		CreatedAt:  time.Now().UTC(),
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

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO quizzes (id, document_id, topic, source_text, created_at)
		VALUES (?, ?, ?, ?, ?);
	`, quiz.ID, nullStringPtr(quiz.DocumentID), quiz.Topic, quiz.SourceText, quiz.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert quiz: %w", err)
	}

	for i, q := range in.Questions {
		options, mErr := json.Marshal(q.Options)
		if mErr != nil {
			err = fmt.Errorf("encode options: %w", mErr)
			return nil, err
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO quiz_questions (quiz_id, position, question, options, answer_index, correct_answer, explanation)
			VALUES (?, ?, ?, ?, ?, ?, ?);
		`, quiz.ID, i, q.Question, string(options), q.AnswerIndex, q.AnswerText, q.Explanation); err != nil {
			return nil, fmt.Errorf("insert quiz question %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit quiz: %w", err)
	}

	s.log.Info().
		Str("quiz_id", quiz.ID).
		Str("document_id", in.DocumentID).
		Int("questions", len(in.Questions)).
		Msg("quiz saved")
	return quiz, nil
}

func (s *QuizService) Get(ctx context.Context, id string) (*models.Quiz, error) {
	quiz, err := s.scanQuiz(s.db.QueryRowContext(ctx, `
		SELECT q.id, q.document_id, d.filename, q.topic, q.source_text, q.created_at
		FROM quizzes q
		LEFT JOIN documents d ON q.document_id = d.id
		WHERE q.id = ?;
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	if err := s.loadQuestions(ctx, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

// List returns the most recent quizzes with their questions.
func (s *QuizService) List(ctx context.Context) ([]models.Quiz, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.document_id, d.filename, q.topic, q.source_text, q.created_at
		FROM quizzes q
		LEFT JOIN documents d ON q.document_id = d.id
		ORDER BY q.created_at DESC, q.rowid DESC
		LIMIT ?;
	`, listLimit)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}

	quizzes := []models.Quiz{}
	for rows.Next() {
		quiz, err := s.scanQuiz(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		quizzes = append(quizzes, *quiz)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate quizzes: %w", err)
	}
	// The single connection must be free before the per-quiz queries run.
	rows.Close()

	for i := range quizzes {
		if err := s.loadQuestions(ctx, &quizzes[i]); err != nil {
			return nil, err
		}
	}
	return quizzes, nil
}

// LatestForDocument returns the newest quiz with questions generated from a
// document.
func (s *QuizService) LatestForDocument(ctx context.Context, documentID string) (*models.Quiz, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT q.id FROM quizzes q
		WHERE q.document_id = ?
		  AND EXISTS (SELECT 1 FROM quiz_questions qq WHERE qq.quiz_id = q.id)
		ORDER BY q.created_at DESC, q.rowid DESC
		LIMIT 1;
	`, documentID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("quiz for document %s: %w", documentID, ErrNotFound)
		}
		return nil, fmt.Errorf("latest quiz for %s: %w", documentID, err)
	}
	return s.Get(ctx, id)
}

func (s *QuizService) scanQuiz(row rowScanner) (*models.Quiz, error) {
	var quiz models.Quiz
	if err := row.Scan(&quiz.ID, &quiz.DocumentID, &quiz.DocumentName, &quiz.Topic, &quiz.SourceText, &quiz.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan quiz: %w", err)
	}
	return &quiz, nil
}

func (s *QuizService) loadQuestions(ctx context.Context, quiz *models.Quiz) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question, options, answer_index, correct_answer, explanation
		FROM quiz_questions
		WHERE quiz_id = ?
		ORDER BY position ASC;
	`, quiz.ID)
	if err != nil {
		return fmt.Errorf("load questions for %s: %w", quiz.ID, err)
	}
	defer rows.Close()

	quiz.Questions = []normalize.QuizItem{}
	for rows.Next() {
		var (
			item    normalize.QuizItem
			options string
		)
		if err := rows.Scan(&item.Question, &options, &item.AnswerIndex, &item.AnswerText, &item.Explanation); err != nil {
			return fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal([]byte(options), &item.Options); err != nil {
			return fmt.Errorf("decode options: %w", err)
		}
		quiz.Questions = append(quiz.Questions, item)
	}
	return rows.Err()
}
