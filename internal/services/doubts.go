package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"study-buddy/internal/models"
)

const defaultSubject = "general"

type DoubtService struct {
	db *sql.DB
}

func NewDoubtService(db *sql.DB) *DoubtService {
	return &DoubtService{db: db}
}

func (s *DoubtService) Create(ctx context.Context, question, answer, subject string, hasImage bool) (*models.Doubt, error) {
	if strings.TrimSpace(subject) == "" {
		subject = defaultSubject
	}
	d := &models.Doubt{
		ID:        uuid.NewString(),
		Question:  question,
		Answer:    answer,
		Subject:   subject,
		HasImage:  hasImage,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO doubts (id, question, answer, subject, has_image, created_at)
		VALUES (?, ?, ?, ?, ?, ?);
	`, d.ID, d.Question, d.Answer, d.Subject, d.HasImage, d.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert doubt: %w", err)
	}
	return d, nil
}

// List returns the most recent doubts, newest first.
func (s *DoubtService) List(ctx context.Context) ([]models.Doubt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question, answer, subject, has_image, created_at
		FROM doubts
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?;
	`, listLimit)
	if err != nil {
		return nil, fmt.Errorf("list doubts: %w", err)
	}
	defer rows.Close()

	doubts := []models.Doubt{}
	for rows.Next() {
		var d models.Doubt
		if err := rows.Scan(&d.ID, &d.Question, &d.Answer, &d.Subject, &d.HasImage, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan doubt: %w", err)
		}
		doubts = append(doubts, d)
	}
	return doubts, rows.Err()
}
