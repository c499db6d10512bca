package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"study-buddy/internal/models"
)

const weakTopicThreshold = 0.6

// TopicPerformance is a learner's result on one topic.
type TopicPerformance struct {
	CorrectRate float64 `json:"correctRate"`
}

// Recommendation is one step of a suggested study path.
type Recommendation struct {
	Topic string `json:"topic"`
	Level string `json:"level"`
}

type AnalyticsService struct {
	db *sql.DB
}

func NewAnalyticsService(db *sql.DB) *AnalyticsService {
	return &AnalyticsService{db: db}
}

// RecordResult appends a quiz result to the history.
func (s *AnalyticsService) RecordResult(ctx context.Context, score, total int, topic string, timeTakenSec int) (*models.QuizResult, error) {
	result := &models.QuizResult{
		Score:        score,
		Total:        total,
		Topic:        topic,
		TimeTakenSec: max(timeTakenSec, 0),
		TakenAt:      time.Now().UTC(),
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO quiz_results (score, total, topic, time_taken_sec, taken_at)
		VALUES (?, ?, ?, ?, ?);
	`, result.Score, result.Total, result.Topic, result.TimeTakenSec, result.TakenAt)
	if err != nil {
		return nil, fmt.Errorf("insert quiz result: %w", err)
	}
	if result.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("quiz result id: %w", err)
	}
	return result, nil
}

// History returns every recorded result, oldest first.
func (s *AnalyticsService) History(ctx context.Context) ([]models.QuizResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, score, total, topic, time_taken_sec, taken_at
		FROM quiz_results
		ORDER BY taken_at ASC, id ASC;
	`)
	if err != nil {
		return nil, fmt.Errorf("list quiz results: %w", err)
	}
	defer rows.Close()

	history := []models.QuizResult{}
	for rows.Next() {
		var r models.QuizResult
		if err := rows.Scan(&r.ID, &r.Score, &r.Total, &r.Topic, &r.TimeTakenSec, &r.TakenAt); err != nil {
			return nil, fmt.Errorf("scan quiz result: %w", err)
		}
		history = append(history, r)
	}
	return history, rows.Err()
}

// StudyPath recommends revisiting weak topics at an easy level, or moving on
// when every topic is above the threshold. Topics are returned sorted.
func (s *AnalyticsService) StudyPath(performance map[string]TopicPerformance) []Recommendation {
	var weak []string
	for topic, p := range performance {
		if p.CorrectRate < weakTopicThreshold {
			weak = append(weak, topic)
		}
	}
	if len(weak) == 0 {
		return []Recommendation{{Topic: "Next Chapter", Level: "medium"}}
	}

	sort.Strings(weak)
	recs := make([]Recommendation, len(weak))
	for i, topic := range weak {
		recs[i] = Recommendation{Topic: topic, Level: "easy"}
	}
	return recs
}
