package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-client/internal/domain"
)

// Journal appends completed attempts to the quiz_attempts table.
type Journal struct {
	pool *pgxpool.Pool
}

func NewJournal(pool *pgxpool.Pool) *Journal {
	return &Journal{pool: pool}
}

func (j *Journal) Record(ctx context.Context, a domain.Attempt) error {
	_, err := j.pool.Exec(ctx, `
		INSERT INTO quiz_attempts (session_id, result_id, score, total, reason, submission, error, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.SessionID, a.ResultID, a.Score, a.Total, string(a.Reason), string(a.Submission), a.Error, a.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// Recent returns up to limit attempts, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]domain.Attempt, error) {
	rows, err := j.pool.Query(ctx, `
		SELECT session_id, result_id, score, total, reason, submission, error, completed_at
		FROM quiz_attempts
		ORDER BY completed_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.Attempt
	for rows.Next() {
		var (
			a                  domain.Attempt
			reason, submission string
		)
		if err := rows.Scan(&a.SessionID, &a.ResultID, &a.Score, &a.Total, &reason, &submission, &a.Error, &a.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Reason = domain.CompletionReason(reason)
		a.Submission = domain.SubmissionState(submission)
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}
