package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/aba-scheduler-api/internal/models"
)

// SessionRepository manages persistence for therapy sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// ListCommittedBetween returns committed sessions whose start falls inside
// the half-open interval [from, to).
func (r *SessionRepository) ListCommittedBetween(ctx context.Context, from, to time.Time) ([]models.Session, error) {
	query := `SELECT id, therapist_id, client_id, service_type, start_at, minutes, status, score, created_at
        FROM sessions WHERE status = $1 AND start_at >= $2 AND start_at < $3 ORDER BY start_at`

	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, models.SessionStatusCommitted, from, to); err != nil {
		return nil, fmt.Errorf("list committed sessions: %w", err)
	}
	return sessions, nil
}

// BulkCreateWithTx inserts the provided sessions inside the caller's
// transaction. Sessions without an ID get one assigned.
func (r *SessionRepository) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, sessions []models.Session) error {
	query := `INSERT INTO sessions (id, therapist_id, client_id, service_type, start_at, minutes, status, score, created_at)
        VALUES (:id, :therapist_id, :client_id, :service_type, :start_at, :minutes, :status, :score, :created_at)`

	for i := range sessions {
		if sessions[i].ID == "" {
			sessions[i].ID = uuid.NewString()
		}
		if sessions[i].CreatedAt.IsZero() {
			sessions[i].CreatedAt = time.Now().UTC()
		}
		if _, err := tx.NamedExecContext(ctx, query, sessions[i]); err != nil {
			return fmt.Errorf("insert session %s: %w", sessions[i].ID, err)
		}
	}
	return nil
}
