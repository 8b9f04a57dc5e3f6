package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"zapstock/internal/domain"

	"github.com/google/uuid"
)

// SessionRepository defines the interface for login session data access
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	FindByToken(ctx context.Context, token string) (*domain.Session, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	Revoke(ctx context.Context, token string) error
}

type sessionRepository struct {
	db DBTX
}

// NewSessionRepository creates a new instance of SessionRepository
func NewSessionRepository(db DBTX) SessionRepository {
	return &sessionRepository{db: db}
}

// Create inserts a new session into the database using parameterized queries
func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, token, expires_at, created_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		session.ID,
		session.UserID,
		session.Token,
		session.ExpiresAt,
		session.CreatedAt,
		session.Revoked,
	)

	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

func (r *sessionRepository) findOne(ctx context.Context, where string, arg any) (*domain.Session, error) {
	query := `
		SELECT id, user_id, token, expires_at, created_at, revoked
		FROM sessions
		WHERE ` + where

	session := &domain.Session{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.ExpiresAt,
		&session.CreatedAt,
		&session.Revoked,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	if session.Revoked {
		return nil, domain.ErrSessionRevoked
	}

	return session, nil
}

// FindByToken retrieves a live session by its opaque token
func (r *sessionRepository) FindByToken(ctx context.Context, token string) (*domain.Session, error) {
	return r.findOne(ctx, "token = $1", token)
}

// FindByID retrieves a live session by ID
func (r *sessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	return r.findOne(ctx, "id = $1", id)
}

// Revoke marks a session as revoked using parameterized queries
func (r *sessionRepository) Revoke(ctx context.Context, token string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE sessions SET revoked = TRUE WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrSessionNotFound
	}

	return nil
}
