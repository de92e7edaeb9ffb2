package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// User is a dashboard login
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserRepo stores users
type UserRepo struct {
	q   querier
	now func() time.Time
}

const userColumns = `id, email, name, password_hash, roles, created_at`

func scanUser(s scanner) (*User, error) {
	var (
		u     User
		roles pq.StringArray
	)
	if err := s.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &roles, &u.CreatedAt); err != nil {
		return nil, convertError(err)
	}
	u.Roles = []string(roles)
	return &u, nil
}

// Create inserts a user. Emails are stored lower-cased.
func (r *UserRepo) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = r.now()
	if u.Roles == nil {
		u.Roles = []string{}
	}

	_, err := r.q.ExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.Name, u.PasswordHash, pq.Array(u.Roles), u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", convertError(err))
	}
	return nil
}

// GetByEmail loads a user by email address
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

// Get loads a user by ID
func (r *UserRepo) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// TranscriptMessage is one stored advisor chat turn
type TranscriptMessage struct {
	Advisor   string    `json:"advisor"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// TranscriptRepo stores advisor chat transcripts
type TranscriptRepo struct {
	q   querier
	now func() time.Time
}

// Append stores chat turns in order
func (r *TranscriptRepo) Append(ctx context.Context, msgs ...TranscriptMessage) error {
	for i := range msgs {
		if msgs[i].CreatedAt.IsZero() {
			msgs[i].CreatedAt = r.now()
		}
		m := msgs[i]
		if _, err := r.q.ExecContext(ctx, `INSERT INTO advisor_messages (advisor, session_id, role, content, created_at)
			VALUES ($1, $2, $3, $4, $5)`, m.Advisor, m.SessionID, m.Role, m.Content, m.CreatedAt); err != nil {
			return fmt.Errorf("failed to store advisor message: %w", err)
		}
	}
	return nil
}

// List returns the latest limit turns of a session, oldest first
func (r *TranscriptRepo) List(ctx context.Context, advisor, sessionID string, limit int) ([]TranscriptMessage, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT advisor, session_id, role, content, created_at FROM (
			SELECT advisor, session_id, role, content, created_at, id FROM advisor_messages
			WHERE advisor = $1 AND session_id = $2
			ORDER BY id DESC LIMIT $3
		) latest ORDER BY id ASC`, advisor, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list advisor messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]TranscriptMessage, 0)
	for rows.Next() {
		var m TranscriptMessage
		if err := rows.Scan(&m.Advisor, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan advisor message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Clear deletes every stored turn of a session
func (r *TranscriptRepo) Clear(ctx context.Context, advisor, sessionID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM advisor_messages WHERE advisor = $1 AND session_id = $2`, advisor, sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear advisor messages: %w", err)
	}
	return nil
}
