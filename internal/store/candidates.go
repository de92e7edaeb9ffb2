package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/siteworks/recruitops/internal/construction"
	"github.com/siteworks/recruitops/internal/crm"
)

const candidateColumns = `id, first_name, last_name, email, phone, role, skills, status, location,
	latitude, longitude, available_from, assignment_ends_at, day_rate, notes, source, external_id,
	created_at, updated_at`

var candidateSorts = map[string]bool{
	"last_name": true, "first_name": true, "role": true, "status": true,
	"available_from": true, "created_at": true, "updated_at": true,
}

// CandidateRepo stores candidates
type CandidateRepo struct {
	q   querier
	now func() time.Time
}

// CandidateFilter narrows a candidate listing
type CandidateFilter struct {
	Role   construction.Role
	Status crm.CandidateStatus
	Skill  string
	Search string
	ListOptions
}

func scanCandidate(s scanner) (*crm.Candidate, error) {
	var (
		c          crm.Candidate
		lat, lng   sql.NullFloat64
		from, ends sql.NullTime
		skills     pq.StringArray
	)
	err := s.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Role, &skills, &c.Status,
		&c.Location, &lat, &lng, &from, &ends, &c.DayRate, &c.Notes, &c.Source, &c.ExternalID,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, convertError(err)
	}
	c.Skills = []string(skills)
	if c.Skills == nil {
		c.Skills = []string{}
	}
	c.Latitude, c.Longitude = floatPtr(lat), floatPtr(lng)
	c.AvailableFrom, c.AssignmentEndsAt = timePtr(from), timePtr(ends)
	return &c, nil
}

func candidateArgs(c *crm.Candidate) []any {
	skills := c.Skills
	if skills == nil {
		skills = []string{}
	}
	return []any{
		c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.Role, pq.Array(skills), c.Status,
		c.Location, nullFloat(c.Latitude), nullFloat(c.Longitude), nullTime(c.AvailableFrom),
		nullTime(c.AssignmentEndsAt), c.DayRate, c.Notes, c.Source, c.ExternalID,
		c.CreatedAt, c.UpdatedAt,
	}
}

const candidateValues = `VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

// Create inserts a candidate, assigning an ID when one is not set
func (r *CandidateRepo) Create(ctx context.Context, c *crm.Candidate) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := r.now()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := r.q.ExecContext(ctx, `INSERT INTO candidates (`+candidateColumns+`) `+candidateValues, candidateArgs(c)...)
	if err != nil {
		return fmt.Errorf("failed to create candidate: %w", convertError(err))
	}
	return nil
}

// Get loads a candidate by ID
func (r *CandidateRepo) Get(ctx context.Context, id uuid.UUID) (*crm.Candidate, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id)
	return scanCandidate(row)
}

// List returns candidates matching the filter
func (r *CandidateRepo) List(ctx context.Context, f CandidateFilter) ([]*crm.Candidate, error) {
	var w filter
	if f.Role != "" {
		w.add("role = $%d", f.Role)
	}
	if f.Status != "" {
		w.add("status = $%d", f.Status)
	}
	if f.Skill != "" {
		w.add("skills @> $%d", pq.Array([]string{f.Skill}))
	}
	if f.Search != "" {
		w.add("(first_name || ' ' || last_name || ' ' || email) ILIKE $%d", "%"+f.Search+"%")
	}
	query := `SELECT ` + candidateColumns + ` FROM candidates` + w.where() + w.tail(f.ListOptions, candidateSorts, "last_name")

	return r.query(ctx, query, w.args...)
}

// ListActive returns every candidate who is not unavailable, for bench and
// matching calculations
func (r *CandidateRepo) ListActive(ctx context.Context) ([]*crm.Candidate, error) {
	return r.query(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE status <> $1 ORDER BY last_name, first_name`,
		crm.CandidateUnavailable)
}

func (r *CandidateRepo) query(ctx context.Context, query string, args ...any) ([]*crm.Candidate, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	candidates := make([]*crm.Candidate, 0)
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidates: %w", err)
	}
	return candidates, nil
}

// Update saves every mutable candidate field
func (r *CandidateRepo) Update(ctx context.Context, c *crm.Candidate) error {
	c.UpdatedAt = r.now()
	res, err := r.q.ExecContext(ctx, `UPDATE candidates
		SET first_name = $2, last_name = $3, email = $4, phone = $5, role = $6, skills = $7,
		    status = $8, location = $9, latitude = $10, longitude = $11, available_from = $12,
		    assignment_ends_at = $13, day_rate = $14, notes = $15, updated_at = $16
		WHERE id = $1`,
		c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.Role, pq.Array(c.Skills),
		c.Status, c.Location, nullFloat(c.Latitude), nullFloat(c.Longitude), nullTime(c.AvailableFrom),
		nullTime(c.AssignmentEndsAt), c.DayRate, c.Notes, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update candidate: %w", convertError(err))
	}
	return affectedOne(res)
}

// SetLocation stores geocoded coordinates
func (r *CandidateRepo) SetLocation(ctx context.Context, id uuid.UUID, lat, lng float64) error {
	res, err := r.q.ExecContext(ctx, `UPDATE candidates SET latitude = $2, longitude = $3, updated_at = $4 WHERE id = $1`,
		id, lat, lng, r.now())
	if err != nil {
		return fmt.Errorf("failed to set candidate location: %w", err)
	}
	return affectedOne(res)
}

// ListUngeocoded returns candidates with a location but no coordinates
func (r *CandidateRepo) ListUngeocoded(ctx context.Context, limit int) ([]*crm.Candidate, error) {
	return r.query(ctx, `SELECT `+candidateColumns+` FROM candidates
		WHERE location <> '' AND latitude IS NULL ORDER BY updated_at LIMIT $1`, limit)
}

// Delete removes a candidate
func (r *CandidateRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM candidates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete candidate: %w", convertError(err))
	}
	return affectedOne(res)
}

// Upsert inserts or updates a synced candidate keyed on (source, external_id).
// Coordinates and notes entered locally survive the update. It reports whether
// a new row was created.
func (r *CandidateRepo) Upsert(ctx context.Context, c *crm.Candidate) (bool, error) {
	if c.ExternalID == "" {
		return false, fmt.Errorf("upsert requires an external id")
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := r.now()
	c.CreatedAt, c.UpdatedAt = now, now

	var created bool
	err := r.q.QueryRowContext(ctx, `INSERT INTO candidates (`+candidateColumns+`) `+candidateValues+`
		ON CONFLICT (source, external_id) WHERE external_id <> '' DO UPDATE
		SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name, email = EXCLUDED.email,
		    phone = EXCLUDED.phone, role = EXCLUDED.role, skills = EXCLUDED.skills,
		    status = EXCLUDED.status, location = EXCLUDED.location,
		    available_from = EXCLUDED.available_from, assignment_ends_at = EXCLUDED.assignment_ends_at,
		    day_rate = EXCLUDED.day_rate, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, (xmax = 0)`,
		candidateArgs(c)...,
	).Scan(&c.ID, &c.CreatedAt, &created)
	if err != nil {
		return false, fmt.Errorf("failed to upsert candidate: %w", convertError(err))
	}
	return created, nil
}
