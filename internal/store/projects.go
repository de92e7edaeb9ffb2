package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/siteworks/recruitops/internal/crm"
)

const projectColumns = `id, client_id, name, contract_value, size, status, probability, start_date,
	location, latitude, longitude, notes, source, external_id, created_at, updated_at`

const projectValues = `VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

var projectSorts = map[string]bool{
	"name": true, "start_date": true, "status": true, "probability": true, "created_at": true,
}

// ProjectRepo stores projects
type ProjectRepo struct {
	q   querier
	now func() time.Time
}

// ProjectFilter narrows a project listing
type ProjectFilter struct {
	Statuses []crm.ProjectStatus
	ClientID *uuid.UUID
	Search   string
	ListOptions
}

func scanProject(s scanner) (*crm.Project, error) {
	var (
		p        crm.Project
		clientID uuid.NullUUID
		lat, lng sql.NullFloat64
	)
	err := s.Scan(&p.ID, &clientID, &p.Name, &p.ContractValue, &p.Size, &p.Status, &p.Probability,
		&p.StartDate, &p.Location, &lat, &lng, &p.Notes, &p.Source, &p.ExternalID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, convertError(err)
	}
	if clientID.Valid {
		id := clientID.UUID
		p.ClientID = &id
	}
	p.Latitude, p.Longitude = floatPtr(lat), floatPtr(lng)
	return &p, nil
}

func projectArgs(p *crm.Project) []any {
	var clientID uuid.NullUUID
	if p.ClientID != nil {
		clientID = uuid.NullUUID{UUID: *p.ClientID, Valid: true}
	}
	return []any{
		p.ID, clientID, p.Name, p.ContractValue, p.Size, p.Status, p.Probability, p.StartDate,
		p.Location, nullFloat(p.Latitude), nullFloat(p.Longitude), p.Notes, p.Source, p.ExternalID,
		p.CreatedAt, p.UpdatedAt,
	}
}

// Create inserts a project, assigning an ID when one is not set
func (r *ProjectRepo) Create(ctx context.Context, p *crm.Project) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := r.now()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := r.q.ExecContext(ctx, `INSERT INTO projects (`+projectColumns+`) `+projectValues, projectArgs(p)...)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", convertError(err))
	}
	return nil
}

// Get loads a project by ID
func (r *ProjectRepo) Get(ctx context.Context, id uuid.UUID) (*crm.Project, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	return scanProject(row)
}

// List returns projects matching the filter
func (r *ProjectRepo) List(ctx context.Context, f ProjectFilter) ([]*crm.Project, error) {
	var w filter
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		w.add("status = ANY($%d)", pq.Array(statuses))
	}
	if f.ClientID != nil {
		w.add("client_id = $%d", *f.ClientID)
	}
	if f.Search != "" {
		w.add("name ILIKE $%d", "%"+f.Search+"%")
	}
	query := `SELECT ` + projectColumns + ` FROM projects` + w.where() + w.tail(f.ListOptions, projectSorts, "start_date")
	return r.query(ctx, query, w.args...)
}

// ListLive returns every won, active and pipeline project for forecasting
func (r *ProjectRepo) ListLive(ctx context.Context) ([]*crm.Project, error) {
	return r.query(ctx, `SELECT `+projectColumns+` FROM projects WHERE status = ANY($1) ORDER BY start_date, name`,
		pq.Array([]string{string(crm.ProjectWon), string(crm.ProjectActive), string(crm.ProjectPipeline)}))
}

// ListUngeocoded returns projects with a location but no coordinates
func (r *ProjectRepo) ListUngeocoded(ctx context.Context, limit int) ([]*crm.Project, error) {
	return r.query(ctx, `SELECT `+projectColumns+` FROM projects
		WHERE location <> '' AND latitude IS NULL ORDER BY updated_at LIMIT $1`, limit)
}

func (r *ProjectRepo) query(ctx context.Context, query string, args ...any) ([]*crm.Project, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]*crm.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

// Update saves every mutable project field
func (r *ProjectRepo) Update(ctx context.Context, p *crm.Project) error {
	p.UpdatedAt = r.now()
	args := projectArgs(p)
	res, err := r.q.ExecContext(ctx, `UPDATE projects
		SET client_id = $2, name = $3, contract_value = $4, size = $5, status = $6, probability = $7,
		    start_date = $8, location = $9, latitude = $10, longitude = $11, notes = $12, updated_at = $13
		WHERE id = $1`,
		args[0], args[1], args[2], args[3], args[4], args[5], args[6], args[7], args[8], args[9], args[10], args[11], p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", convertError(err))
	}
	return affectedOne(res)
}

// SetLocation stores geocoded coordinates
func (r *ProjectRepo) SetLocation(ctx context.Context, id uuid.UUID, lat, lng float64) error {
	res, err := r.q.ExecContext(ctx, `UPDATE projects SET latitude = $2, longitude = $3, updated_at = $4 WHERE id = $1`,
		id, lat, lng, r.now())
	if err != nil {
		return fmt.Errorf("failed to set project location: %w", err)
	}
	return affectedOne(res)
}

// Delete removes a project
func (r *ProjectRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", convertError(err))
	}
	return affectedOne(res)
}

// Upsert inserts or updates a synced project keyed on (source, external_id)
func (r *ProjectRepo) Upsert(ctx context.Context, p *crm.Project) (bool, error) {
	if p.ExternalID == "" {
		return false, fmt.Errorf("upsert requires an external id")
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := r.now()
	p.CreatedAt, p.UpdatedAt = now, now

	var created bool
	err := r.q.QueryRowContext(ctx, `INSERT INTO projects (`+projectColumns+`) `+projectValues+`
		ON CONFLICT (source, external_id) WHERE external_id <> '' DO UPDATE
		SET name = EXCLUDED.name, contract_value = EXCLUDED.contract_value, size = EXCLUDED.size,
		    status = EXCLUDED.status, probability = EXCLUDED.probability, start_date = EXCLUDED.start_date,
		    location = EXCLUDED.location, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, (xmax = 0)`,
		projectArgs(p)...,
	).Scan(&p.ID, &p.CreatedAt, &created)
	if err != nil {
		return false, fmt.Errorf("failed to upsert project: %w", convertError(err))
	}
	return created, nil
}

// PlacementRepo stores placements
type PlacementRepo struct {
	q   querier
	now func() time.Time
}

const placementColumns = `id, candidate_id, project_id, role, start_date, end_date, charge_rate, pay_rate, created_at`

func scanPlacement(s scanner) (*crm.Placement, error) {
	var (
		p   crm.Placement
		end sql.NullTime
	)
	if err := s.Scan(&p.ID, &p.CandidateID, &p.ProjectID, &p.Role, &p.StartDate, &end,
		&p.ChargeRate, &p.PayRate, &p.CreatedAt); err != nil {
		return nil, convertError(err)
	}
	p.EndDate = timePtr(end)
	return &p, nil
}

// Create inserts a placement
func (r *PlacementRepo) Create(ctx context.Context, p *crm.Placement) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = r.now()
	_, err := r.q.ExecContext(ctx, `INSERT INTO placements (`+placementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.CandidateID, p.ProjectID, p.Role, p.StartDate, nullTime(p.EndDate),
		p.ChargeRate, p.PayRate, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create placement: %w", convertError(err))
	}
	return nil
}

// ListByProject returns a project's placements by start date
func (r *PlacementRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*crm.Placement, error) {
	return r.query(ctx, `SELECT `+placementColumns+` FROM placements WHERE project_id = $1 ORDER BY start_date`, projectID)
}

// ListByCandidate returns a candidate's placements, most recent first
func (r *PlacementRepo) ListByCandidate(ctx context.Context, candidateID uuid.UUID) ([]*crm.Placement, error) {
	return r.query(ctx, `SELECT `+placementColumns+` FROM placements WHERE candidate_id = $1 ORDER BY start_date DESC`, candidateID)
}

func (r *PlacementRepo) query(ctx context.Context, query string, args ...any) ([]*crm.Placement, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list placements: %w", err)
	}
	defer rows.Close()

	placements := make([]*crm.Placement, 0)
	for rows.Next() {
		p, err := scanPlacement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan placement: %w", err)
		}
		placements = append(placements, p)
	}
	return placements, rows.Err()
}

// End closes a placement on the given date
func (r *PlacementRepo) End(ctx context.Context, id uuid.UUID, end time.Time) error {
	res, err := r.q.ExecContext(ctx, `UPDATE placements SET end_date = $2 WHERE id = $1`, id, end)
	if err != nil {
		return fmt.Errorf("failed to end placement: %w", err)
	}
	return affectedOne(res)
}

// Staffing pairs placement queries with the transactional Place
type Staffing struct {
	*PlacementRepo
	db *DB
}

// Place runs DB.Place
func (s *Staffing) Place(ctx context.Context, p *crm.Placement) error {
	return s.db.Place(ctx, p)
}

// Place records a placement and marks the candidate placed until the
// placement ends, in one transaction. An empty role takes the candidate's.
func (d *DB) Place(ctx context.Context, p *crm.Placement) error {
	return d.WithTx(ctx, func(tx *Tx) error {
		c, err := tx.Candidates().Get(ctx, p.CandidateID)
		if err != nil {
			return err
		}
		if p.Role == "" {
			p.Role = c.Role
		}
		if err := tx.Placements().Create(ctx, p); err != nil {
			return err
		}
		c.Status = crm.CandidatePlaced
		c.AssignmentEndsAt = p.EndDate
		return tx.Candidates().Update(ctx, c)
	})
}
