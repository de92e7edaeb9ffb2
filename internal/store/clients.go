package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/siteworks/recruitops/internal/crm"
)

const clientColumns = `id, name, industry, website, phone, email, notes, source, external_id, created_at, updated_at`

var clientSorts = map[string]bool{"name": true, "created_at": true, "updated_at": true}

// ClientRepo stores clients
type ClientRepo struct {
	q   querier
	now func() time.Time
}

// ClientFilter narrows a client listing
type ClientFilter struct {
	Search string
	ListOptions
}

func scanClient(s scanner) (*crm.Client, error) {
	var c crm.Client
	err := s.Scan(&c.ID, &c.Name, &c.Industry, &c.Website, &c.Phone, &c.Email, &c.Notes,
		&c.Source, &c.ExternalID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, convertError(err)
	}
	return &c, nil
}

// Create inserts a client, assigning an ID when one is not set
func (r *ClientRepo) Create(ctx context.Context, c *crm.Client) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := r.now()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := r.q.ExecContext(ctx, `INSERT INTO clients (`+clientColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.Name, c.Industry, c.Website, c.Phone, c.Email, c.Notes,
		c.Source, c.ExternalID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", convertError(err))
	}
	return nil
}

// Get loads a client by ID
func (r *ClientRepo) Get(ctx context.Context, id uuid.UUID) (*crm.Client, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	return scanClient(row)
}

// List returns clients matching the filter
func (r *ClientRepo) List(ctx context.Context, f ClientFilter) ([]*crm.Client, error) {
	var w filter
	if f.Search != "" {
		w.add("name ILIKE $%d", "%"+f.Search+"%")
	}
	query := `SELECT ` + clientColumns + ` FROM clients` + w.where() + w.tail(f.ListOptions, clientSorts, "name")

	rows, err := r.q.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	clients := make([]*crm.Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clients: %w", err)
	}
	return clients, nil
}

// Update saves every mutable client field
func (r *ClientRepo) Update(ctx context.Context, c *crm.Client) error {
	c.UpdatedAt = r.now()
	res, err := r.q.ExecContext(ctx, `UPDATE clients
		SET name = $2, industry = $3, website = $4, phone = $5, email = $6, notes = $7, updated_at = $8
		WHERE id = $1`,
		c.ID, c.Name, c.Industry, c.Website, c.Phone, c.Email, c.Notes, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", convertError(err))
	}
	return affectedOne(res)
}

// Delete removes a client
func (r *ClientRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", convertError(err))
	}
	return affectedOne(res)
}

// Upsert inserts or updates a synced client keyed on (source, external_id).
// It reports whether a new row was created.
func (r *ClientRepo) Upsert(ctx context.Context, c *crm.Client) (bool, error) {
	if c.ExternalID == "" {
		return false, fmt.Errorf("upsert requires an external id")
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := r.now()
	c.CreatedAt, c.UpdatedAt = now, now

	var created bool
	err := r.q.QueryRowContext(ctx, `INSERT INTO clients (`+clientColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (source, external_id) WHERE external_id <> '' DO UPDATE
		SET name = EXCLUDED.name, industry = EXCLUDED.industry, website = EXCLUDED.website,
		    phone = EXCLUDED.phone, email = EXCLUDED.email, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, (xmax = 0)`,
		c.ID, c.Name, c.Industry, c.Website, c.Phone, c.Email, c.Notes,
		c.Source, c.ExternalID, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID, &c.CreatedAt, &created)
	if err != nil {
		return false, fmt.Errorf("failed to upsert client: %w", convertError(err))
	}
	return created, nil
}

// ContactRepo stores client contacts
type ContactRepo struct {
	q   querier
	now func() time.Time
}

// Create inserts a contact
func (r *ContactRepo) Create(ctx context.Context, c *crm.Contact) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = r.now()
	_, err := r.q.ExecContext(ctx, `INSERT INTO contacts (id, client_id, name, title, email, phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.ClientID, c.Name, c.Title, c.Email, c.Phone, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", convertError(err))
	}
	return nil
}

// ListByClient returns a client's contacts by name
func (r *ContactRepo) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*crm.Contact, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, client_id, name, title, email, phone, created_at
		FROM contacts WHERE client_id = $1 ORDER BY name`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]*crm.Contact, 0)
	for rows.Next() {
		var c crm.Contact
		if err := rows.Scan(&c.ID, &c.ClientID, &c.Name, &c.Title, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, &c)
	}
	return contacts, rows.Err()
}

// Delete removes a contact
func (r *ContactRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	return affectedOne(res)
}
