// Package crm holds the recruitment CRM domain: clients, candidates, projects and
// placements, plus the normalisation and bench tracking rules applied to them.
package crm

import (
	"time"

	"github.com/google/uuid"

	"github.com/siteworks/recruitops/internal/construction"
)

// Source identifies where a record originated
type Source string

const (
	SourceManual   Source = "manual"
	SourceJobAdder Source = "jobadder"
	SourceSheets   Source = "sheets"
)

// CandidateStatus is the stored availability status of a candidate
type CandidateStatus string

const (
	// CandidateAvailable is ready to start work now
	CandidateAvailable CandidateStatus = "available"
	// CandidatePlaced is on an assignment
	CandidatePlaced CandidateStatus = "placed"
	// CandidateFinishing is on an assignment that ends within the bench window
	CandidateFinishing CandidateStatus = "finishing"
	// CandidateUnavailable is not looking for work
	CandidateUnavailable CandidateStatus = "unavailable"
)

// ProjectStatus tracks where a project sits in the sales pipeline
type ProjectStatus string

const (
	ProjectPipeline ProjectStatus = "pipeline"
	ProjectWon      ProjectStatus = "won"
	ProjectActive   ProjectStatus = "active"
	ProjectComplete ProjectStatus = "complete"
	ProjectLost     ProjectStatus = "lost"
)

// Client is a builder or contractor the agency supplies labour to
type Client struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Industry   string    `json:"industry,omitempty"`
	Website    string    `json:"website,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Email      string    `json:"email,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	Source     Source    `json:"source"`
	ExternalID string    `json:"external_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Contact is a person at a client the agency deals with
type Contact struct {
	ID        uuid.UUID `json:"id"`
	ClientID  uuid.UUID `json:"client_id"`
	Name      string    `json:"name"`
	Title     string    `json:"title,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Candidate is a worker on the agency's books
type Candidate struct {
	ID               uuid.UUID         `json:"id"`
	FirstName        string            `json:"first_name"`
	LastName         string            `json:"last_name"`
	Email            string            `json:"email,omitempty"`
	Phone            string            `json:"phone,omitempty"`
	Role             construction.Role `json:"role"`
	Skills           []string          `json:"skills"`
	Status           CandidateStatus   `json:"status"`
	Location         string            `json:"location,omitempty"`
	Latitude         *float64          `json:"latitude,omitempty"`
	Longitude        *float64          `json:"longitude,omitempty"`
	AvailableFrom    *time.Time        `json:"available_from,omitempty"`
	AssignmentEndsAt *time.Time        `json:"assignment_ends_at,omitempty"`
	DayRate          float64           `json:"day_rate,omitempty"`
	Notes            string            `json:"notes,omitempty"`
	Source           Source            `json:"source"`
	ExternalID       string            `json:"external_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// FullName joins first and last names
func (c *Candidate) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}

// Geocoded reports whether the candidate has coordinates
func (c *Candidate) Geocoded() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// Project is a construction job the agency expects to staff
type Project struct {
	ID            uuid.UUID         `json:"id"`
	ClientID      *uuid.UUID        `json:"client_id,omitempty"`
	Name          string            `json:"name"`
	ContractValue string            `json:"contract_value,omitempty"`
	Size          construction.Size `json:"size"`
	Status        ProjectStatus     `json:"status"`
	Probability   int               `json:"probability"`
	StartDate     time.Time         `json:"start_date"`
	Location      string            `json:"location,omitempty"`
	Latitude      *float64          `json:"latitude,omitempty"`
	Longitude     *float64          `json:"longitude,omitempty"`
	Notes         string            `json:"notes,omitempty"`
	Source        Source            `json:"source"`
	ExternalID    string            `json:"external_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Geocoded reports whether the project has coordinates
func (p *Project) Geocoded() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// Schedule builds the phase timeline for the project
func (p *Project) Schedule() construction.Schedule {
	return construction.BuildSchedule(p.StartDate, p.Size)
}

// Weight is the probability-weighted share of demand the project contributes
// to a forecast. Lost and complete projects contribute nothing.
func (p *Project) Weight() float64 {
	switch p.Status {
	case ProjectWon, ProjectActive:
		return 1
	case ProjectPipeline:
		return float64(p.Probability) / 100
	default:
		return 0
	}
}

// Placement records a candidate working on a project
type Placement struct {
	ID          uuid.UUID         `json:"id"`
	CandidateID uuid.UUID         `json:"candidate_id"`
	ProjectID   uuid.UUID         `json:"project_id"`
	Role        construction.Role `json:"role"`
	StartDate   time.Time         `json:"start_date"`
	EndDate     *time.Time        `json:"end_date,omitempty"`
	ChargeRate  float64           `json:"charge_rate"`
	PayRate     float64           `json:"pay_rate"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Margin is the daily gross margin on the placement
func (p *Placement) Margin() float64 {
	return p.ChargeRate - p.PayRate
}

// MarginPercent is the margin as a percentage of the charge rate
func (p *Placement) MarginPercent() float64 {
	if p.ChargeRate == 0 {
		return 0
	}
	return p.Margin() / p.ChargeRate * 100
}
