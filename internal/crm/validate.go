package crm

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"
)

// ValidationErrors collects per-field validation messages
type ValidationErrors struct {
	Fields map[string][]string `json:"fields"`
}

// NewValidationErrors creates an empty ValidationErrors
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{Fields: make(map[string][]string)}
}

// Add records a message against a field
func (ve *ValidationErrors) Add(field, message string) {
	if ve.Fields == nil {
		ve.Fields = make(map[string][]string)
	}
	ve.Fields[field] = append(ve.Fields[field], message)
}

// HasErrors reports whether any field failed
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Fields) > 0
}

// Error implements the error interface
func (ve *ValidationErrors) Error() string {
	if !ve.HasErrors() {
		return "validation failed"
	}
	fields := make([]string, 0, len(ve.Fields))
	for f := range ve.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(ve.Fields[f], ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (ve *ValidationErrors) orNil() error {
	if ve.HasErrors() {
		return ve
	}
	return nil
}

// Validate checks a normalised candidate
func (c *Candidate) Validate() error {
	ve := NewValidationErrors()
	if c.FirstName == "" && c.LastName == "" {
		ve.Add("name", "is required")
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			ve.Add("email", "is not a valid email address")
		}
	}
	if c.Role == "" {
		ve.Add("role", "is required")
	}
	switch c.Status {
	case CandidateAvailable, CandidatePlaced, CandidateFinishing, CandidateUnavailable:
	default:
		ve.Add("status", fmt.Sprintf("unknown status %q", c.Status))
	}
	if c.DayRate < 0 {
		ve.Add("day_rate", "must not be negative")
	}
	if (c.Latitude == nil) != (c.Longitude == nil) {
		ve.Add("location", "latitude and longitude must be set together")
	}
	return ve.orNil()
}

// Validate checks a normalised project
func (p *Project) Validate() error {
	ve := NewValidationErrors()
	if p.Name == "" {
		ve.Add("name", "is required")
	}
	if p.StartDate.IsZero() {
		ve.Add("start_date", "is required")
	}
	if p.Probability < 0 || p.Probability > 100 {
		ve.Add("probability", "must be between 0 and 100")
	}
	switch p.Status {
	case ProjectPipeline, ProjectWon, ProjectActive, ProjectComplete, ProjectLost:
	default:
		ve.Add("status", fmt.Sprintf("unknown status %q", p.Status))
	}
	if !p.Size.Valid() {
		ve.Add("size", fmt.Sprintf("unknown size %q", p.Size))
	}
	return ve.orNil()
}

// Validate checks a normalised client
func (c *Client) Validate() error {
	ve := NewValidationErrors()
	if c.Name == "" {
		ve.Add("name", "is required")
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			ve.Add("email", "is not a valid email address")
		}
	}
	return ve.orNil()
}

// Validate checks a normalised contact
func (c *Contact) Validate() error {
	ve := NewValidationErrors()
	if c.Name == "" {
		ve.Add("name", "is required")
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			ve.Add("email", "is not a valid email address")
		}
	}
	return ve.orNil()
}

// Validate checks a placement's dates and rates
func (p *Placement) Validate() error {
	ve := NewValidationErrors()
	if p.StartDate.IsZero() {
		ve.Add("start_date", "is required")
	}
	if p.EndDate != nil && p.EndDate.Before(p.StartDate) {
		ve.Add("end_date", "must not be before start_date")
	}
	if p.ChargeRate < 0 || p.PayRate < 0 {
		ve.Add("rates", "must not be negative")
	}
	if p.ChargeRate > 0 && p.PayRate > p.ChargeRate {
		ve.Add("pay_rate", "must not exceed charge_rate")
	}
	return ve.orNil()
}
