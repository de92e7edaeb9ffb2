// Package jobadder is a read-only client for the JobAdder v2 REST API.
package jobadder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/siteworks/recruitops/internal/config"
	"github.com/siteworks/recruitops/internal/construction"
	"github.com/siteworks/recruitops/internal/crm"
)

// ErrNotConfigured is returned when OAuth credentials are missing
var ErrNotConfigured = errors.New("jobadder: client credentials not configured")

const pageSize = 100

// Client calls the JobAdder API with a refreshing OAuth2 token
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// New creates a client that exchanges the configured refresh token for access
// tokens on demand
func New(ctx context.Context, cfg config.JobAdderConfig, logger *zap.Logger) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ts := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	return &Client{
		httpClient: oauth2.NewClient(ctx, ts),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     logger.Named("jobadder"),
	}, nil
}

type links struct {
	Next string `json:"next"`
}

type page[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int   `json:"totalCount"`
	Links      links `json:"links"`
}

// Address is a JobAdder postal address
type Address struct {
	Street   []string `json:"street"`
	City     string   `json:"city"`
	State    string   `json:"state"`
	Postcode string   `json:"postalCode"`
}

// String joins the populated address parts
func (a Address) String() string {
	parts := make([]string, 0, 4)
	if s := strings.TrimSpace(strings.Join(a.Street, " ")); s != "" {
		parts = append(parts, s)
	}
	for _, p := range []string{a.City, strings.TrimSpace(a.State + " " + a.Postcode)} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Named is a JobAdder reference object carrying a display name
type Named struct {
	Name string `json:"name"`
}

// Candidate is the subset of a JobAdder candidate recruitops uses
type Candidate struct {
	CandidateID int       `json:"candidateId"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Mobile      string    `json:"mobile"`
	Address     Address   `json:"address"`
	Status      Named     `json:"status"`
	Position    string    `json:"currentPosition"`
	SkillTags   []string  `json:"skillTags"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ToCRM converts to a normalised recruitops candidate
func (c Candidate) ToCRM() *crm.Candidate {
	phone := c.Mobile
	if phone == "" {
		phone = c.Phone
	}
	out := &crm.Candidate{
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Email:      c.Email,
		Phone:      phone,
		Role:       construction.Role(c.Position),
		Skills:     c.SkillTags,
		Status:     crm.CandidateStatus(c.Status.Name),
		Location:   c.Address.String(),
		Source:     crm.SourceJobAdder,
		ExternalID: strconv.Itoa(c.CandidateID),
	}
	out.Normalize()
	return out
}

// Company is a JobAdder client company
type Company struct {
	CompanyID int    `json:"companyId"`
	Name      string `json:"name"`
}

// Job is a JobAdder job order
type Job struct {
	JobID     int       `json:"jobId"`
	Title     string    `json:"jobTitle"`
	Company   Company   `json:"company"`
	Location  Named     `json:"location"`
	Status    Named     `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ClientFromCompany converts a job's company to a recruitops client
func ClientFromCompany(c Company) *crm.Client {
	out := &crm.Client{
		Name:       c.Name,
		Industry:   "Construction",
		Source:     crm.SourceJobAdder,
		ExternalID: strconv.Itoa(c.CompanyID),
	}
	out.Normalize()
	return out
}

// ListCandidates returns candidates updated since the given time, following
// pagination. A zero time lists all candidates.
func (c *Client) ListCandidates(ctx context.Context, updatedSince time.Time) ([]Candidate, error) {
	return list[Candidate](ctx, c, "/candidates", updatedSince)
}

// ListJobs returns job orders updated since the given time
func (c *Client) ListJobs(ctx context.Context, updatedSince time.Time) ([]Job, error) {
	return list[Job](ctx, c, "/jobs", updatedSince)
}

func list[T any](ctx context.Context, c *Client, path string, updatedSince time.Time) ([]T, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(pageSize))
	if !updatedSince.IsZero() {
		q.Set("updatedAt", updatedSince.UTC().Format(time.RFC3339))
	}
	next := c.baseURL + path + "?" + q.Encode()

	items := make([]T, 0)
	pages := 0
	for next != "" {
		var p page[T]
		if err := c.get(ctx, next, &p); err != nil {
			return nil, err
		}
		items = append(items, p.Items...)
		pages++
		next = p.Links.Next
	}

	c.logger.Debug("listed records", zap.String("path", path), zap.Int("items", len(items)), zap.Int("pages", pages))
	return items, nil
}

func (c *Client) get(ctx context.Context, endpoint string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("jobadder: failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("jobadder: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("jobadder: GET %s: status %d: %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("jobadder: failed to decode response: %w", err)
	}
	return nil
}
