package api

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/siteworks/recruitops/internal/activity"
	"github.com/siteworks/recruitops/internal/advisor"
	"github.com/siteworks/recruitops/internal/crm"
	"github.com/siteworks/recruitops/internal/jobs"
	"github.com/siteworks/recruitops/internal/store"
	"github.com/siteworks/recruitops/internal/web/auth"
	"github.com/siteworks/recruitops/internal/web/ratelimit"
)

type memClients struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*crm.Client
}

func (m *memClients) Create(_ context.Context, c *crm.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if strings.EqualFold(existing.Name, c.Name) {
			return store.ErrConflict
		}
	}
	c.ID = uuid.New()
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *memClients) Get(_ context.Context, id uuid.UUID) (*crm.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memClients) List(_ context.Context, f store.ClientFilter) ([]*crm.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*crm.Client, 0)
	for _, c := range m.rows {
		if f.Search == "" || strings.Contains(strings.ToLower(c.Name), strings.ToLower(f.Search)) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memClients) Update(_ context.Context, c *crm.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[c.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *memClients) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type memCandidates struct {
	mu         sync.Mutex
	rows       map[uuid.UUID]*crm.Candidate
	lastFilter store.CandidateFilter
}

func (m *memCandidates) Create(_ context.Context, c *crm.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.New()
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *memCandidates) Get(_ context.Context, id uuid.UUID) (*crm.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCandidates) List(_ context.Context, f store.CandidateFilter) ([]*crm.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = f
	out := make([]*crm.Candidate, 0)
	for _, c := range m.rows {
		if f.Role != "" && c.Role != f.Role {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *memCandidates) ListActive(ctx context.Context) ([]*crm.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*crm.Candidate, 0)
	for _, c := range m.rows {
		if c.Status != crm.CandidateUnavailable {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return out, nil
}

func (m *memCandidates) Update(_ context.Context, c *crm.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *memCandidates) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type memProjects struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*crm.Project
	createErr error
}

func (m *memProjects) Create(_ context.Context, p *crm.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	p.ID = uuid.New()
	cp := *p
	m.rows[p.ID] = &cp
	return nil
}

func (m *memProjects) Get(_ context.Context, id uuid.UUID) (*crm.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProjects) List(_ context.Context, f store.ProjectFilter) ([]*crm.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*crm.Project, 0)
	for _, p := range m.rows {
		if len(f.Statuses) > 0 {
			match := false
			for _, s := range f.Statuses {
				match = match || p.Status == s
			}
			if !match {
				continue
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memProjects) ListLive(ctx context.Context) ([]*crm.Project, error) {
	return m.List(ctx, store.ProjectFilter{Statuses: []crm.ProjectStatus{crm.ProjectPipeline, crm.ProjectWon, crm.ProjectActive}})
}

func (m *memProjects) Update(_ context.Context, p *crm.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.rows[p.ID] = &cp
	return nil
}

func (m *memProjects) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*store.User
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[strings.ToLower(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) Create(_ context.Context, u *store.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, ok := m.users[key]; ok {
		return store.ErrConflict
	}
	u.ID = uuid.New()
	u.Email = key
	m.users[key] = u
	return nil
}

type fakeAdvisors struct {
	mu       sync.Mutex
	sessions map[string][]advisor.Turn
}

func (f *fakeAdvisors) Chat(_ context.Context, name advisor.Name, sessionID, message string) (advisor.Reply, error) {
	if _, ok := advisor.Lookup(name); !ok {
		return advisor.Reply{}, advisor.ErrUnknownAdvisor
	}
	if strings.TrimSpace(message) == "" {
		return advisor.Reply{}, advisor.ErrEmptyMessage
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := string(name) + "/" + sessionID
	f.sessions[key] = append(f.sessions[key],
		advisor.Turn{Role: advisor.RoleUser, Text: message},
		advisor.Turn{Role: advisor.RoleModel, Text: "echo: " + message},
	)
	return advisor.Reply{Advisor: name, SessionID: sessionID, Message: "echo: " + message, Turns: len(f.sessions[key])}, nil
}

func (f *fakeAdvisors) History(_ context.Context, name advisor.Name, sessionID string) ([]advisor.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]advisor.Turn{}, f.sessions[string(name)+"/"+sessionID]...), nil
}

func (f *fakeAdvisors) Reset(_ context.Context, name advisor.Name, sessionID string) error {
	if _, ok := advisor.Lookup(name); !ok {
		return advisor.ErrUnknownAdvisor
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, string(name)+"/"+sessionID)
	return nil
}

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []*jobs.Job
}

func (q *fakeQueue) Enqueue(_ context.Context, job *jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, job)
	return nil
}

func (q *fakeQueue) Get(_ context.Context, id uuid.UUID) (*jobs.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range q.enqueued {
		if j.ID == id {
			return j, nil
		}
	}
	return nil, jobs.ErrJobNotFound
}

func (q *fakeQueue) Stats(_ context.Context, queueName string) ([]jobs.QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	counts := map[string]int{}
	for _, j := range q.enqueued {
		if j.Queue == queueName {
			counts[j.Type]++
		}
	}
	out := make([]jobs.QueueStats, 0, len(counts))
	for t, n := range counts {
		out = append(out, jobs.QueueStats{Type: t, Pending: n})
	}
	return out, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []activity.Event
}

func (l *eventLog) Publish(e activity.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

var _ Accounts = (*auth.Service)(nil)

func ptrTime(t time.Time) *time.Time { return &t }

func ptrFloat(f float64) *float64 { return &f }

type memContacts struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*crm.Contact
}

func (m *memContacts) Create(_ context.Context, c *crm.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.New()
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *memContacts) ListByClient(_ context.Context, clientID uuid.UUID) ([]*crm.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*crm.Contact, 0)
	for _, c := range m.rows {
		if c.ClientID == clientID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memContacts) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

// memPlacements marks candidates placed the way the store does
type memPlacements struct {
	mu         sync.Mutex
	rows       []*crm.Placement
	candidates *memCandidates
}

func (m *memPlacements) Place(ctx context.Context, p *crm.Placement) error {
	c, err := m.candidates.Get(ctx, p.CandidateID)
	if err != nil {
		return err
	}
	if p.Role == "" {
		p.Role = c.Role
	}
	c.Status = crm.CandidatePlaced
	c.AssignmentEndsAt = p.EndDate
	if err := m.candidates.Update(ctx, c); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	cp := *p
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memPlacements) ListByProject(_ context.Context, projectID uuid.UUID) ([]*crm.Placement, error) {
	return m.filter(func(p *crm.Placement) bool { return p.ProjectID == projectID }), nil
}

func (m *memPlacements) ListByCandidate(_ context.Context, candidateID uuid.UUID) ([]*crm.Placement, error) {
	return m.filter(func(p *crm.Placement) bool { return p.CandidateID == candidateID }), nil
}

func (m *memPlacements) End(_ context.Context, id uuid.UUID, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.ID == id {
			p.EndDate = &end
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memPlacements) filter(keep func(*crm.Placement) bool) []*crm.Placement {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*crm.Placement, 0)
	for _, p := range m.rows {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

type recordingLimiter struct {
	mu    sync.Mutex
	keys  []string
	inner ratelimit.Limiter
}

func (l *recordingLimiter) Allow(ctx context.Context, key string) (*ratelimit.Decision, error) {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	return l.inner.Allow(ctx, key)
}

func (l *recordingLimiter) seen() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.keys...)
}
