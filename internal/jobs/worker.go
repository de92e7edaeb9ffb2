package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler processes a job's payload
type Handler func(ctx context.Context, payload map[string]any) error

// source is the part of Queue the pool consumes
type source interface {
	Dequeue(ctx context.Context, workerID, queueName string) (*Job, error)
	Complete(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID, errMsg string) error
	Retry(ctx context.Context, id uuid.UUID, attempts int, errMsg string) error
}

// PoolConfig sizes a worker pool
type PoolConfig struct {
	Queue        string
	Workers      int
	PollInterval time.Duration
}

// Pool runs a fixed number of workers against one queue
type Pool struct {
	src      source
	cfg      PoolConfig
	handlers *HandlerRegistry
	metrics  *Metrics
	logger   *zap.Logger

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewPool creates a worker pool. Zero config values fall back to the default
// queue, one worker and a one second poll.
func NewPool(src source, cfg PoolConfig, logger *zap.Logger) *Pool {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		src:      src,
		cfg:      cfg,
		handlers: NewHandlerRegistry(),
		metrics:  NewMetrics(),
		logger:   logger.Named("jobs"),
	}
}

// Handle registers the handler for a job type
func (p *Pool) Handle(jobType string, h Handler) {
	p.handlers.Register(jobType, h)
	p.logger.Debug("registered job handler", zap.String("type", jobType))
}

// Types lists registered job types
func (p *Pool) Types() []string {
	return p.handlers.Types()
}

// Metrics returns the pool's in-process counters
func (p *Pool) Metrics() *Metrics {
	return p.metrics
}

// Start launches the workers. They exit when ctx is cancelled or Stop is called.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stop = make(chan struct{})

	p.logger.Info("starting worker pool",
		zap.String("queue", p.cfg.Queue),
		zap.Int("workers", p.cfg.Workers),
		zap.Duration("poll_interval", p.cfg.PollInterval))

	for i := 0; i < p.cfg.Workers; i++ {
		id := fmt.Sprintf("worker-%s-%d", p.cfg.Queue, i)
		p.wg.Add(1)
		go p.run(ctx, id)
	}
}

// Stop signals the workers and waits for in-flight jobs to finish
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stop)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("worker pool stopped", zap.String("queue", p.cfg.Queue))
}

func (p *Pool) run(ctx context.Context, workerID string) {
	defer p.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-timer.C:
		}

		if p.RunOnce(ctx, workerID) {
			timer.Reset(0)
			continue
		}
		timer.Reset(p.cfg.PollInterval)
	}
}

// RunOnce dequeues and processes a single job. It reports whether a job was
// found so callers can drain the queue without waiting.
func (p *Pool) RunOnce(ctx context.Context, workerID string) bool {
	job, err := p.src.Dequeue(ctx, workerID, p.cfg.Queue)
	if err != nil {
		if !errors.Is(err, ErrNoJobs) && ctx.Err() == nil {
			p.logger.Warn("dequeue failed", zap.String("worker", workerID), zap.Error(err))
		}
		return false
	}
	p.process(ctx, workerID, job)
	return true
}

func (p *Pool) process(ctx context.Context, workerID string, job *Job) {
	start := time.Now()
	log := p.logger.With(
		zap.String("worker", workerID),
		zap.Stringer("job_id", job.ID),
		zap.String("type", job.Type),
		zap.Int("attempt", job.Attempts),
		zap.Int("max_attempts", job.MaxAttempts))

	handler, err := p.handlers.Get(job.Type)
	if err != nil {
		log.Error("no handler for job type")
		if ferr := p.src.Fail(ctx, job.ID, err.Error()); ferr != nil {
			log.Error("failed to mark job failed", zap.Error(ferr))
		}
		p.metrics.RecordFailure(job.Type, time.Since(start))
		return
	}

	err = p.invoke(ctx, handler, job)
	elapsed := time.Since(start)

	if err == nil {
		if cerr := p.src.Complete(ctx, job.ID); cerr != nil {
			log.Error("failed to mark job complete", zap.Error(cerr))
			return
		}
		log.Info("job completed", zap.Duration("duration", elapsed))
		p.metrics.RecordSuccess(job.Type, elapsed)
		return
	}

	if job.Retryable() {
		rerr := p.src.Retry(ctx, job.ID, job.Attempts, err.Error())
		if rerr == nil {
			log.Warn("job failed, retrying",
				zap.Error(err),
				zap.Duration("backoff", Backoff(job.Attempts)))
			p.metrics.RecordRetry(job.Type)
			return
		}
		log.Error("failed to schedule retry", zap.Error(rerr))
	}

	if ferr := p.src.Fail(ctx, job.ID, err.Error()); ferr != nil {
		log.Error("failed to mark job failed", zap.Error(ferr))
	}
	log.Error("job failed permanently", zap.Error(err), zap.Duration("duration", elapsed))
	p.metrics.RecordFailure(job.Type, elapsed)
}

// invoke runs a handler, turning a panic into an error
func (p *Pool) invoke(ctx context.Context, h Handler, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, job.Payload)
}

// HandlerRegistry maps job types to handlers
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]Handler)}
}

// Register sets the handler for a job type, replacing any existing one
func (r *HandlerRegistry) Register(jobType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = h
}

// Get looks up the handler for a job type
func (r *HandlerRegistry) Get(jobType string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	if !ok {
		return nil, fmt.Errorf("no handler registered for job type: %s", jobType)
	}
	return h, nil
}

// Types returns the registered job types in sorted order
func (r *HandlerRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Metrics tracks job outcomes per type since the pool started
type Metrics struct {
	mu    sync.RWMutex
	stats map[string]*JobStats
}

// NewMetrics creates empty metrics
func NewMetrics() *Metrics {
	return &Metrics{stats: make(map[string]*JobStats)}
}

func (m *Metrics) entry(jobType string) *JobStats {
	s, ok := m.stats[jobType]
	if !ok {
		s = &JobStats{JobType: jobType}
		m.stats[jobType] = s
	}
	return s
}

// RecordSuccess counts a completed job
func (m *Metrics) RecordSuccess(jobType string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.entry(jobType)
	s.Succeeded++
	s.observe(d)
}

// RecordFailure counts a permanently failed job
func (m *Metrics) RecordFailure(jobType string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.entry(jobType)
	s.Failed++
	s.observe(d)
}

// RecordRetry counts a failed attempt that will be retried
func (m *Metrics) RecordRetry(jobType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(jobType).Retried++
}

// Stats returns a copy of the counters for one job type
func (m *Metrics) Stats(jobType string) JobStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.stats[jobType]; ok {
		return *s
	}
	return JobStats{JobType: jobType}
}

// All returns counters for every job type seen, ordered by type
func (m *Metrics) All() []JobStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]JobStats, 0, len(m.stats))
	for _, s := range m.stats {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobType < out[j].JobType })
	return out
}

// JobStats holds processing counters and timings for one job type
type JobStats struct {
	JobType     string        `json:"job_type"`
	Processed   int64         `json:"processed"`
	Succeeded   int64         `json:"succeeded"`
	Failed      int64         `json:"failed"`
	Retried     int64         `json:"retried"`
	MinDuration time.Duration `json:"min_duration"`
	MaxDuration time.Duration `json:"max_duration"`
	AvgDuration time.Duration `json:"avg_duration"`

	total time.Duration
}

func (s *JobStats) observe(d time.Duration) {
	s.Processed++
	s.total += d
	if s.MinDuration == 0 || d < s.MinDuration {
		s.MinDuration = d
	}
	if d > s.MaxDuration {
		s.MaxDuration = d
	}
	s.AvgDuration = s.total / time.Duration(s.Processed)
}

// SuccessRate is the percentage of processed jobs that succeeded
func (s JobStats) SuccessRate() float64 {
	if s.Processed == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Processed) * 100
}
