// Package syncer moves records between recruitops and its external systems:
// JobAdder, the Google Sheets workbook and the Mapbox geocoder.
package syncer

import (
	"fmt"
	"sync"
	"time"
)

const maxReportErrors = 20

// Report summarises one sync run
type Report struct {
	Target    string        `json:"target"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Errors    []string      `json:"errors,omitempty"`

	mu      sync.Mutex
	retries int
}

func newReport(target string, now time.Time) *Report {
	return &Report{Target: target, StartedAt: now}
}

func (r *Report) created() { r.mu.Lock(); r.Created++; r.mu.Unlock() }
func (r *Report) updated() { r.mu.Lock(); r.Updated++; r.mu.Unlock() }
func (r *Report) skipped() { r.mu.Lock(); r.Skipped++; r.mu.Unlock() }

// fail counts a record failure, keeping the first few messages
func (r *Report) fail(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed++
	if len(r.Errors) < maxReportErrors {
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", id, err))
	}
}

// failStore counts a record the store could not write. The record is fetched
// again on the next incremental run.
func (r *Report) failStore(id string, err error) {
	r.fail(id, err)
	r.mu.Lock()
	r.retries++
	r.mu.Unlock()
}

// Complete reports whether every fetched record was stored or deliberately
// rejected. Only complete runs advance the incremental watermark.
func (r *Report) Complete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retries == 0
}

// Total is the number of records the run looked at
func (r *Report) Total() int {
	return r.Created + r.Updated + r.Skipped + r.Failed
}

// Summary is a one-line description for logs and the activity feed
func (r *Report) Summary() string {
	return fmt.Sprintf("%s: %d created, %d updated, %d skipped, %d failed in %s",
		r.Target, r.Created, r.Updated, r.Skipped, r.Failed, r.Duration.Round(time.Millisecond))
}
