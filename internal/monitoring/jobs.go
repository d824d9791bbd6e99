package monitoring

import (
	"sort"
	"sync"
	"time"
)

// JobSummary describes the run history of one background job.
type JobSummary struct {
	Job                 string        `json:"job"`
	TotalRuns           uint64        `json:"total_runs"`
	Failures            uint64        `json:"failures"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
}

// JobTracker remembers the outcome of scheduled jobs so readiness probes can
// report stalled or failing maintenance.
type JobTracker struct {
	mu   sync.RWMutex
	jobs map[string]*JobSummary
	now  func() time.Time
}

// NewJobTracker returns an empty tracker. A nil clock uses time.Now.
func NewJobTracker(now func() time.Time) *JobTracker {
	if now == nil {
		now = time.Now
	}
	return &JobTracker{jobs: make(map[string]*JobSummary), now: now}
}

// Expect registers a job before its first run.
func (t *JobTracker) Expect(job string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(job)
}

// RecordRun stores the outcome of one run.
func (t *JobTracker) RecordRun(job string, duration time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry := t.entry(job)
	entry.TotalRuns++
	entry.LastRunAt = t.now().UTC()
	entry.LastDuration = duration
	if err != nil {
		entry.Failures++
		entry.ConsecutiveFailures++
		entry.LastError = err.Error()
		return
	}
	entry.ConsecutiveFailures = 0
	entry.LastError = ""
}

// Snapshot returns a copy of every job summary ordered by name.
func (t *JobTracker) Snapshot() []JobSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]JobSummary, 0, len(t.jobs))
	for _, job := range t.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}

func (t *JobTracker) entry(job string) *JobSummary {
	entry, ok := t.jobs[job]
	if !ok {
		entry = &JobSummary{Job: job}
		t.jobs[job] = entry
	}
	return entry
}
