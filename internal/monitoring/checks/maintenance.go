package checks

import (
	"context"
	"strings"
	"time"

	"github.com/eventnest/eventnest/internal/monitoring"
)

const defaultMaintenanceMaxAge = 26 * time.Hour

// Maintenance verifies that scheduled jobs run and succeed. A zero maxAge
// allows one missed daily run.
func Maintenance(tracker *monitoring.JobTracker, maxAge time.Duration, now func() time.Time) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}
	if now == nil {
		now = time.Now
	}

	return monitoring.NewCheck("maintenance", func(context.Context) monitoring.ProbeResult {
		if tracker == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusOK, Details: "no maintenance jobs registered"}
		}
		jobs := tracker.Snapshot()
		if len(jobs) == 0 {
			return monitoring.ProbeResult{Status: monitoring.StatusOK, Details: "no maintenance jobs registered"}
		}

		status := monitoring.StatusOK
		var notes []string
		for _, job := range jobs {
			switch {
			case job.TotalRuns == 0:
				notes = append(notes, job.Job+": pending first run")
			case job.ConsecutiveFailures > 0:
				status = monitoring.StatusDegraded
				notes = append(notes, job.Job+": "+job.LastError)
			case now().Sub(job.LastRunAt) > maxAge:
				status = monitoring.StatusDegraded
				notes = append(notes, job.Job+": stale run "+job.LastRunAt.Format(time.RFC3339))
			}
		}

		return monitoring.ProbeResult{Status: status, Details: strings.Join(notes, "; ")}
	})
}
