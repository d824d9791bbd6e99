package checks

import (
	"context"
	"fmt"

	"github.com/eventnest/eventnest/internal/monitoring"
)

// RealtimeObserver is satisfied by the notification stream.
type RealtimeObserver interface {
	Sessions() int
	Closed() bool
}

// Realtime reports whether the socket fan-out is still accepting sessions.
func Realtime(observer RealtimeObserver) monitoring.Check {
	return monitoring.NewCheck("realtime", func(context.Context) monitoring.ProbeResult {
		if observer == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "realtime stream unavailable"}
		}
		if observer.Closed() {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "realtime stream closed"}
		}
		return monitoring.ProbeResult{
			Status:  monitoring.StatusOK,
			Details: fmt.Sprintf("%d sessions", observer.Sessions()),
		}
	})
}
