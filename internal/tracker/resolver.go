package tracker

import (
	"fmt"
	"time"

	"github.com/dar-kow/discord-bot-jira-work-log/internal/metrics"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/store"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/worklog"
)

// Resolver turns a closed session into a billable duration and a worklog
// author identity.
type Resolver struct {
	store      *store.Store
	minSession time.Duration
	collector  *metrics.Collector
}

// NewResolver returns a resolver with the given minimum session duration.
func NewResolver(st *store.Store, minSession time.Duration, collector *metrics.Collector) *Resolver {
	return &Resolver{store: st, minSession: minSession, collector: collector}
}

// Duration computes end − start truncated to whole seconds. A negative
// span (clock skew, bad webhook input) clamps to zero and is counted.
func (r *Resolver) Duration(cs ClosedSession) time.Duration {
	d := cs.EndedAt.Sub(cs.StartedAt).Truncate(time.Second)
	if d < 0 {
		r.collector.ObserveClampedDuration()
		return 0
	}
	return d
}

// Meets reports whether a duration passes the minimum-session gate.
func (r *Resolver) Meets(d time.Duration) bool {
	return d >= r.minSession
}

// Identity resolves the worklog author for a local user. Users without an
// account mapping are logged under the service credential with their
// display name carried along for attribution in the comment.
func (r *Resolver) Identity(userID, displayName string) worklog.Identity {
	if accountID, ok := r.store.Snapshot().Account(userID); ok {
		return worklog.Identity{AccountID: accountID, DisplayName: displayName}
	}
	return worklog.Identity{DisplayName: displayName}
}

// FormatDuration renders a duration the way it appears in notifications
// and worklog comments: "5m", "1h 5m", "2h". Sub-minute spans floor to
// "0m".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)

	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}
