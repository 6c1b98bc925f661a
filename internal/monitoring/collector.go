// Package monitoring watches the review backlog and posts webhook alerts
// when it grows or goes stale.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/R204570/LexAudit-Flow/internal/model"
	"github.com/R204570/LexAudit-Flow/internal/store"
)

const scanLimit = 10000

// Snapshot holds a point-in-time view of the review queue.
type Snapshot struct {
	Pending  int `json:"pending"`
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`

	// OldestPendingAge is zero when nothing is pending.
	OldestPendingAge  time.Duration `json:"-"`
	OldestPendingSecs int64         `json:"oldest_pending_secs"`

	// Decisions recorded in the audit log within the lookback window.
	RecentAccepted int `json:"recent_accepted"`
	RecentRejected int `json:"recent_rejected"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers review metrics from the store.
type Collector struct {
	store store.Store
	now   func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{LookbackHours: lookbackHours, CollectedAt: now}

	updates, err := c.store.ListPendingUpdates(ctx, store.PendingFilter{Limit: scanLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list updates")
	}
	var oldest time.Time
	for _, u := range updates {
		switch u.Status {
		case model.UpdateStatusPending:
			snap.Pending++
			if oldest.IsZero() || u.CreatedAt.Before(oldest) {
				oldest = u.CreatedAt
			}
		case model.UpdateStatusAccepted:
			snap.Accepted++
		case model.UpdateStatusRejected:
			snap.Rejected++
		}
	}
	if !oldest.IsZero() {
		snap.OldestPendingAge = now.Sub(oldest)
		snap.OldestPendingSecs = int64(snap.OldestPendingAge.Seconds())
	}

	entries, err := c.store.ListAuditEntries(ctx, store.AuditFilter{Limit: scanLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list audit entries")
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)
	for _, e := range entries {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		switch e.Action {
		case model.AuditUpdateAccepted:
			snap.RecentAccepted++
		case model.AuditUpdateRejected:
			snap.RecentRejected++
		}
	}

	return snap, nil
}
