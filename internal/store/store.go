package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/R204570/LexAudit-Flow/internal/model"
)

// Sentinel errors surfaced to callers of the review workflow.
var (
	ErrNotFound = eris.New("store: not found")
	ErrConflict = eris.New("store: conflict")
)

const defaultListLimit = 100

// PendingFilter specifies criteria for listing pending updates.
type PendingFilter struct {
	Status model.UpdateStatus `json:"status,omitempty"`
	Item   string             `json:"item,omitempty"`
	Limit  int                `json:"limit,omitempty"`
	Offset int                `json:"offset,omitempty"`
}

// AuditFilter specifies criteria for listing audit entries.
type AuditFilter struct {
	Item   string `json:"item,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Tx is the set of operations available inside a transaction. The Store
// itself also satisfies Tx for single-statement use.
type Tx interface {
	GetItem(ctx context.Context, name string) (*model.Item, error)
	UpsertItem(ctx context.Context, item model.Item) error
	GetPendingUpdate(ctx context.Context, id string) (*model.PendingUpdate, error)

	// TransitionPendingUpdate moves an update from one status to another with
	// a single conditional write. It returns ErrNotFound when the id is
	// unknown and ErrConflict when the update is no longer in status from.
	TransitionPendingUpdate(ctx context.Context, id string, from, to model.UpdateStatus, at time.Time) (*model.PendingUpdate, error)
	AppendAudit(ctx context.Context, entry *model.AuditEntry) error
}

// Store defines the persistence interface for items, pending updates, and
// the audit log.
type Store interface {
	Tx

	// Items
	ListItems(ctx context.Context) ([]model.Item, error)
	SeedItems(ctx context.Context, items []model.Item) (int, error)

	// Pending updates
	CreatePendingUpdate(ctx context.Context, u *model.PendingUpdate) error
	ListPendingUpdates(ctx context.Context, filter PendingFilter) ([]model.PendingUpdate, error)
	SetEvidencePath(ctx context.Context, id, path string) error

	// Audit
	ListAuditEntries(ctx context.Context, filter AuditFilter) ([]model.AuditEntry, error)

	// InTx runs fn inside a transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(Tx) error) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}

// prepareUpdate fills the identity and timestamps of a new pending update.
func prepareUpdate(u *model.PendingUpdate, id string, now time.Time) {
	if u.ID == "" {
		u.ID = id
	}
	if u.Status == "" {
		u.Status = model.UpdateStatusPending
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = u.CreatedAt
}
