package stores

import (
	"context"
	"errors"
	"time"
)

// EntryStatus represents the state of a journal entry
type EntryStatus string

const (
	// EntryStatusApplied marks an invocation that changed the tree.
	EntryStatusApplied EntryStatus = "applied"
	// EntryStatusUndone marks an applied invocation whose compensation ran.
	EntryStatusUndone EntryStatus = "undone"
	// EntryStatusRejected marks an invocation that failed and left the tree
	// unchanged. Rejected entries are kept for audit and never replayed.
	EntryStatusRejected EntryStatus = "rejected"
)

// ErrNotFound is returned when no journal entry matches.
var ErrNotFound = errors.New("journal entry not found")

// Entry is one recorded management invocation
type Entry struct {
	ID           string      `json:"id"`
	Seq          int64       `json:"seq"`
	RequestID    string      `json:"request_id,omitempty"`
	Address      string      `json:"address"`
	Operation    string      `json:"operation"`
	Params       string      `json:"params"`                 // JSON object of wire-encoded parameters
	Compensation *string     `json:"compensation,omitempty"` // JSON request, nil when irreversible
	Status       EntryStatus `json:"status"`
	Error        *string     `json:"error,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UndoneAt     *time.Time  `json:"undone_at,omitempty"`
}

// Reversible reports whether the entry carries a compensation.
func (e *Entry) Reversible() bool {
	return e.Compensation != nil
}

// EntryFilter narrows ListEntries. Zero values match everything.
type EntryFilter struct {
	Status  EntryStatus
	Address string
	Limit   int
	Offset  int
}

// Journal defines the persistence layer for invocations
type Journal interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// AppendEntry records an entry, assigning ID (when empty), Seq and
	// CreatedAt (when zero).
	AppendEntry(ctx context.Context, entry *Entry) error
	GetEntry(ctx context.Context, id string) (*Entry, error)
	// ListEntries returns entries in sequence order.
	ListEntries(ctx context.Context, filter EntryFilter) ([]*Entry, error)
	// LastApplied returns the newest entry still in the applied state.
	LastApplied(ctx context.Context) (*Entry, error)
	// MarkUndone moves an applied entry to the undone state.
	MarkUndone(ctx context.Context, id string) error
	CountEntries(ctx context.Context, status EntryStatus) (int, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
