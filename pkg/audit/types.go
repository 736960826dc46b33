package audit

import (
	"context"
	"time"
)

// Kind identifies what a record describes.
type Kind string

const (
	// KindDecision is a tool validation decision.
	KindDecision Kind = "decision"

	// KindModeChange is an operational mode transition.
	KindModeChange Kind = "mode_change"

	// KindGrantEvent is a temporary grant lifecycle event.
	KindGrantEvent Kind = "grant_event"
)

// Record is a single audit trail entry. Which fields are populated
// depends on Kind.
type Record struct {
	// Identity
	ID        string    `json:"id"` // UUID v4
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`

	// Decision fields (KindDecision)
	Tool           string         `json:"tool,omitempty"`
	Mode           string         `json:"mode,omitempty"`
	BaseMode       string         `json:"base_mode,omitempty"`
	Allowed        bool           `json:"allowed"`
	Reason         string         `json:"reason,omitempty"`  // violation reason code
	Message        string         `json:"message,omitempty"` // violation message
	GrantActive    bool           `json:"grant_active"`
	GrantRemaining time.Duration  `json:"grant_remaining"`
	Args           map[string]any `json:"args,omitempty"` // redacted tool arguments

	// Mode change fields (KindModeChange)
	FromMode string `json:"from_mode,omitempty"`
	ToMode   string `json:"to_mode,omitempty"`
	Cause    string `json:"cause,omitempty"` // set_mode, grant, expiry, revoke

	// Grant event fields (KindGrantEvent)
	GrantEvent string `json:"grant_event,omitempty"` // granted, extended, revoked, expired
}

// Query defines filter parameters for querying audit records.
type Query struct {
	// Time range (inclusive)
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// Filters
	Kind    Kind   `json:"kind,omitempty"`
	Tool    string `json:"tool,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Allowed *bool  `json:"allowed,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Storage defines the interface for audit storage backends.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Store persists an audit record.
	Store(ctx context.Context, record *Record) error

	// Query retrieves records matching the query filters, newest first.
	// Returns an empty slice if no records match.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Count returns the number of records matching the query filters.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes records matching the query filters and returns the
	// number deleted. Used for retention enforcement.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Close releases any resources held by the backend.
	Close() error
}
