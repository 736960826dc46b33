package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors returned by engine operations.
var (
	// ErrNoActiveGrant indicates extend was called with no active grant.
	// This is a non-fatal condition; callers typically log a warning and
	// continue.
	ErrNoActiveGrant = errors.New("no active temporary grant")

	// ErrNonPositiveDuration indicates a grant or extension duration of
	// zero or less.
	ErrNonPositiveDuration = errors.New("duration must be positive")

	// ErrNoElevatedMode indicates the policy document defines no mode
	// for temporary grants to elevate to.
	ErrNoElevatedMode = errors.New("policy document defines no elevated mode")
)

// InvalidModeError indicates SetMode was given a mode name the policy
// document does not define. The engine state is unchanged.
type InvalidModeError struct {
	// Mode is the rejected mode name.
	Mode string

	// Known lists the modes the document defines.
	Known []string
}

// Error returns the error message.
func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("invalid mode %q (defined modes: %s)", e.Mode, strings.Join(e.Known, ", "))
}

// ReasonCode identifies why a validation was denied.
type ReasonCode string

const (
	// ReasonGloballyBlocked denotes a tool on the global block list.
	ReasonGloballyBlocked ReasonCode = "globally_blocked"

	// ReasonBlockedInMode denotes a tool on the current mode's block list.
	ReasonBlockedInMode ReasonCode = "blocked_in_mode"

	// ReasonNotWhitelisted denotes a tool absent from the current mode's
	// allow list.
	ReasonNotWhitelisted ReasonCode = "not_whitelisted"
)

// Violation is a denied validation outcome. Violations are expected,
// frequent results rather than exceptional conditions; the engine
// remains fully usable after returning one.
type Violation struct {
	// Tool is the requested tool name.
	Tool string

	// Mode is the mode in force at decision time.
	Mode string

	// Reason identifies the pipeline stage that denied the tool.
	Reason ReasonCode

	// Message is a human-readable explanation.
	Message string

	// GrantRemaining is how long an active temporary grant had left at
	// decision time. Informational only; it never changes the outcome.
	GrantRemaining time.Duration

	// GrantActive reports whether a temporary grant was active at
	// decision time.
	GrantActive bool
}

// Error implements error so callers may propagate violations through
// error returns.
func (v *Violation) Error() string {
	return v.Message
}
