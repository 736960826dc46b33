package engine

import "time"

// Decision is the outcome of validating a single tool request.
type Decision struct {
	// Allowed reports whether the tool may execute.
	Allowed bool

	// Tool is the requested tool name.
	Tool string

	// Mode is the mode in force at decision time.
	Mode string

	// Violation carries the denial details when Allowed is false.
	Violation *Violation

	// GrantActive reports whether a temporary grant was in effect.
	GrantActive bool

	// GrantRemaining is the grant time left at decision time, when one
	// was active.
	GrantRemaining time.Duration
}

// Status is a consistent snapshot of the engine state.
type Status struct {
	// CurrentMode is the mode currently in force for validation.
	CurrentMode string

	// BaseMode is the mode the engine reverts to when a grant ends.
	// Equal to CurrentMode whenever no grant is active.
	BaseMode string

	// GrantActive reports whether a temporary grant is active.
	GrantActive bool

	// GrantRemaining is the time left on the active grant, zero when
	// none is active.
	GrantRemaining time.Duration
}

// ModeChangeCause identifies what triggered a mode transition.
type ModeChangeCause string

const (
	// CauseSetMode is a permanent operator mode change.
	CauseSetMode ModeChangeCause = "set_mode"

	// CauseGrant is an elevation by a temporary grant.
	CauseGrant ModeChangeCause = "grant"

	// CauseExpiry is the automatic reversion when a grant expires.
	CauseExpiry ModeChangeCause = "expiry"

	// CauseRevoke is the reversion when a grant is manually revoked.
	CauseRevoke ModeChangeCause = "revoke"
)

// GrantEventType identifies a grant lifecycle event.
type GrantEventType string

const (
	GrantGranted  GrantEventType = "granted"
	GrantExtended GrantEventType = "extended"
	GrantRevoked  GrantEventType = "revoked"
	GrantExpired  GrantEventType = "expired"
)

// EventRecorder receives engine lifecycle events for observability
// (metrics, logging sinks). Implementations must be non-blocking and
// must not call back into the engine: events are emitted while the
// engine lock is held.
type EventRecorder interface {
	// ModeChanged is called whenever the current mode changes.
	ModeChanged(from, to string, cause ModeChangeCause)

	// GrantEvent is called on grant lifecycle transitions with the time
	// remaining on the grant at that moment.
	GrantEvent(event GrantEventType, remaining time.Duration)

	// DecisionMade is called for every validation outcome. reason is
	// empty for allowed decisions.
	DecisionMade(tool, mode string, reason ReasonCode, allowed bool)
}

// MultiRecorder fans events out to several recorders in order.
func MultiRecorder(recorders ...EventRecorder) EventRecorder {
	return multiRecorder(recorders)
}

type multiRecorder []EventRecorder

func (m multiRecorder) ModeChanged(from, to string, cause ModeChangeCause) {
	for _, r := range m {
		r.ModeChanged(from, to, cause)
	}
}

func (m multiRecorder) GrantEvent(event GrantEventType, remaining time.Duration) {
	for _, r := range m {
		r.GrantEvent(event, remaining)
	}
}

func (m multiRecorder) DecisionMade(tool, mode string, reason ReasonCode, allowed bool) {
	for _, r := range m {
		r.DecisionMade(tool, mode, reason, allowed)
	}
}
