package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"proxi-hq/guardian/pkg/policy"
)

// Config contains engine configuration.
type Config struct {
	// DefaultMode is the mode in force at construction, for both the
	// current and base mode. It must be defined by the policy document.
	DefaultMode string

	// Clock supplies time and expiry timers. Defaults to the real clock.
	Clock Clock

	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger

	// Events receives lifecycle events for observability. Optional.
	Events EventRecorder
}

// Engine enforces the policy document: it owns the current and base
// mode, composes the grant manager, and exposes the validation pipeline
// and mode-management operations.
//
// All methods are safe for concurrent use. Every mutation of mode or
// grant state, including the automatic expiry, is serialized behind one
// mutex per instance, and Validate reads its inputs as one consistent
// snapshot under that mutex.
type Engine struct {
	doc    *policy.Document
	clock  Clock
	logger *slog.Logger
	events EventRecorder

	mu          sync.Mutex
	currentMode string
	baseMode    string
	grants      *GrantManager
}

// New creates an engine enforcing the given document. The document must
// define cfg.DefaultMode.
func New(doc *policy.Document, cfg *Config) (*Engine, error) {
	if doc == nil {
		return nil, fmt.Errorf("policy document cannot be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}

	defaultMode := cfg.DefaultMode
	if defaultMode == "" {
		defaultMode = "NORMAL"
	}
	if !doc.HasMode(defaultMode) {
		return nil, &InvalidModeError{Mode: defaultMode, Known: doc.ModeNames()}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = RealClock()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "policy.engine")

	events := cfg.Events
	if events == nil {
		events = nopRecorder{}
	}

	e := &Engine{
		doc:         doc,
		clock:       clock,
		logger:      logger,
		events:      events,
		currentMode: defaultMode,
		baseMode:    defaultMode,
	}
	e.grants = NewGrantManager(&e.mu, clock)

	logger.Info("policy engine initialized",
		"policy", doc.Name,
		"version", doc.Version,
		"default_mode", defaultMode,
		"modes", doc.ModeNames(),
	)

	return e, nil
}

// Document returns the policy document the engine enforces.
func (e *Engine) Document() *policy.Document {
	return e.doc
}

// SetMode changes the operational mode permanently: any active grant is
// revoked first, then both the current and base mode are set to mode.
// Returns *InvalidModeError, with no state change, when the document
// does not define mode.
func (e *Engine) SetMode(mode string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.expireIfLapsed()

	if !e.doc.HasMode(mode) {
		return &InvalidModeError{Mode: mode, Known: e.doc.ModeNames()}
	}

	if e.grants.Valid() {
		e.grants.Revoke()
		e.events.GrantEvent(GrantRevoked, 0)
	}

	prev := e.currentMode
	e.currentMode = mode
	e.baseMode = mode

	if prev != mode {
		e.events.ModeChanged(prev, mode, CauseSetMode)
	}
	e.logger.Info("mode changed", "from", prev, "to", mode)

	return nil
}

// GrantTemporary elevates the engine to the document's elevated mode for
// the given duration. The pre-elevation mode is captured as the base
// mode and restored automatically when the grant expires. Granting while
// a grant is already active replaces it: the new duration is not merged
// with the old, and the original base mode is kept.
func (e *Engine) GrantTemporary(duration time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Retire a lapsed-but-unfired grant before capturing the base mode,
	// otherwise the stale elevation would be captured as the base and
	// expiry could never revert out of the elevated mode.
	e.expireIfLapsed()

	if duration <= 0 {
		return ErrNonPositiveDuration
	}

	elevated := e.doc.ElevatedMode()
	if elevated == "" {
		return ErrNoElevatedMode
	}

	// Capture the pre-elevation mode only on a fresh grant. A replacing
	// grant keeps the base mode from the original elevation, otherwise
	// expiry would revert into the elevated mode itself.
	if !e.grants.Valid() {
		e.baseMode = e.currentMode
	}

	if err := e.grants.Grant(duration, e.revertToBase); err != nil {
		return err
	}

	prev := e.currentMode
	e.currentMode = elevated

	if prev != elevated {
		e.events.ModeChanged(prev, elevated, CauseGrant)
	}
	e.events.GrantEvent(GrantGranted, duration)

	e.logger.Info("temporary grant issued",
		"duration", duration,
		"elevated_mode", elevated,
		"base_mode", e.baseMode,
	)

	return nil
}

// ExtendTemporary adds extra time to the active grant: the new duration
// is the time remaining plus extra, with the base mode unchanged.
// Returns ErrNoActiveGrant, with no state change, when nothing is
// active; callers treat that as a warning, not a failure.
func (e *Engine) ExtendTemporary(extra time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.expireIfLapsed()

	if err := e.grants.Extend(extra); err != nil {
		if err == ErrNoActiveGrant {
			e.logger.Warn("no active temporary grant to extend")
		}
		return err
	}

	remaining, _ := e.grants.Remaining()
	e.events.GrantEvent(GrantExtended, remaining)

	e.logger.Info("temporary grant extended",
		"extra", extra,
		"remaining", remaining,
	)

	return nil
}

// RevokeTemporary cancels the active grant and reverts to the base mode
// immediately, without waiting for the timer. Reports whether a grant
// was active; revoking with nothing active is a no-op.
func (e *Engine) RevokeTemporary() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.expireIfLapsed()

	wasActive := e.grants.Revoke()

	prev := e.currentMode
	e.currentMode = e.baseMode

	if wasActive {
		if prev != e.currentMode {
			e.events.ModeChanged(prev, e.currentMode, CauseRevoke)
		}
		e.events.GrantEvent(GrantRevoked, 0)
		e.logger.Info("temporary grant revoked", "mode", e.currentMode)
	}

	return wasActive
}

// Status returns a consistent snapshot of the engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.expireIfLapsed()

	status := Status{
		CurrentMode: e.currentMode,
		BaseMode:    e.baseMode,
		GrantActive: e.grants.Valid(),
	}
	if status.GrantActive {
		status.GrantRemaining, _ = e.grants.Remaining()
	}
	return status
}

// AllowedTools returns the allow list of the current mode.
func (e *Engine) AllowedTools() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if mode, ok := e.doc.Mode(e.currentMode); ok {
		return mode.AllowedTools
	}
	return nil
}

// BlockedTools returns the block list of the current mode.
func (e *Engine) BlockedTools() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if mode, ok := e.doc.Mode(e.currentMode); ok {
		return mode.BlockedTools
	}
	return nil
}

// Validate decides whether the named tool may execute, evaluating the
// three pipeline stages in fixed order with each stage short-circuiting:
// global block, then mode block, then mode allow-list (default deny).
//
// args and reqCtx are accepted as extension points for per-argument
// policy; the pipeline does not branch on their contents.
func (e *Engine) Validate(tool string, args map[string]any, reqCtx map[string]any) *Decision {
	_ = args
	_ = reqCtx

	e.mu.Lock()
	defer e.mu.Unlock()

	e.expireIfLapsed()

	mode := e.currentMode
	grantActive := e.grants.Valid()
	var grantRemaining time.Duration
	if grantActive {
		grantRemaining, _ = e.grants.Remaining()
	}

	decision := &Decision{
		Tool:           tool,
		Mode:           mode,
		GrantActive:    grantActive,
		GrantRemaining: grantRemaining,
	}

	deny := func(reason ReasonCode, message string) *Decision {
		decision.Violation = &Violation{
			Tool:           tool,
			Mode:           mode,
			Reason:         reason,
			Message:        message,
			GrantActive:    grantActive,
			GrantRemaining: grantRemaining,
		}
		e.events.DecisionMade(tool, mode, reason, false)
		e.logger.Info("tool blocked by policy",
			"tool", tool,
			"mode", mode,
			"reason", string(reason),
		)
		return decision
	}

	// Stage 1: global block. Ignores mode and any active grant; no
	// permission, temporary or permanent, can unblock these tools.
	if e.doc.GloballyBlocked(tool) {
		return deny(ReasonGloballyBlocked,
			fmt.Sprintf("tool %q is globally blocked", tool))
	}

	modeDef, ok := e.doc.Mode(mode)
	if !ok {
		return deny(ReasonNotWhitelisted,
			fmt.Sprintf("tool %q not allowed: mode %q is not defined", tool, mode))
	}

	// Stage 2: mode block. The grant annotation is informational only.
	if modeDef.Blocks(tool) {
		message := fmt.Sprintf("tool %q is blocked in %s mode", tool, mode)
		if grantActive {
			message += fmt.Sprintf(" (temporary grant: %.1fs remaining)", grantRemaining.Seconds())
		}
		return deny(ReasonBlockedInMode, message)
	}

	// Stage 3: mode allow-list. Tools in neither list are denied.
	if !modeDef.Allows(tool) {
		return deny(ReasonNotWhitelisted,
			fmt.Sprintf("tool %q is not whitelisted for %s mode", tool, mode))
	}

	decision.Allowed = true
	e.events.DecisionMade(tool, mode, "", true)

	if grantActive {
		e.logger.Info("tool allowed under temporary grant",
			"tool", tool,
			"mode", mode,
			"grant_remaining", grantRemaining,
		)
	} else {
		e.logger.Debug("tool allowed", "tool", tool, "mode", mode)
	}

	return decision
}

// revertToBase is the grant expiry callback. It runs with the engine
// mutex held, either on the timer goroutine or synchronously from
// expireIfLapsed.
func (e *Engine) revertToBase() {
	prev := e.currentMode
	e.currentMode = e.baseMode

	if prev != e.currentMode {
		e.events.ModeChanged(prev, e.currentMode, CauseExpiry)
	}
	e.events.GrantEvent(GrantExpired, 0)

	e.logger.Info("temporary grant expired",
		"reverted_to", e.currentMode,
	)
}

// expireIfLapsed retires a grant whose deadline has passed but whose
// timer callback has not run yet, so readers never observe the window
// between the deadline and the timer goroutine taking the lock. Must be
// called with the engine mutex held.
func (e *Engine) expireIfLapsed() {
	e.grants.ExpireNow()
}

// nopRecorder is the null EventRecorder.
type nopRecorder struct{}

func (nopRecorder) ModeChanged(string, string, ModeChangeCause)   {}
func (nopRecorder) GrantEvent(GrantEventType, time.Duration)      {}
func (nopRecorder) DecisionMade(string, string, ReasonCode, bool) {}
