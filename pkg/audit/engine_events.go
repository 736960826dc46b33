package audit

import (
	"time"

	"proxi-hq/guardian/pkg/policy/engine"
)

// EngineEvents adapts a Recorder to the engine's EventRecorder interface
// for mode change and grant lifecycle events. Decision events are not
// forwarded: the transport records decisions directly so it can attach
// the redacted tool arguments, which the engine callback does not carry.
//
// Recorder enqueues without blocking, so forwarding is safe while the
// engine lock is held.
type EngineEvents struct {
	recorder *Recorder
}

// NewEngineEvents creates an EventRecorder adapter for the recorder.
func NewEngineEvents(recorder *Recorder) *EngineEvents {
	return &EngineEvents{recorder: recorder}
}

// ModeChanged records the mode transition.
func (e *EngineEvents) ModeChanged(from, to string, cause engine.ModeChangeCause) {
	e.recorder.RecordModeChange(from, to, cause)
}

// GrantEvent records the grant lifecycle event.
func (e *EngineEvents) GrantEvent(event engine.GrantEventType, remaining time.Duration) {
	e.recorder.RecordGrantEvent(event, remaining)
}

// DecisionMade is a no-op, see the type comment.
func (e *EngineEvents) DecisionMade(tool, mode string, reason engine.ReasonCode, allowed bool) {}
