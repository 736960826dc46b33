package engine

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"proxi-hq/guardian/pkg/policy"
)

const testPolicyJSON = `{
  "policy_name": "ops-policy-test",
  "version": "1.0",
  "modes": {
    "NORMAL": {
      "description": "Routine operations",
      "allowed_tools": ["get_service_status", "list_services", "read_logs"],
      "blocked_tools": ["restart_service", "scale_fleet"]
    },
    "EMERGENCY": {
      "description": "Incident response",
      "allowed_tools": ["get_service_status", "list_services", "read_logs", "restart_service", "scale_fleet"],
      "blocked_tools": ["purge_backups"]
    }
  },
  "global_rules": {
    "always_blocked": ["delete_database"]
  }
}`

func loadTestDocument(t *testing.T) *policy.Document {
	t.Helper()

	path := filepath.Join(t.TempDir(), "policy.json")
	if err := os.WriteFile(path, []byte(testPolicyJSON), 0o644); err != nil {
		t.Fatalf("failed to write test policy: %v", err)
	}

	doc, err := policy.Load(path)
	if err != nil {
		t.Fatalf("failed to load test policy: %v", err)
	}
	return doc
}

func newTestEngine(t *testing.T) (*Engine, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	eng, err := New(loadTestDocument(t), &Config{
		DefaultMode: "NORMAL",
		Clock:       clock,
	})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return eng, clock
}

func TestEngine_New_UnknownDefaultMode(t *testing.T) {
	_, err := New(loadTestDocument(t), &Config{DefaultMode: "MAINTENANCE"})

	var invalidMode *InvalidModeError
	if !errors.As(err, &invalidMode) {
		t.Fatalf("New error = %v, want *InvalidModeError", err)
	}
	if invalidMode.Mode != "MAINTENANCE" {
		t.Errorf("InvalidModeError.Mode = %q, want %q", invalidMode.Mode, "MAINTENANCE")
	}
}

func TestEngine_New_NilDocument(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Fatal("New(nil) should fail")
	}
}

func TestEngine_SetMode_Valid(t *testing.T) {
	eng, _ := newTestEngine(t)

	if err := eng.SetMode("EMERGENCY"); err != nil {
		t.Fatalf("SetMode failed: %v", err)
	}

	status := eng.Status()
	if status.CurrentMode != "EMERGENCY" || status.BaseMode != "EMERGENCY" {
		t.Errorf("Status = %+v, want current and base EMERGENCY", status)
	}
}

func TestEngine_SetMode_Unknown(t *testing.T) {
	eng, _ := newTestEngine(t)

	err := eng.SetMode("MAINTENANCE")

	var invalidMode *InvalidModeError
	if !errors.As(err, &invalidMode) {
		t.Fatalf("SetMode error = %v, want *InvalidModeError", err)
	}

	// No state change on rejection.
	status := eng.Status()
	if status.CurrentMode != "NORMAL" || status.BaseMode != "NORMAL" {
		t.Errorf("Status after rejected SetMode = %+v, want NORMAL/NORMAL", status)
	}
}

func TestEngine_Validate_AllowedInMode(t *testing.T) {
	eng, _ := newTestEngine(t)

	decision := eng.Validate("get_service_status", nil, nil)
	if !decision.Allowed {
		t.Errorf("Validate(get_service_status) denied: %v", decision.Violation)
	}
	if decision.Mode != "NORMAL" {
		t.Errorf("decision.Mode = %q, want NORMAL", decision.Mode)
	}
}

func TestEngine_Validate_BlockedInMode(t *testing.T) {
	eng, _ := newTestEngine(t)

	decision := eng.Validate("restart_service", nil, nil)
	if decision.Allowed {
		t.Fatal("Validate(restart_service) should be denied in NORMAL mode")
	}
	if decision.Violation.Reason != ReasonBlockedInMode {
		t.Errorf("reason = %q, want %q", decision.Violation.Reason, ReasonBlockedInMode)
	}
	if decision.Violation.Tool != "restart_service" || decision.Violation.Mode != "NORMAL" {
		t.Errorf("violation = %+v, want tool restart_service in NORMAL", decision.Violation)
	}
}

func TestEngine_Validate_DefaultDeny(t *testing.T) {
	eng, _ := newTestEngine(t)

	// A tool in neither the allow nor the block list is denied.
	decision := eng.Validate("launch_missiles", nil, nil)
	if decision.Allowed {
		t.Fatal("unlisted tool should be denied")
	}
	if decision.Violation.Reason != ReasonNotWhitelisted {
		t.Errorf("reason = %q, want %q", decision.Violation.Reason, ReasonNotWhitelisted)
	}
}

func TestEngine_Validate_GloballyBlocked(t *testing.T) {
	eng, _ := newTestEngine(t)

	for _, mode := range []string{"NORMAL", "EMERGENCY"} {
		if err := eng.SetMode(mode); err != nil {
			t.Fatalf("SetMode(%s) failed: %v", mode, err)
		}
		decision := eng.Validate("delete_database", nil, nil)
		if decision.Allowed {
			t.Fatalf("delete_database allowed in %s mode", mode)
		}
		if decision.Violation.Reason != ReasonGloballyBlocked {
			t.Errorf("reason in %s = %q, want %q", mode, decision.Violation.Reason, ReasonGloballyBlocked)
		}
	}
}

func TestEngine_Validate_GloballyBlockedIgnoresGrant(t *testing.T) {
	eng, _ := newTestEngine(t)

	if err := eng.GrantTemporary(300 * time.Second); err != nil {
		t.Fatalf("GrantTemporary failed: %v", err)
	}

	decision := eng.Validate("delete_database", nil, nil)
	if decision.Allowed {
		t.Fatal("global block must hold even under an active grant")
	}
	if decision.Violation.Reason != ReasonGloballyBlocked {
		t.Errorf("reason = %q, want %q", decision.Violation.Reason, ReasonGloballyBlocked)
	}
}

func TestEngine_GrantTemporary_ElevatesAndReverts(t *testing.T) {
	eng, clock := newTestEngine(t)

	// Blocked before the grant.
	if decision := eng.Validate("restart_service", nil, nil); decision.Allowed {
		t.Fatal("restart_service should be blocked in NORMAL mode")
	}

	if err := eng.GrantTemporary(10 * time.Second); err != nil {
		t.Fatalf("GrantTemporary failed: %v", err)
	}

	status := eng.Status()
	if status.CurrentMode != "EMERGENCY" || status.BaseMode != "NORMAL" {
		t.Errorf("Status under grant = %+v, want EMERGENCY/NORMAL", status)
	}
	if !status.GrantActive || status.GrantRemaining != 10*time.Second {
		t.Errorf("grant status = active=%v remaining=%v, want active 10s", status.GrantActive, status.GrantRemaining)
	}

	decision := eng.Validate("restart_service", nil, nil)
	if !decision.Allowed {
		t.Fatalf("restart_service denied under grant: %v", decision.Violation)
	}
	if !decision.GrantActive {
		t.Error("decision should note the active grant")
	}

	// Still elevated just before expiry.
	clock.Advance(9 * time.Second)
	if decision := eng.Validate("restart_service", nil, nil); !decision.Allowed {
		t.Fatalf("restart_service denied at 9s: %v", decision.Violation)
	}

	// Reverts automatically at expiry, with no external call.
	clock.Advance(time.Second)

	status = eng.Status()
	if status.CurrentMode != "NORMAL" || status.BaseMode != "NORMAL" || status.GrantActive {
		t.Errorf("Status after expiry = %+v, want NORMAL/NORMAL inactive", status)
	}

	decision = eng.Validate("restart_service", nil, nil)
	if decision.Allowed {
		t.Fatal("restart_service should be blocked again after expiry")
	}
	if decision.Violation.Reason != ReasonBlockedInMode {
		t.Errorf("reason after expiry = %q, want %q", decision.Violation.Reason, ReasonBlockedInMode)
	}
}

func TestEngine_GrantTemporary_NonPositiveDuration(t *testing.T) {
	eng, _ := newTestEngine(t)

	if err := eng.GrantTemporary(0); err != ErrNonPositiveDuration {
		t.Errorf("GrantTemporary(0) error = %v, want ErrNonPositiveDuration", err)
	}

	status := eng.Status()
	if status.CurrentMode != "NORMAL" || status.GrantActive {
		t.Errorf("rejected grant changed state: %+v", status)
	}
}

func TestEngine_GrantTemporary_ReplacementKeepsBaseMode(t *testing.T) {
	eng, clock := newTestEngine(t)

	if err := eng.GrantTemporary(10 * time.Second); err != nil {
		t.Fatalf("first GrantTemporary failed: %v", err)
	}
	clock.Advance(5 * time.Second)

	// Re-granting while elevated must not capture EMERGENCY as the base.
	if err := eng.GrantTemporary(20 * time.Second); err != nil {
		t.Fatalf("second GrantTemporary failed: %v", err)
	}

	status := eng.Status()
	if status.BaseMode != "NORMAL" {
		t.Errorf("BaseMode after replacement = %q, want NORMAL", status.BaseMode)
	}
	if status.GrantRemaining != 20*time.Second {
		t.Errorf("GrantRemaining = %v, want 20s (durations are not merged)", status.GrantRemaining)
	}

	clock.Advance(20 * time.Second)
	if status := eng.Status(); status.CurrentMode != "NORMAL" {
		t.Errorf("CurrentMode after replacement expiry = %q, want NORMAL", status.CurrentMode)
	}
}

func TestEngine_GrantTemporary_LapsedGrantDoesNotLeakBaseMode(t *testing.T) {
	eng, clock := newTestEngine(t)

	if err := eng.GrantTemporary(10 * time.Second); err != nil {
		t.Fatalf("GrantTemporary failed: %v", err)
	}

	// Deadline passes but the timer goroutine has not run yet. A fresh
	// grant in that window must not capture the stale elevation as its
	// base mode.
	clock.advanceNoFire(11 * time.Second)
	if err := eng.GrantTemporary(10 * time.Second); err != nil {
		t.Fatalf("re-grant failed: %v", err)
	}

	status := eng.Status()
	if status.BaseMode != "NORMAL" {
		t.Errorf("BaseMode after re-grant = %q, want NORMAL", status.BaseMode)
	}

	clock.Advance(10 * time.Second)
	status = eng.Status()
	if status.CurrentMode != "NORMAL" || status.GrantActive {
		t.Errorf("Status after expiry = %+v, want NORMAL inactive", status)
	}
}

func TestEngine_RevokeTemporary_LapsedGrantReportsInactive(t *testing.T) {
	eng, clock := newTestEngine(t)

	if err := eng.GrantTemporary(10 * time.Second); err != nil {
		t.Fatalf("GrantTemporary failed: %v", err)
	}
	clock.advanceNoFire(11 * time.Second)

	// The grant lapsed on its own; revoking afterwards finds nothing
	// active and the mode has already reverted.
	if eng.RevokeTemporary() {
		t.Error("RevokeTemporary after lapse should report false")
	}
	if status := eng.Status(); status.CurrentMode != "NORMAL" {
		t.Errorf("CurrentMode after lapsed revoke = %q, want NORMAL", status.CurrentMode)
	}
}

func TestEngine_SetMode_LapsedGrantEmitsExpiryNotRevoke(t *testing.T) {
	events := &recordingEvents{}
	clock := newFakeClock()
	eng, err := New(loadTestDocument(t), &Config{
		DefaultMode: "NORMAL",
		Clock:       clock,
		Events:      events,
	})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	if err := eng.GrantTemporary(10 * time.Second); err != nil {
		t.Fatalf("GrantTemporary failed: %v", err)
	}
	clock.advanceNoFire(11 * time.Second)

	if err := eng.SetMode("NORMAL"); err != nil {
		t.Fatalf("SetMode failed: %v", err)
	}

	// The stale timer finally runs; its generation is no longer current
	// so it must not emit a second expiry.
	clock.fireDue()

	wantGrants := []GrantEventType{GrantGranted, GrantExpired}
	events.mu.Lock()
	defer events.mu.Unlock()
	if len(events.grantEvents) != len(wantGrants) {
		t.Fatalf("grant events = %v, want %v", events.grantEvents, wantGrants)
	}
	for i, want := range wantGrants {
		if events.grantEvents[i] != want {
			t.Errorf("grant event %d = %q, want %q", i, events.grantEvents[i], want)
		}
	}
}

func TestEngine_ExtendTemporary_ResetsExpiry(t *testing.T) {
	eng, clock := newTestEngine(t)

	if err := eng.GrantTemporary(10 * time.Second); err != nil {
		t.Fatalf("GrantTemporary failed: %v", err)
	}

	clock.Advance(4 * time.Second)
	if err := eng.ExtendTemporary(5 * time.Second); err != nil {
		t.Fatalf("ExtendTemporary failed: %v", err)
	}

	status := eng.Status()
	if status.GrantRemaining != 11*time.Second {
		t.Errorf("GrantRemaining = %v, want 11s (6s left + 5s extra)", status.GrantRemaining)
	}
	if status.BaseMode != "NORMAL" {
		t.Errorf("BaseMode changed across extension: %q", status.BaseMode)
	}

	// Base mode survives any number of extensions.
	for i := 0; i < 3; i++ {
		if err := eng.ExtendTemporary(time.Second); err != nil {
			t.Fatalf("ExtendTemporary %d failed: %v", i, err)
		}
	}
	if status := eng.Status(); status.BaseMode != "NORMAL" {
		t.Errorf("BaseMode after repeated extensions = %q, want NORMAL", status.BaseMode)
	}

	remaining := eng.Status().GrantRemaining
	clock.Advance(remaining)
	if status := eng.Status(); status.CurrentMode != "NORMAL" || status.GrantActive {
		t.Errorf("Status after extended expiry = %+v, want NORMAL inactive", status)
	}
}

func TestEngine_ExtendTemporary_NoActiveGrant(t *testing.T) {
	eng, _ := newTestEngine(t)

	if err := eng.ExtendTemporary(10 * time.Second); err != ErrNoActiveGrant {
		t.Errorf("ExtendTemporary error = %v, want ErrNoActiveGrant", err)
	}
	if status := eng.Status(); status.GrantActive {
		t.Error("GrantActive should remain false after no-op extend")
	}
}

func TestEngine_RevokeTemporary_Synchronous(t *testing.T) {
	eng, clock := newTestEngine(t)

	if err := eng.GrantTemporary(10 * time.Second); err != nil {
		t.Fatalf("GrantTemporary failed: %v", err)
	}

	if !eng.RevokeTemporary() {
		t.Error("RevokeTemporary should report an active grant")
	}

	// Reversion is immediate, no waiting for the timer.
	status := eng.Status()
	if status.CurrentMode != "NORMAL" || status.GrantActive {
		t.Errorf("Status after revoke = %+v, want NORMAL inactive", status)
	}

	// A stale timer must not re-trigger reversion after a later change.
	if err := eng.SetMode("EMERGENCY"); err != nil {
		t.Fatalf("SetMode failed: %v", err)
	}
	clock.Advance(20 * time.Second)
	if status := eng.Status(); status.CurrentMode != "EMERGENCY" {
		t.Errorf("stale timer reverted mode to %q", status.CurrentMode)
	}
}

func TestEngine_RevokeTemporary_Idempotent(t *testing.T) {
	eng, _ := newTestEngine(t)

	if eng.RevokeTemporary() {
		t.Error("RevokeTemporary with nothing active should report false")
	}
}

func TestEngine_SetMode_RevokesActiveGrant(t *testing.T) {
	eng, clock := newTestEngine(t)

	if err := eng.GrantTemporary(10 * time.Second); err != nil {
		t.Fatalf("GrantTemporary failed: %v", err)
	}

	// Permanent change while a grant is active: the grant is revoked and
	// the new mode sticks, with no later auto-revert.
	if err := eng.SetMode("EMERGENCY"); err != nil {
		t.Fatalf("SetMode failed: %v", err)
	}

	status := eng.Status()
	if status.CurrentMode != "EMERGENCY" || status.BaseMode != "EMERGENCY" || status.GrantActive {
		t.Errorf("Status = %+v, want permanent EMERGENCY with no grant", status)
	}

	clock.Advance(20 * time.Second)
	if status := eng.Status(); status.CurrentMode != "EMERGENCY" {
		t.Errorf("mode reverted to %q after SetMode, want EMERGENCY", status.CurrentMode)
	}
}

func TestEngine_Validate_BlockedMessageNotesGrant(t *testing.T) {
	eng, _ := newTestEngine(t)

	if err := eng.GrantTemporary(10 * time.Second); err != nil {
		t.Fatalf("GrantTemporary failed: %v", err)
	}

	// purge_backups is blocked in EMERGENCY: the denial stands, and the
	// violation notes the active grant for observability.
	decision := eng.Validate("purge_backups", nil, nil)
	if decision.Allowed {
		t.Fatal("purge_backups should be blocked in EMERGENCY mode")
	}
	if decision.Violation.Reason != ReasonBlockedInMode {
		t.Errorf("reason = %q, want %q", decision.Violation.Reason, ReasonBlockedInMode)
	}
	if !decision.Violation.GrantActive {
		t.Error("violation should note the active grant")
	}
}

// recordingEvents captures engine events for assertions.
type recordingEvents struct {
	mu          sync.Mutex
	modeChanges []string
	grantEvents []GrantEventType
}

func (r *recordingEvents) ModeChanged(from, to string, cause ModeChangeCause) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modeChanges = append(r.modeChanges, from+"->"+to+":"+string(cause))
}

func (r *recordingEvents) GrantEvent(event GrantEventType, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grantEvents = append(r.grantEvents, event)
}

func (r *recordingEvents) DecisionMade(string, string, ReasonCode, bool) {}

func TestEngine_Events_GrantLifecycle(t *testing.T) {
	events := &recordingEvents{}
	clock := newFakeClock()
	eng, err := New(loadTestDocument(t), &Config{
		DefaultMode: "NORMAL",
		Clock:       clock,
		Events:      events,
	})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	if err := eng.GrantTemporary(10 * time.Second); err != nil {
		t.Fatalf("GrantTemporary failed: %v", err)
	}
	if err := eng.ExtendTemporary(5 * time.Second); err != nil {
		t.Fatalf("ExtendTemporary failed: %v", err)
	}
	clock.Advance(15 * time.Second)

	wantGrants := []GrantEventType{GrantGranted, GrantExtended, GrantExpired}
	events.mu.Lock()
	defer events.mu.Unlock()
	if len(events.grantEvents) != len(wantGrants) {
		t.Fatalf("grant events = %v, want %v", events.grantEvents, wantGrants)
	}
	for i, want := range wantGrants {
		if events.grantEvents[i] != want {
			t.Errorf("grant event %d = %q, want %q", i, events.grantEvents[i], want)
		}
	}

	wantModes := []string{
		"NORMAL->EMERGENCY:grant",
		"EMERGENCY->NORMAL:expiry",
	}
	if len(events.modeChanges) != len(wantModes) {
		t.Fatalf("mode changes = %v, want %v", events.modeChanges, wantModes)
	}
	for i, want := range wantModes {
		if events.modeChanges[i] != want {
			t.Errorf("mode change %d = %q, want %q", i, events.modeChanges[i], want)
		}
	}
}

func TestEngine_ConcurrentAccess(t *testing.T) {
	clock := newFakeClock()
	eng, err := New(loadTestDocument(t), &Config{
		DefaultMode: "NORMAL",
		Clock:       clock,
	})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				switch (n + j) % 5 {
				case 0:
					_ = eng.GrantTemporary(10 * time.Second)
				case 1:
					_ = eng.ExtendTemporary(time.Second)
				case 2:
					eng.RevokeTemporary()
				case 3:
					// A snapshot must never mix pre- and post-transition
					// state: an inactive grant implies current == base.
					status := eng.Status()
					if !status.GrantActive && status.CurrentMode != status.BaseMode {
						t.Errorf("inconsistent snapshot: %+v", status)
					}
				default:
					decision := eng.Validate("delete_database", nil, nil)
					if decision.Allowed {
						t.Error("globally blocked tool allowed under concurrency")
					}
				}
			}
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			clock.Advance(time.Second)
		}
	}()

	wg.Wait()

	eng.RevokeTemporary()
	status := eng.Status()
	if status.CurrentMode != status.BaseMode {
		t.Errorf("final state inconsistent: %+v", status)
	}
}
