package engine

import (
	"sync"
	"time"
)

// GrantManager owns the lifecycle of the single active time-limited
// elevation: scheduling its expiry, extending it, and revoking it. What
// "elevation" means is up to the caller, which supplies the expiry
// callback.
//
// GrantManager performs no locking of its own. Every method must be
// called while holding the guard passed to NewGrantManager; the expiry
// timer acquires that same guard before touching state. Sharing one
// exclusion boundary with the caller's mode fields is what keeps a
// validation snapshot consistent with a concurrently firing expiry.
type GrantManager struct {
	guard sync.Locker
	clock Clock

	active    bool
	expiresAt time.Time
	onExpire  func()
	timer     Timer

	// generation increases on every grant and revocation. A timer
	// captures the generation it was scheduled under and fires only if
	// it is still current, so a cancelled timer can never invoke its
	// callback even when cancellation and firing race.
	generation uint64
}

// NewGrantManager creates a grant manager guarded by the given boundary.
func NewGrantManager(guard sync.Locker, clock Clock) *GrantManager {
	if clock == nil {
		clock = RealClock()
	}
	return &GrantManager{guard: guard, clock: clock}
}

// Grant activates a time-limited elevation for the given duration and
// schedules onExpire to run when it lapses. Any prior grant is replaced:
// its timer is cancelled and its callback will not fire. Replacement is
// a single step under the guard; no observer can see the gap between
// cancel-old and install-new.
//
// Returns ErrNonPositiveDuration when duration <= 0; state is unchanged.
func (g *GrantManager) Grant(duration time.Duration, onExpire func()) error {
	if duration <= 0 {
		return ErrNonPositiveDuration
	}

	g.generation++
	if g.timer != nil {
		g.timer.Stop()
	}

	g.active = true
	g.expiresAt = g.clock.Now().Add(duration)
	g.onExpire = onExpire

	gen := g.generation
	g.timer = g.clock.AfterFunc(duration, func() { g.expire(gen) })

	return nil
}

// Extend reschedules the active grant to max(0, remaining) + extra,
// preserving the expiry callback captured at the original grant.
//
// Returns ErrNoActiveGrant when nothing is active (a non-fatal,
// report-only condition) and ErrNonPositiveDuration when extra <= 0.
func (g *GrantManager) Extend(extra time.Duration) error {
	if extra <= 0 {
		return ErrNonPositiveDuration
	}
	if !g.Valid() {
		return ErrNoActiveGrant
	}

	remaining := g.expiresAt.Sub(g.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	return g.Grant(remaining+extra, g.onExpire)
}

// Revoke cancels the pending expiry and deactivates the grant. The
// expiry callback will not fire afterwards. Idempotent: revoking with
// nothing active reports false and changes nothing.
func (g *GrantManager) Revoke() bool {
	wasActive := g.active

	g.generation++
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.active = false
	g.expiresAt = time.Time{}
	g.onExpire = nil

	return wasActive
}

// Valid reports whether a grant is active and unexpired. The result is
// computed from the clock on every call rather than cached: the expiry
// timer may race a concurrent reader, and a lapsed grant must read as
// invalid even before its callback has run.
func (g *GrantManager) Valid() bool {
	return g.active && g.clock.Now().Before(g.expiresAt)
}

// Remaining returns the time left on the active grant. ok is false when
// no grant is active.
func (g *GrantManager) Remaining() (remaining time.Duration, ok bool) {
	if !g.active {
		return 0, false
	}
	remaining = g.expiresAt.Sub(g.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// ExpireNow retires a grant whose deadline has already passed, without
// waiting for its timer goroutine. The pending timer becomes stale and
// will not invoke the callback a second time. Reports whether a lapsed
// grant was expired; an inactive grant or one with time left is
// untouched.
func (g *GrantManager) ExpireNow() bool {
	if !g.active || g.clock.Now().Before(g.expiresAt) {
		return false
	}

	g.generation++
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}

	callback := g.onExpire
	g.active = false
	g.expiresAt = time.Time{}
	g.onExpire = nil

	if callback != nil {
		callback()
	}
	return true
}

// expire runs on the timer goroutine when a grant lapses. It takes the
// shared guard and verifies the scheduling generation is still current;
// a grant replaced, extended, or revoked since then leaves a stale
// generation and the timer does nothing.
func (g *GrantManager) expire(gen uint64) {
	g.guard.Lock()
	defer g.guard.Unlock()

	if gen != g.generation || !g.active {
		return
	}

	callback := g.onExpire
	g.active = false
	g.expiresAt = time.Time{}
	g.onExpire = nil
	g.timer = nil

	if callback != nil {
		callback()
	}
}
