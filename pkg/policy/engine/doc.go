// Package engine implements the guardian policy decision engine.
//
// The engine gates tool execution behind the current operational mode and
// an optional time-limited elevation grant. Every requested tool passes
// through a three-stage validation pipeline:
//
//  1. Global stage: tools on the document's always-blocked list are
//     denied in every mode. No grant, temporary or permanent, can ever
//     unblock them.
//  2. Mode-block stage: tools on the current mode's block list are
//     denied.
//  3. Mode-allow stage: tools absent from the current mode's allow list
//     are denied (default deny).
//
// Temporary grants elevate the engine to the document's elevated mode for
// a bounded duration, reverting automatically on expiry. At most one
// grant exists at a time; granting again replaces the previous grant and
// cancels its timer.
//
// All engine state is guarded by a single mutex per instance. The expiry
// timer acquires the same mutex and checks a generation counter before
// mutating state, so a grant extended or revoked in the instant before
// its timer fires can never revert the mode afterwards.
package engine
