package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Document is an immutable policy document. It is constructed by Load and
// must not be modified afterwards; the engine holds a single Document for
// its entire lifetime.
type Document struct {
	// Name is the descriptive policy name.
	Name string `json:"policy_name" yaml:"policy_name"`

	// Version is the descriptive document version.
	Version string `json:"version" yaml:"version"`

	// Modes maps mode name to its definition.
	Modes map[string]*Mode `json:"modes" yaml:"modes"`

	// GlobalRules apply in every mode, before any mode-specific rule.
	GlobalRules GlobalRules `json:"global_rules" yaml:"global_rules"`

	// fingerprint is the hex SHA-256 of the raw document bytes, captured
	// at load time for drift detection.
	fingerprint string

	// alwaysBlocked is the global block list as a set.
	alwaysBlocked map[string]struct{}
}

// Mode is a named operational posture with its own allow and block lists.
type Mode struct {
	// Description is a human-readable summary of the mode.
	Description string `json:"description" yaml:"description"`

	// AllowedTools lists the tools permitted in this mode.
	AllowedTools []string `json:"allowed_tools" yaml:"allowed_tools"`

	// BlockedTools lists the tools explicitly denied in this mode.
	BlockedTools []string `json:"blocked_tools" yaml:"blocked_tools"`

	allowed map[string]struct{}
	blocked map[string]struct{}
}

// GlobalRules are tool restrictions that apply unconditionally. They are
// checked before mode rules and cannot be overridden by a temporary grant.
type GlobalRules struct {
	// AlwaysBlocked lists tools denied in every mode.
	AlwaysBlocked []string `json:"always_blocked" yaml:"always_blocked"`

	// ElevatedMode optionally names the mode a temporary grant elevates
	// to. When empty, "EMERGENCY" is used if the document defines it.
	ElevatedMode string `json:"elevated_mode,omitempty" yaml:"elevated_mode,omitempty"`
}

// DefaultElevatedMode is the mode name temporary grants elevate to when
// the document does not name one explicitly.
const DefaultElevatedMode = "EMERGENCY"

// Mode returns the definition of the named mode.
func (d *Document) Mode(name string) (*Mode, bool) {
	m, ok := d.Modes[name]
	return m, ok
}

// HasMode reports whether the document defines the named mode.
func (d *Document) HasMode(name string) bool {
	_, ok := d.Modes[name]
	return ok
}

// ModeNames returns the defined mode names in sorted order.
func (d *Document) ModeNames() []string {
	names := make([]string, 0, len(d.Modes))
	for name := range d.Modes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GloballyBlocked reports whether the tool appears in the global block
// list. This check ignores mode and grant state.
func (d *Document) GloballyBlocked(tool string) bool {
	_, ok := d.alwaysBlocked[tool]
	return ok
}

// GlobalAlwaysBlocked returns the global block list.
func (d *Document) GlobalAlwaysBlocked() []string {
	return d.GlobalRules.AlwaysBlocked
}

// ElevatedMode returns the mode name temporary grants elevate to, or ""
// when the document defines no suitable mode.
func (d *Document) ElevatedMode() string {
	if d.GlobalRules.ElevatedMode != "" {
		return d.GlobalRules.ElevatedMode
	}
	if d.HasMode(DefaultElevatedMode) {
		return DefaultElevatedMode
	}
	return ""
}

// Fingerprint returns the hex SHA-256 of the raw bytes the document was
// loaded from. Used by the drift watcher.
func (d *Document) Fingerprint() string {
	return d.fingerprint
}

// Allows reports whether the tool is on the mode's allow list.
func (m *Mode) Allows(tool string) bool {
	_, ok := m.allowed[tool]
	return ok
}

// Blocks reports whether the tool is on the mode's block list.
func (m *Mode) Blocks(tool string) bool {
	_, ok := m.blocked[tool]
	return ok
}

// normalize builds the lookup sets and records the content fingerprint.
// Called once by Load; the document is read-only afterwards.
func (d *Document) normalize(raw []byte) {
	sum := sha256.Sum256(raw)
	d.fingerprint = hex.EncodeToString(sum[:])

	d.alwaysBlocked = toSet(d.GlobalRules.AlwaysBlocked)
	for _, mode := range d.Modes {
		mode.allowed = toSet(mode.AllowedTools)
		mode.blocked = toSet(mode.BlockedTools)
	}
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
