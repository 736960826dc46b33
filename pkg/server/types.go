package server

// ToolRequest is the body of POST /tools/execute.
type ToolRequest struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Context   map[string]any `json:"context"`
}

// ToolResponse is the body of POST /tools/execute responses. Policy
// violations return 200 with PolicyViolation set; Error is populated
// for both violations and execution failures.
type ToolResponse struct {
	Success         bool   `json:"success"`
	Result          any    `json:"result,omitempty"`
	Error           string `json:"error,omitempty"`
	PolicyViolation bool   `json:"policy_violation"`
	BlockedReason   string `json:"blocked_reason,omitempty"`
}

// ModeChangeRequest is the body of POST /policy/set-mode.
type ModeChangeRequest struct {
	Mode string `json:"mode"`
}

// TemporaryGrantRequest is the body of POST /policy/grant-temporary.
// DurationSeconds defaults to 10 and is bounded by the configured
// maximum.
type TemporaryGrantRequest struct {
	DurationSeconds int `json:"duration_seconds"`
}

// TemporaryExtensionRequest is the body of POST /policy/extend-temporary.
// AdditionalSeconds defaults to 10 and is bounded by the configured
// maximum.
type TemporaryExtensionRequest struct {
	AdditionalSeconds int `json:"additional_seconds"`
}

// TemporaryPermission reports grant state in status responses.
type TemporaryPermission struct {
	Active           bool    `json:"active"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}

// errorResponse is the generic error body.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
