package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"proxi-hq/guardian/pkg/audit"
	"proxi-hq/guardian/pkg/policy/engine"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, errorResponse{
		Success: false,
		Error:   fmt.Sprintf(format, args...),
	})
}

// handleHealth serves GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := s.engine.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"service":                     "guardian",
		"status":                      "operational",
		"current_mode":                status.CurrentMode,
		"base_mode":                   status.BaseMode,
		"temporary_permission_active": status.GrantActive,
		"policy_engine":               "active",
	})
}

// handlePolicyStatus serves GET /policy/status.
func (s *Server) handlePolicyStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := s.engine.Status()
	doc := s.engine.Document()

	writeJSON(w, http.StatusOK, map[string]any{
		"current_mode":     status.CurrentMode,
		"base_mode":        status.BaseMode,
		"allowed_tools":    s.engine.AllowedTools(),
		"blocked_tools":    s.engine.BlockedTools(),
		"globally_blocked": doc.GlobalAlwaysBlocked(),
		"temporary_permission": TemporaryPermission{
			Active:           status.GrantActive,
			RemainingSeconds: status.GrantRemaining.Seconds(),
		},
		"policy": map[string]any{
			"name":    doc.Name,
			"version": doc.Version,
			"modes":   doc.ModeNames(),
		},
	})
}

// handleSetMode serves POST /policy/set-mode.
func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ModeChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.Mode == "" {
		writeError(w, http.StatusBadRequest, "mode is required")
		return
	}

	if err := s.engine.SetMode(req.Mode); err != nil {
		var invalidMode *engine.InvalidModeError
		if errors.As(err, &invalidMode) {
			writeError(w, http.StatusBadRequest, "%v", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"new_mode":      req.Mode,
		"allowed_tools": s.engine.AllowedTools(),
	})
}

// handleGrantTemporary serves POST /policy/grant-temporary.
func (s *Server) handleGrantTemporary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req := TemporaryGrantRequest{DurationSeconds: 10}
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	maxSeconds := s.config.Policy.MaxGrantSeconds
	if req.DurationSeconds < 1 || req.DurationSeconds > maxSeconds {
		writeError(w, http.StatusBadRequest,
			"duration_seconds must be between 1 and %d", maxSeconds)
		return
	}

	if err := s.engine.GrantTemporary(time.Duration(req.DurationSeconds) * time.Second); err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}

	status := s.engine.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"message":          fmt.Sprintf("temporary %s permission granted for %d seconds", status.CurrentMode, req.DurationSeconds),
		"duration_seconds": req.DurationSeconds,
		"current_mode":     status.CurrentMode,
		"base_mode":        status.BaseMode,
	})
}

// handleExtendTemporary serves POST /policy/extend-temporary.
func (s *Server) handleExtendTemporary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req := TemporaryExtensionRequest{AdditionalSeconds: 10}
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	maxSeconds := s.config.Policy.MaxExtendSeconds
	if req.AdditionalSeconds < 1 || req.AdditionalSeconds > maxSeconds {
		writeError(w, http.StatusBadRequest,
			"additional_seconds must be between 1 and %d", maxSeconds)
		return
	}

	if err := s.engine.ExtendTemporary(time.Duration(req.AdditionalSeconds) * time.Second); err != nil {
		if errors.Is(err, engine.ErrNoActiveGrant) {
			writeError(w, http.StatusBadRequest, "no active temporary permission to extend")
			return
		}
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}

	status := s.engine.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":                 true,
		"message":                 fmt.Sprintf("temporary permission extended by %d seconds", req.AdditionalSeconds),
		"additional_seconds":      req.AdditionalSeconds,
		"total_remaining_seconds": status.GrantRemaining.Seconds(),
	})
}

// handleRevokeTemporary serves POST /policy/revoke-temporary.
// Revoking with no active grant is a success, matching the idempotent
// engine semantics.
func (s *Server) handleRevokeTemporary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !s.engine.RevokeTemporary() {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "no active temporary permission to revoke",
		})
		return
	}

	status := s.engine.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "temporary permission revoked",
		"current_mode": status.CurrentMode,
	})
}

// handleExecuteTool serves POST /tools/execute. Validation happens
// before execution; violations return 200 with policy_violation set.
func (s *Server) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.ToolName == "" {
		writeError(w, http.StatusBadRequest, "tool_name is required")
		return
	}

	decision := s.engine.Validate(req.ToolName, req.Arguments, req.Context)
	if s.recorder != nil {
		s.recorder.RecordDecision(decision, s.engine.Status(), req.Arguments)
	}

	if !decision.Allowed {
		violation := decision.Violation
		writeJSON(w, http.StatusOK, ToolResponse{
			Success:         false,
			PolicyViolation: true,
			BlockedReason:   violation.Message,
			Error:           fmt.Sprintf("policy violation: %s", violation.Reason),
		})
		return
	}

	result, err := s.registry.Execute(r.Context(), req.ToolName, req.Arguments)
	if err != nil {
		writeJSON(w, http.StatusOK, ToolResponse{
			Success: false,
			Error:   fmt.Sprintf("execution error: %v", err),
		})
		return
	}

	writeJSON(w, http.StatusOK, ToolResponse{
		Success: true,
		Result:  result,
	})
}

// handleToolCatalog serves GET /tools/catalog.
func (s *Server) handleToolCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := s.engine.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"tools":        s.registry.Catalog(),
		"current_mode": status.CurrentMode,
		"temporary_permission": TemporaryPermission{
			Active:           status.GrantActive,
			RemainingSeconds: status.GrantRemaining.Seconds(),
		},
	})
}

// handleInfraStatus serves GET /infrastructure/status.
func (s *Server) handleInfraStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"services":       s.infra.Services(),
		"fleet_size":     s.infra.FleetSize(),
		"recent_actions": s.infra.RecentActions(10),
	})
}

// handleSimulateIncident serves POST /infrastructure/simulate-incident.
// Demo helper: flips a service to an unhealthy status.
func (s *Server) handleSimulateIncident(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	service := r.URL.Query().Get("service")
	if service == "" {
		writeError(w, http.StatusBadRequest, "service query parameter is required")
		return
	}
	status := r.URL.Query().Get("status")
	if status == "" {
		status = "critical"
	}

	s.infra.SetServiceHealth(service, status)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("simulated incident: %s set to %s", service, status),
	})
}

// handleAuditRecords serves GET /audit/records.
func (s *Server) handleAuditRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.auditStore == nil {
		writeError(w, http.StatusNotFound, "audit trail is not enabled")
		return
	}

	query := &audit.Query{
		Kind: audit.Kind(r.URL.Query().Get("kind")),
		Tool: r.URL.Query().Get("tool"),
		Mode: r.URL.Query().Get("mode"),
	}
	query.Limit = 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var limit int
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		query.Limit = limit
	}

	records, err := s.auditStore.Query(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "audit query failed: %v", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

// decodeOptionalBody decodes a JSON body into dst, treating an empty
// body as "use the defaults already in dst".
func decodeOptionalBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
