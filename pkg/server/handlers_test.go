package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"proxi-hq/guardian/pkg/config"
	"proxi-hq/guardian/pkg/policy"
	"proxi-hq/guardian/pkg/policy/engine"
	"proxi-hq/guardian/pkg/tools"
)

const testPolicyJSON = `{
  "policy_name": "ops_policy",
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
      "blocked_tools": []
    }
  },
  "global_rules": {
    "always_blocked": ["delete_database"],
    "elevated_mode": "EMERGENCY"
  }
}`

type testServer struct {
	server *Server
	engine *engine.Engine
	infra  *tools.CloudInfra
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	doc, err := policy.Parse([]byte(testPolicyJSON), ".json")
	if err != nil {
		t.Fatalf("failed to parse test policy: %v", err)
	}

	eng, err := engine.New(doc, &engine.Config{DefaultMode: "NORMAL"})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	infra := tools.NewCloudInfra()
	registry := tools.NewRegistry()
	if err := infra.RegisterAll(registry); err != nil {
		t.Fatalf("failed to register tools: %v", err)
	}

	srv := NewServer(Options{
		Config:   config.DefaultConfig(),
		Engine:   eng,
		Registry: registry,
		Infra:    infra,
	})

	return &testServer{server: srv, engine: eng, infra: infra}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, reqBody)
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["status"] != "operational" {
		t.Errorf("status = %v, want operational", body["status"])
	}
	if body["current_mode"] != "NORMAL" {
		t.Errorf("current_mode = %v, want NORMAL", body["current_mode"])
	}
	if body["temporary_permission_active"] != false {
		t.Errorf("temporary_permission_active = %v, want false", body["temporary_permission_active"])
	}
}

func TestHandlePolicyStatus(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/policy/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["current_mode"] != "NORMAL" || body["base_mode"] != "NORMAL" {
		t.Errorf("modes = %v/%v, want NORMAL/NORMAL", body["current_mode"], body["base_mode"])
	}

	allowed := body["allowed_tools"].([]any)
	if len(allowed) != 3 {
		t.Errorf("allowed_tools = %v, want 3 entries", allowed)
	}

	global := body["globally_blocked"].([]any)
	if len(global) != 1 || global[0] != "delete_database" {
		t.Errorf("globally_blocked = %v, want [delete_database]", global)
	}
}

func TestHandleSetMode(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/policy/set-mode", ModeChangeRequest{Mode: "EMERGENCY"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["new_mode"] != "EMERGENCY" {
		t.Errorf("new_mode = %v, want EMERGENCY", body["new_mode"])
	}
	if got := ts.engine.Status().CurrentMode; got != "EMERGENCY" {
		t.Errorf("engine mode = %q, want EMERGENCY", got)
	}
}

func TestHandleSetMode_InvalidMode(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/policy/set-mode", ModeChangeRequest{Mode: "PANIC"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := ts.engine.Status().CurrentMode; got != "NORMAL" {
		t.Errorf("engine mode = %q, want unchanged NORMAL", got)
	}
}

func TestHandleGrantTemporary(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/policy/grant-temporary", TemporaryGrantRequest{DurationSeconds: 30})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["current_mode"] != "EMERGENCY" {
		t.Errorf("current_mode = %v, want EMERGENCY", body["current_mode"])
	}
	if body["base_mode"] != "NORMAL" {
		t.Errorf("base_mode = %v, want NORMAL", body["base_mode"])
	}

	status := ts.engine.Status()
	if !status.GrantActive {
		t.Error("grant not active after grant-temporary")
	}
}

func TestHandleGrantTemporary_DefaultDuration(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/policy/grant-temporary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["duration_seconds"] != float64(10) {
		t.Errorf("duration_seconds = %v, want default 10", body["duration_seconds"])
	}
}

func TestHandleGrantTemporary_BoundsEnforced(t *testing.T) {
	ts := newTestServer(t)

	for _, seconds := range []int{0, -5, 301} {
		rec := ts.do(t, http.MethodPost, "/policy/grant-temporary", TemporaryGrantRequest{DurationSeconds: seconds})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("duration %d: status = %d, want 400", seconds, rec.Code)
		}
	}

	if ts.engine.Status().GrantActive {
		t.Error("grant active after rejected requests")
	}
}

func TestHandleExtendTemporary(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPost, "/policy/grant-temporary", TemporaryGrantRequest{DurationSeconds: 20})

	rec := ts.do(t, http.MethodPost, "/policy/extend-temporary", TemporaryExtensionRequest{AdditionalSeconds: 15})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	remaining := body["total_remaining_seconds"].(float64)
	if remaining <= 20 || remaining > 35 {
		t.Errorf("total_remaining_seconds = %v, want about 35", remaining)
	}
}

func TestHandleExtendTemporary_NoActiveGrant(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/policy/extend-temporary", TemporaryExtensionRequest{AdditionalSeconds: 10})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleExtendTemporary_BoundsEnforced(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/policy/grant-temporary", TemporaryGrantRequest{DurationSeconds: 20})

	for _, seconds := range []int{0, 61} {
		rec := ts.do(t, http.MethodPost, "/policy/extend-temporary", TemporaryExtensionRequest{AdditionalSeconds: seconds})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("additional %d: status = %d, want 400", seconds, rec.Code)
		}
	}
}

func TestHandleRevokeTemporary(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/policy/grant-temporary", TemporaryGrantRequest{DurationSeconds: 30})

	rec := ts.do(t, http.MethodPost, "/policy/revoke-temporary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["current_mode"] != "NORMAL" {
		t.Errorf("current_mode = %v, want NORMAL after revoke", body["current_mode"])
	}
	if ts.engine.Status().GrantActive {
		t.Error("grant still active after revoke")
	}
}

func TestHandleRevokeTemporary_Idempotent(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/policy/revoke-temporary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for revoke with no grant", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
}

func TestHandleExecuteTool_Allowed(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/tools/execute", ToolRequest{
		ToolName:  "get_service_status",
		Arguments: map[string]any{"service": "billing-api"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp ToolResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if !resp.Success {
		t.Errorf("Success = false, error = %q", resp.Error)
	}
	if resp.PolicyViolation {
		t.Error("PolicyViolation = true for allowed tool")
	}
}

func TestHandleExecuteTool_PolicyViolationReturns200(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/tools/execute", ToolRequest{
		ToolName:  "restart_service",
		Arguments: map[string]any{"service": "billing-api"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for policy violation", rec.Code)
	}

	var resp ToolResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.Success {
		t.Error("Success = true for blocked tool")
	}
	if !resp.PolicyViolation {
		t.Error("PolicyViolation = false for blocked tool")
	}
	if resp.BlockedReason == "" {
		t.Error("BlockedReason empty for blocked tool")
	}
}

func TestHandleExecuteTool_GloballyBlockedUnderGrant(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/policy/grant-temporary", TemporaryGrantRequest{DurationSeconds: 60})

	rec := ts.do(t, http.MethodPost, "/tools/execute", ToolRequest{
		ToolName:  "delete_database",
		Arguments: map[string]any{"database": "users"},
	})

	var resp ToolResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if !resp.PolicyViolation {
		t.Error("PolicyViolation = false, want global block even under grant")
	}
}

func TestHandleExecuteTool_GrantAllowsEmergencyTool(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/policy/grant-temporary", TemporaryGrantRequest{DurationSeconds: 60})

	rec := ts.do(t, http.MethodPost, "/tools/execute", ToolRequest{
		ToolName:  "restart_service",
		Arguments: map[string]any{"service": "billing-api"},
	})

	var resp ToolResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if !resp.Success {
		t.Errorf("Success = false under grant, error = %q", resp.Error)
	}
}

func TestHandleExecuteTool_ExecutionErrorNotViolation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/tools/execute", ToolRequest{
		ToolName: "get_service_status",
		Arguments: map[string]any{
			"service": "no-such-service",
		},
	})

	var resp ToolResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.Success {
		t.Error("Success = true for failing execution")
	}
	if resp.PolicyViolation {
		t.Error("PolicyViolation = true for execution error")
	}
	if resp.Error == "" {
		t.Error("Error empty for execution error")
	}
}

func TestHandleExecuteTool_MissingToolName(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/tools/execute", ToolRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleToolCatalog(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/tools/catalog", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	catalog := body["tools"].([]any)
	if len(catalog) != 6 {
		t.Errorf("catalog has %d tools, want 6", len(catalog))
	}
	if body["current_mode"] != "NORMAL" {
		t.Errorf("current_mode = %v, want NORMAL", body["current_mode"])
	}
}

func TestHandleInfrastructure(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/infrastructure/simulate-incident?service=billing-api&status=critical", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("simulate-incident status = %d, want 200", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/infrastructure/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	services := body["services"].(map[string]any)
	billing := services["billing-api"].(map[string]any)
	if billing["status"] != "critical" {
		t.Errorf("billing-api status = %v, want critical", billing["status"])
	}
}

func TestHandleSimulateIncident_RequiresService(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/infrastructure/simulate-incident", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/policy/set-mode", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
