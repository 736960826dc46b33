// Package server provides the guardian HTTP API: policy status and
// mode management, temporary grant lifecycle, policy-gated tool
// execution, the tool catalog, audit queries, and the simulated
// infrastructure endpoints.
//
// Every tool execution request passes through the policy engine before
// the tool runs. Policy violations are not transport errors: the
// execute endpoint returns 200 with policy_violation set so callers can
// distinguish "denied by policy" from "failed to execute".
package server
