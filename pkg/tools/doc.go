// Package tools provides the tool registry and the simulated cloud
// infrastructure tools the guardian gates. Every tool carries a
// descriptor (name, description, category) for the catalog endpoint;
// execution is routed by name through the Registry after the policy
// engine has allowed the request.
package tools
