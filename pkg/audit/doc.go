// Package audit records an append-only trail of policy activity: tool
// validation decisions, mode transitions, and grant lifecycle events.
// Records are written asynchronously so recording never blocks the
// request path, and are persisted through a pluggable Storage backend
// (in-memory or SQLite).
package audit
