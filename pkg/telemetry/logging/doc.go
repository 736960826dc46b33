// Package logging provides structured logging for guardian on top of
// log/slog, with configurable level and output format and a redactor
// that masks sensitive tool-argument values before they reach logs or
// audit records.
package logging
