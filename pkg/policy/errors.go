package policy

import (
	"fmt"
	"strings"
)

// LoadError indicates a policy document could not be read or parsed.
// Load errors are fatal at startup.
type LoadError struct {
	// Path is the document path that failed to load.
	Path string

	// Message describes what went wrong.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error returns the error message.
func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load policy document %q: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load policy document %q: %s", e.Path, e.Message)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// ValidationError indicates a policy document parsed successfully but
// violates a structural invariant (empty mode set, overlapping allow and
// block lists, unknown elevated mode).
type ValidationError struct {
	// Document is the policy name, or the file path when the document
	// carries no name.
	Document string

	// Problems lists every violated invariant.
	Problems []string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid policy document %q: %s", e.Document, strings.Join(e.Problems, "; "))
}
