package tools

import "fmt"

// UnknownToolError indicates a request for a tool the registry does not
// know.
type UnknownToolError struct {
	Tool string
}

// Error implements the error interface.
func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Tool)
}

// InvalidArgumentsError indicates a tool was called with missing or
// malformed arguments.
type InvalidArgumentsError struct {
	Tool    string
	Message string
}

// Error implements the error interface.
func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Message)
}

// NewInvalidArgumentsError creates a new InvalidArgumentsError.
func NewInvalidArgumentsError(tool, format string, args ...any) *InvalidArgumentsError {
	return &InvalidArgumentsError{
		Tool:    tool,
		Message: fmt.Sprintf(format, args...),
	}
}
