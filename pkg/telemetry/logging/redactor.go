package logging

import "strings"

// RedactedValue replaces sensitive values in redacted output.
const RedactedValue = "[REDACTED]"

// Redactor masks sensitive values in tool-argument maps by key name.
// Tool arguments may carry credentials (database passwords, API tokens)
// that must never reach logs or audit records.
type Redactor struct {
	sensitive []string
}

// defaultSensitiveKeys are matched as substrings of lower-cased keys.
var defaultSensitiveKeys = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"api_key",
	"apikey",
	"credential",
	"private_key",
}

// NewRedactor creates a redactor with the default sensitive key set plus
// any extra keys. Matching is case-insensitive on key substrings.
func NewRedactor(extraKeys ...string) *Redactor {
	sensitive := make([]string, 0, len(defaultSensitiveKeys)+len(extraKeys))
	sensitive = append(sensitive, defaultSensitiveKeys...)
	for _, key := range extraKeys {
		sensitive = append(sensitive, strings.ToLower(key))
	}
	return &Redactor{sensitive: sensitive}
}

// RedactMap returns a copy of args with sensitive values replaced.
// Nested maps are redacted recursively. The input map is not modified;
// a nil input returns nil.
func (r *Redactor) RedactMap(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}

	out := make(map[string]any, len(args))
	for key, value := range args {
		if r.isSensitive(key) {
			out[key] = RedactedValue
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			out[key] = r.RedactMap(nested)
			continue
		}
		out[key] = value
	}
	return out
}

// isSensitive reports whether the key names a sensitive value.
func (r *Redactor) isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range r.sensitive {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
