package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// MaxDocumentSize is the maximum policy document size in bytes. Policy
// documents are small hand-written files; anything larger is almost
// certainly a mistake.
const MaxDocumentSize = 1 << 20 // 1 MiB

// Load reads, parses, and validates a policy document from the given
// path. JSON and YAML are both accepted; the format is chosen by file
// extension, defaulting to JSON.
//
// Load returns a *LoadError when the file is missing, unreadable, or
// unparsable, and a *ValidationError when the parsed document violates a
// structural invariant. The returned Document is immutable.
func Load(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Path: path, Message: "file not found", Cause: err}
		}
		if os.IsPermission(err) {
			return nil, &LoadError{Path: path, Message: "permission denied", Cause: err}
		}
		return nil, &LoadError{Path: path, Message: "failed to access file", Cause: err}
	}

	if !info.Mode().IsRegular() {
		return nil, &LoadError{Path: path, Message: "not a regular file"}
	}

	if info.Size() > MaxDocumentSize {
		return nil, &LoadError{
			Path:    path,
			Message: fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", info.Size(), MaxDocumentSize),
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "failed to read file", Cause: err}
	}

	if !utf8.Valid(raw) {
		return nil, &LoadError{Path: path, Message: "file contains invalid UTF-8"}
	}

	doc, err := parseDocument(raw, filepath.Ext(path), path)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.Path = path
			return nil, le
		}
		return nil, err
	}
	return doc, nil
}

// Parse parses, validates, and normalizes raw document bytes. ext selects
// the format (".yaml" or ".yml" for YAML, anything else for JSON). The
// returned Document is immutable and enforces the same invariants as one
// produced by Load; loading from a file should still go through Load,
// which adds the file-level checks.
func Parse(raw []byte, ext string) (*Document, error) {
	return parseDocument(raw, ext, "")
}

// parseDocument unmarshals, validates, and normalizes. path is used only
// to name the document in validation errors when it has no name of its
// own.
func parseDocument(raw []byte, ext, path string) (*Document, error) {
	var doc Document
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
		}
	default:
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, &LoadError{Message: "failed to parse JSON", Cause: err}
		}
	}

	if err := doc.validate(path); err != nil {
		return nil, err
	}

	doc.normalize(raw)
	return &doc, nil
}

// validate checks the structural invariants of a parsed document.
func (d *Document) validate(path string) error {
	var problems []string

	if len(d.Modes) == 0 {
		problems = append(problems, "document defines no modes")
	}

	// Within a mode the allow and block lists must be disjoint; a tool on
	// both would make the pipeline outcome depend on evaluation order.
	for _, name := range sortedModeNames(d.Modes) {
		mode := d.Modes[name]
		if mode == nil {
			problems = append(problems, fmt.Sprintf("mode %q has no definition", name))
			continue
		}
		if overlap := intersect(mode.AllowedTools, mode.BlockedTools); len(overlap) > 0 {
			problems = append(problems, fmt.Sprintf(
				"mode %q lists tools as both allowed and blocked: %s",
				name, strings.Join(overlap, ", ")))
		}
	}

	if ev := d.GlobalRules.ElevatedMode; ev != "" {
		if _, ok := d.Modes[ev]; !ok {
			problems = append(problems, fmt.Sprintf("elevated mode %q is not a defined mode", ev))
		}
	}

	if len(problems) == 0 {
		return nil
	}

	name := d.Name
	if name == "" {
		name = path
	}
	return &ValidationError{Document: name, Problems: problems}
}

func sortedModeNames(modes map[string]*Mode) []string {
	names := make([]string, 0, len(modes))
	for name := range modes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func intersect(a, b []string) []string {
	set := toSet(a)
	var both []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			both = append(both, item)
		}
	}
	sort.Strings(both)
	return both
}
