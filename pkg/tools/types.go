package tools

import "context"

// Category classifies a tool by the blast radius of running it.
type Category string

const (
	// CategoryReadOnly tools observe state without changing it.
	CategoryReadOnly Category = "read-only"

	// CategoryActive tools change running infrastructure.
	CategoryActive Category = "active"

	// CategoryDestructive tools destroy data or resources.
	CategoryDestructive Category = "destructive"
)

// Descriptor describes a tool for the catalog.
type Descriptor struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
}

// Handler executes a tool with the given arguments and returns its
// result. Handlers validate their own arguments and return
// *InvalidArgumentsError on bad input.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Tool pairs a descriptor with its handler.
type Tool struct {
	Descriptor Descriptor
	Handler    Handler
}
