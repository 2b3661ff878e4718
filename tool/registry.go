package tool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tidwall/match"
)

// Registry is the process-wide catalog of named tools an agent may call. The
// task supervisor's Agent Registry whitelists a subset of these names per
// agent type; the workflow/runtime layer resolves names through a Registry
// at dispatch time.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool under its own Name().
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get looks up a tool by exact name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns every registered tool name, sorted for stable iteration.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the ToolDefinition-shaped {name, description, parameters}
// triples for the given tool names, in the order requested, skipping any name
// that isn't registered. Callers pass an agent's whitelist here before handing
// it to the model as available functions.
func (r *Registry) Definitions(names []string) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(names))
	for _, n := range names {
		t, ok := r.tools[n]
		if !ok {
			continue
		}
		defs = append(defs, Definition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// Definition is the provider-agnostic shape of a tool's declaration, mirrored
// into model.FunctionDefinition at the MCP boundary.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// Whitelist reports whether name is permitted by any of the glob-style
// patterns in allowed (exact names or tidwall/match patterns such as
// "web_*"). An empty allowed list permits nothing.
func Whitelist(allowed []string, name string) bool {
	for _, pattern := range allowed {
		if match.Match(name, pattern) {
			return true
		}
	}
	return false
}

// Invoke resolves name in the registry, whitelist-checks it, validates
// arguments and calls it, normalizing "not registered" and "not whitelisted"
// into *ToolError so callers never need a separate error path.
func (r *Registry) Invoke(ctx *CallContext, name string, allowed []string, args map[string]interface{}) (interface{}, error) {
	if !Whitelist(allowed, name) {
		return nil, &ToolError{Tool: name, Code: "NOT_WHITELISTED", Message: fmt.Sprintf("tool %q is not whitelisted for this agent", name)}
	}
	t, ok := r.Get(name)
	if !ok {
		return nil, &ToolError{Tool: name, Code: "NOT_FOUND", Message: fmt.Sprintf("tool %q is not registered", name)}
	}
	return t.Call(ctx, args)
}
