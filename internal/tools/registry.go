// Package tools hosts the built-in functions the assistant can call during a
// run (vendor listing, availability, booking, data extraction) plus the
// router that turns assistant tool calls into outputs. Bot-defined CRM action
// templates are dispatched by the router without registration here.
package tools

import (
	"context"
	"sort"
	"sync"
)

// Tool is one callable function exposed to the assistant.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON-schema parameter object for the
	// assistant's function definition.
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *Result
}

// Registry holds the built-in tools by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted for stable output.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
