package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ExecutorFunc runs one tool call. Arguments arrive as the raw JSON the
// agent produced; the result is a JSON document returned to the agent
// verbatim. Failures inside the tool are encoded into the result, not
// returned as errors, so the agent can phrase them to the user.
type ExecutorFunc func(ctx context.Context, args json.RawMessage) (string, error)

// Definition describes a tool to the agent runner.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Registry stores tool executors keyed by tool name. There is no package
// default; each service instance wires its own.
type Registry struct {
	mu        sync.RWMutex
	defs      []Definition
	executors map[string]ExecutorFunc
}

func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]ExecutorFunc)}
}

// Register adds a tool definition with its executor.
func (r *Registry) Register(def Definition, exec ExecutorFunc) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if exec == nil {
		return fmt.Errorf("executor is required for %s", def.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[def.Name]; exists {
		return fmt.Errorf("executor already registered for %s", def.Name)
	}
	r.defs = append(r.defs, def)
	r.executors[def.Name] = exec
	return nil
}

// MustRegister panics on registration conflicts; wiring errors are
// programming mistakes, not runtime conditions.
func (r *Registry) MustRegister(def Definition, exec ExecutorFunc) {
	if err := r.Register(def, exec); err != nil {
		panic(err)
	}
}

// Definitions lists registered tools in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Execute runs the named tool. An unknown name is an error result, not a
// hard failure, because the agent may hallucinate tool names.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) string {
	r.mu.RLock()
	exec := r.executors[name]
	r.mu.RUnlock()
	if exec == nil {
		return Failure(fmt.Errorf("no tool registered with name %q", name))
	}
	result, err := exec(ctx, args)
	if err != nil {
		return Failure(err)
	}
	return result
}

// Failure encodes an error as the standard {"success":false} result.
func Failure(err error) string {
	out, _ := json.Marshal(map[string]any{"success": false, "error": err.Error()})
	return string(out)
}
