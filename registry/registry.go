// Package registry holds the catalogue of user-invocable function tools.
//
// A Registry is an ordered, id-keyed collection of tool definitions. It is
// constructed once by the application and passed explicitly to the HTTP
// handlers, the mention dispatcher and the turn orchestrator.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// Executor runs a tool with decoded input. Domain failures that the model
// should see are returned as output; errors are reserved for failures of
// the execution itself.
type Executor func(ctx context.Context, input map[string]any) (any, error)

// Definition describes a user-invocable function tool.
type Definition struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Category    string
	Parameters  SchemaSource
	Execute     Executor
	// Parallel marks tools that may run concurrently within one step.
	Parallel bool
}

// Serialized is the transport form of a Definition.
type Serialized struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Icon        string         `json:"icon,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// Registry is an ordered catalogue of tool definitions, safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	defs     map[string]Definition
	observer Observer
}

// Option configures a Registry.
type Option func(*Registry)

// WithObserver reports every execution to o.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// New returns an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{defs: map[string]Definition{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register inserts def, replacing any definition with the same id. A
// replaced definition keeps its original position.
func (r *Registry) Register(def Definition) error {
	if def.ID == "" {
		return ErrEmptyID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[def.ID]; !ok {
		r.order = append(r.order, def.ID)
	}
	r.defs[def.ID] = def
	return nil
}

// Unregister removes the definition with the given id, if any.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[id]; !ok {
		return
	}
	delete(r.defs, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the definition with the given id.
func (r *Registry) Get(id string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	return def, ok
}

// List returns every definition in registration order.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.defs[id])
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Search returns the definitions whose id, name or description contains
// query, case-insensitively, in registration order. An empty query
// matches everything.
func (r *Registry) Search(query string) []Definition {
	all := r.List()
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return all
	}
	out := all[:0:0]
	for _, def := range all {
		if strings.Contains(strings.ToLower(def.ID), q) ||
			strings.Contains(strings.ToLower(def.Name), q) ||
			strings.Contains(strings.ToLower(def.Description), q) {
			out = append(out, def)
		}
	}
	return out
}

// SerializeAll returns the transport form of every definition. A schema
// that cannot be projected degrades to an empty object schema.
func (r *Registry) SerializeAll() []Serialized {
	return SerializeEach(r.List())
}

// SerializeEach serializes defs in order.
func SerializeEach(defs []Definition) []Serialized {
	out := make([]Serialized, 0, len(defs))
	for _, def := range defs {
		out = append(out, Serialize(def))
	}
	return out
}

// Serialize returns the transport form of def.
func Serialize(def Definition) Serialized {
	return Serialized{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
		Icon:        def.Icon,
		Parameters:  parametersOf(def),
	}
}

func parametersOf(def Definition) map[string]any {
	s, err := narrow(def)
	if err != nil {
		return EmptyObjectSchema()
	}
	return s.JSONSchema()
}

func narrow(def Definition) (Schema, error) {
	if def.Parameters == nil {
		return Schema{}, nil
	}
	return def.Parameters.NarrowSchema()
}

// Execute runs the tool with the given id. Unknown ids yield
// ErrToolNotFound; invalid input and executor failures yield an
// *ExecutionError.
func (r *Registry) Execute(ctx context.Context, id string, input map[string]any) (out any, err error) {
	def, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, id)
	}

	start := time.Now()
	defer func() {
		if r.observer != nil {
			r.observer.ObserveInvoke(ctx, InvokeObservation{
				ToolID:   id,
				Duration: time.Since(start),
				Err:      err,
			})
		}
	}()

	if def.Execute == nil {
		return nil, &ExecutionError{ToolID: id, Err: ErrNoExecutor}
	}
	if input == nil {
		input = map[string]any{}
	}
	if err := validateInput(def, input); err != nil {
		return nil, &ExecutionError{ToolID: id, Err: err}
	}
	return runExecutor(ctx, def, input)
}

func runExecutor(ctx context.Context, def Definition, input map[string]any) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, &ExecutionError{ToolID: def.ID, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	out, err = def.Execute(ctx, input)
	if err != nil {
		return nil, &ExecutionError{ToolID: def.ID, Err: err}
	}
	return out, nil
}

// validateInput checks input against the projected JSON schema. Tools whose
// schema cannot be narrowed are not validated.
func validateInput(def Definition, input map[string]any) error {
	s, err := narrow(def)
	if err != nil || len(s.Fields) == 0 {
		return nil
	}
	doc, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(s.JSONSchema()), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if result.Valid() {
		return nil
	}
	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(details, "; "))
}
