// Package plugin holds the layer plugin registry: a table from layer kind
// to specialized construction, shape and emission logic.
//
// The registry is owned by the embedding application and passed explicitly
// into the compiler, the shape propagator and the code generator. The core
// never consults a global registry.
package plugin

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/neuraldsl/internal/ir"
)

// ErrRegistryFrozen is returned by Register after Freeze.
var ErrRegistryFrozen = errors.New("plugin registry is frozen")

// BuildFunc turns the raw argument items of a layer call into a LayerSpec.
type BuildFunc func(kind string, args []ir.Arg) (ir.LayerSpec, error)

// ShapeFunc computes a layer's output shape. The batch axis, if any, has
// already been removed from in and is re-attached by the caller.
type ShapeFunc func(in ir.Shape, layer ir.LayerSpec) (ir.Shape, error)

// EmitFunc renders one layer as a backend expression.
type EmitFunc func(layer ir.LayerSpec) (string, error)

// Plugin describes one specialized layer kind.
type Plugin struct {
	Kind string

	// Slots names positional arguments when Build is nil.
	Slots []string

	// Build overrides the default slot binding.
	Build BuildFunc

	// Shape is the shape rule. A nil Shape leaves the kind unsupported
	// by shape propagation.
	Shape ShapeFunc

	// Emit maps a backend name ("tensorflow", "pytorch") to an emitter.
	Emit map[string]EmitFunc

	// Imports lists extra import lines per backend name.
	Imports map[string][]string
}

// BuildSpec constructs the LayerSpec for a call of this plugin's kind.
func (p *Plugin) BuildSpec(kind string, args []ir.Arg) (ir.LayerSpec, error) {
	if p.Build != nil {
		return p.Build(kind, args)
	}
	params, err := ir.BindArgs(kind, p.Slots, args)
	if err != nil {
		return ir.LayerSpec{}, err
	}
	return ir.LayerSpec{Kind: kind, Params: params}, nil
}

// Emitter returns the emitter for a backend name.
func (p *Plugin) Emitter(backend string) (EmitFunc, bool) {
	fn, ok := p.Emit[backend]
	return fn, ok && fn != nil
}

// Registry maps layer kinds to plugins. Registration happens before first
// use; after Freeze the registry is read-only and safe for concurrent
// lookups.
type Registry struct {
	mu          sync.RWMutex
	plugins     map[string]*Plugin
	frozen      bool
	fingerprint string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]*Plugin)}
}

// Register adds p. Kinds must be unique.
func (r *Registry) Register(p Plugin) error {
	if p.Kind == "" {
		return fmt.Errorf("plugin kind is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("register %q: %w", p.Kind, ErrRegistryFrozen)
	}
	if _, exists := r.plugins[p.Kind]; exists {
		return fmt.Errorf("plugin %q already registered", p.Kind)
	}
	r.plugins[p.Kind] = &p
	return nil
}

// SetFingerprint records an identity for the registered plugins, normally
// a hash of the configuration they were built from. Generated code is only
// cached for registries whose plugins can be identified.
func (r *Registry) SetFingerprint(fp string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("set fingerprint: %w", ErrRegistryFrozen)
	}
	r.fingerprint = fp
	return nil
}

// Fingerprint identifies the registered plugins. A nil or empty registry is
// identified by "". ok is false when plugins are registered but no
// fingerprint was set: their emitters cannot be told apart from others.
func (r *Registry) Fingerprint() (fp string, ok bool) {
	if r == nil {
		return "", true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.plugins) == 0 {
		return "", true
	}
	return r.fingerprint, r.fingerprint != ""
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(p Plugin) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// Freeze makes the registry read-only and returns it.
func (r *Registry) Freeze() *Registry {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
	return r
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Lookup returns the plugin for kind. A nil registry has no plugins.
func (r *Registry) Lookup(kind string) (*Plugin, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[kind]
	return p, ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.plugins))
	for k := range r.plugins {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
