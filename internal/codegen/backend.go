// Package codegen renders a canonical Model as Python source for one of two
// backends: a sequential model built layer by layer, or an imperative
// module class with an explicit forward pass.
//
// Generation is all-or-nothing. Any error returns an empty string.
package codegen

import (
	"fmt"
	"strings"

	"github.com/roach88/neuraldsl/internal/ir"
	"github.com/roach88/neuraldsl/internal/plugin"
)

// Backend selects the target code style.
type Backend int

const (
	Sequential Backend = iota
	Imperative
)

// Name returns the backend name plugins register emitters under.
func (b Backend) Name() string {
	switch b {
	case Sequential:
		return "tensorflow"
	case Imperative:
		return "pytorch"
	default:
		return fmt.Sprintf("backend(%d)", int(b))
	}
}

func (b Backend) String() string { return b.Name() }

var backendAliases = map[string]Backend{
	"tensorflow": Sequential,
	"keras":      Sequential,
	"sequential": Sequential,
	"tf":         Sequential,
	"pytorch":    Imperative,
	"torch":      Imperative,
	"imperative": Imperative,
}

// UnsupportedBackendError reports a backend name or value with no generator.
type UnsupportedBackendError struct {
	Name string
}

func (e *UnsupportedBackendError) Error() string {
	return fmt.Sprintf("unsupported backend %q (valid: tensorflow, pytorch)", e.Name)
}

// ParseBackend resolves a backend name. Matching ignores case.
func ParseBackend(name string) (Backend, error) {
	b, ok := backendAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, &UnsupportedBackendError{Name: name}
	}
	return b, nil
}

// DetectBackend picks a backend from framework hints in layer parameters:
// a parameter equal to "torch" or "pytorch" selects Imperative, one equal to
// "keras" or "tensorflow" selects Sequential. The first hint wins and the
// default is Sequential.
func DetectBackend(m *ir.Model) Backend {
	for _, l := range m.Layers {
		for _, k := range l.Params.Keys() {
			v, _ := l.Params.Get(k)
			s, ok := ir.AsString(v)
			if !ok {
				continue
			}
			switch strings.ToLower(s) {
			case "torch", "pytorch":
				return Imperative
			case "keras", "tensorflow":
				return Sequential
			}
		}
	}
	return Sequential
}

// Generate renders m for backend b. Registered plugin emitters take
// precedence over the built-in translation of their kinds.
func Generate(m *ir.Model, b Backend, reg *plugin.Registry) (string, error) {
	switch b {
	case Sequential:
		return generateSequential(m, reg)
	case Imperative:
		return generateImperative(m, reg)
	default:
		return "", &UnsupportedBackendError{Name: b.Name()}
	}
}

// GenerateNamed is Generate with the backend given by name.
func GenerateNamed(m *ir.Model, backend string, reg *plugin.Registry) (string, error) {
	b, err := ParseBackend(backend)
	if err != nil {
		return "", err
	}
	return Generate(m, b, reg)
}

// pluginEmit runs the plugin emitter for l, if one is registered.
// ok is false when the built-in translation should be used.
func pluginEmit(reg *plugin.Registry, l ir.LayerSpec, b Backend) (expr string, ok bool, err error) {
	p, found := reg.Lookup(l.Kind)
	if !found {
		return "", false, nil
	}
	emit, found := p.Emitter(b.Name())
	if !found {
		return "", false, nil
	}
	expr, err = emit(l)
	if err != nil {
		return "", true, fmt.Errorf("%s: emit %s: %w", l.Kind, b.Name(), err)
	}
	return expr, true, nil
}

// pluginImports collects the extra import lines of every plugin used by m.
func pluginImports(reg *plugin.Registry, m *ir.Model, b Backend) []string {
	var out []string
	seen := make(map[string]bool)
	for _, l := range m.Layers {
		p, ok := reg.Lookup(l.Kind)
		if !ok {
			continue
		}
		for _, line := range p.Imports[b.Name()] {
			if !seen[line] {
				seen[line] = true
				out = append(out, line)
			}
		}
	}
	return out
}

// splitWrapper splits "Wrapper(Inner)" into its parts.
func splitWrapper(kind string) (wrapper, inner string, ok bool) {
	open := strings.IndexByte(kind, '(')
	if open <= 0 || !strings.HasSuffix(kind, ")") {
		return "", "", false
	}
	return kind[:open], kind[open+1 : len(kind)-1], true
}

// trainingDefaults resolves epochs and batch size with the generator
// defaults of 10 and 32. A batch size search list uses its first entry.
func trainingDefaults(tc *ir.TrainingConfig) (epochs, batch int64) {
	epochs, batch = 10, 32
	if tc.Epochs != nil {
		epochs = *tc.Epochs
	}
	switch v := tc.BatchSize.(type) {
	case ir.Int:
		batch = int64(v)
	case ir.List:
		if len(v) > 0 {
			if n, ok := ir.AsInt(v[0]); ok {
				batch = n
			}
		}
	}
	return epochs, batch
}
