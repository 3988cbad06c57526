// Package config loads neuraldsl.cue and turns its plugin section into a
// layer plugin registry.
//
// A configuration file looks like:
//
//	backend: "pytorch"
//	cache:   ".neuraldsl/cache.db"
//	plugins: QuantumLayer: {
//		slots:      ["qubits"]
//		shape:      "passthrough"
//		tensorflow: "QuantumKeras({params})"
//		pytorch:    "QuantumTorch({params})"
//	}
//
// Emitter templates expand {kind}, {params}, rendered as Python keyword
// arguments, and {<name>} for any parameter name, rendered as that
// parameter's Python literal.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/neuraldsl/internal/codegen"
	"github.com/roach88/neuraldsl/internal/ir"
	"github.com/roach88/neuraldsl/internal/plugin"
	"github.com/roach88/neuraldsl/internal/shape"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "neuraldsl.cue"

//go:embed schema.cue
var schemaSource string

// Shape rules a configured plugin may name.
const (
	ShapePassthrough = "passthrough"
	ShapeUnits       = "units"
	ShapeFlatten     = "flatten"
)

// PluginConfig is one entry of the plugins section.
type PluginConfig struct {
	Kind    string
	Slots   []string
	Shape   string            // "" leaves the kind without a shape rule
	Emit    map[string]string // backend name -> template
	Imports map[string][]string
}

// Config is the parsed configuration.
type Config struct {
	Backend string
	Cache   string
	Plugins []PluginConfig
}

// Default returns the configuration used when no file exists. It carries
// the quantum and dynamic layer kinds, which have no built-in translation.
func Default() *Config {
	return &Config{
		Backend: "tensorflow",
		Plugins: []PluginConfig{
			{
				Kind:  "QuantumLayer",
				Slots: []string{"qubits", "depth"},
				Shape: ShapePassthrough,
				Emit: map[string]string{
					"tensorflow": "tfq.layers.PQC({params})",
					"pytorch":    "QuantumLayer({params})",
				},
				Imports: map[string][]string{
					"tensorflow": {"import tensorflow_quantum as tfq"},
				},
			},
			{
				Kind:  "DynamicLayer",
				Slots: []string{"units"},
				Shape: ShapeUnits,
				Emit: map[string]string{
					"tensorflow": "layers.Dense({params})",
					"pytorch":    "nn.LazyLinear({units})",
				},
			},
		},
	}
}

// Error locates a configuration problem in the CUE source.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads the file at path. A missing file yields Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse compiles src and checks it against the configuration schema.
// Fields left out keep their Default() values, except plugins: a file
// with a plugins section replaces the default plugins entirely.
func Parse(filename string, src []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("config schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	// Fields are read from v itself so that optional schema fields never
	// show up as present.
	checked := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := checked.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	cfg := Default()
	if s, ok, err := optionalString(v, "backend"); err != nil {
		return nil, err
	} else if ok {
		cfg.Backend = s
	}
	if s, ok, err := optionalString(v, "cache"); err != nil {
		return nil, err
	} else if ok {
		cfg.Cache = s
	}

	pluginsVal := v.LookupPath(cue.ParsePath("plugins"))
	if pluginsVal.Exists() {
		plugins, err := parsePlugins(pluginsVal)
		if err != nil {
			return nil, err
		}
		cfg.Plugins = plugins
	}
	return cfg, nil
}

func parsePlugins(v cue.Value) ([]PluginConfig, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	plugins := []PluginConfig{}
	for iter.Next() {
		pv := iter.Value()
		pc := PluginConfig{
			Kind:    iter.Label(),
			Emit:    make(map[string]string),
			Imports: make(map[string][]string),
		}

		if pc.Slots, err = stringList(pv, "slots"); err != nil {
			return nil, err
		}
		if s, ok, err := optionalString(pv, "shape"); err != nil {
			return nil, err
		} else if ok {
			pc.Shape = s
		}
		for _, backend := range []string{"tensorflow", "pytorch"} {
			tmpl, ok, err := optionalString(pv, backend)
			if err != nil {
				return nil, err
			}
			if ok {
				pc.Emit[backend] = tmpl
			}
			imports, err := stringList(pv, "imports."+backend)
			if err != nil {
				return nil, err
			}
			if len(imports) > 0 {
				pc.Imports[backend] = imports
			}
		}
		plugins = append(plugins, pc)
	}
	return plugins, nil
}

func optionalString(v cue.Value, path string) (string, bool, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return "", false, nil
	}
	s, err := f.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

func stringList(v cue.Value, path string) ([]string, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return nil, nil
	}
	iter, err := f.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &Error{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}

// Registry builds a frozen plugin registry from the configured plugins,
// fingerprinted with PluginsHash.
func (c *Config) Registry() (*plugin.Registry, error) {
	reg := plugin.NewRegistry()
	for _, pc := range c.Plugins {
		p, err := pc.plugin()
		if err != nil {
			return nil, err
		}
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	fp, err := c.PluginsHash()
	if err != nil {
		return nil, err
	}
	if err := reg.SetFingerprint(fp); err != nil {
		return nil, err
	}
	return reg.Freeze(), nil
}

// PluginsHash identifies the plugins section. Any change to a slot list,
// shape rule, template or import changes it.
func (c *Config) PluginsHash() (string, error) {
	plugins := ir.NewMap()
	for _, pc := range c.Plugins {
		emit := ir.NewMap()
		for backend, tmpl := range pc.Emit {
			emit.Set(backend, ir.Str(tmpl))
		}
		imports := ir.NewMap()
		for backend, lines := range pc.Imports {
			imports.Set(backend, strList(lines))
		}
		plugins.Set(pc.Kind, ir.MapOf(
			ir.P("slots", strList(pc.Slots)),
			ir.P("shape", ir.Str(pc.Shape)),
			ir.P("emit", emit),
			ir.P("imports", imports),
		))
	}
	return ir.ConfigHash(plugins)
}

func strList(ss []string) ir.List {
	l := make(ir.List, len(ss))
	for i, s := range ss {
		l[i] = ir.Str(s)
	}
	return l
}

func (pc PluginConfig) plugin() (plugin.Plugin, error) {
	p := plugin.Plugin{
		Kind:    pc.Kind,
		Slots:   pc.Slots,
		Emit:    make(map[string]plugin.EmitFunc, len(pc.Emit)),
		Imports: pc.Imports,
	}

	switch pc.Shape {
	case "":
	case ShapePassthrough:
		p.Shape = func(in ir.Shape, _ ir.LayerSpec) (ir.Shape, error) { return in, nil }
	case ShapeUnits:
		p.Shape = shape.Units
	case ShapeFlatten:
		p.Shape = func(in ir.Shape, _ ir.LayerSpec) (ir.Shape, error) {
			return shape.Step(in, ir.LayerSpec{Kind: "Flatten"}, nil)
		}
	default:
		return p, fmt.Errorf("plugin %s: unknown shape rule %q", pc.Kind, pc.Shape)
	}

	for backend, tmpl := range pc.Emit {
		p.Emit[backend] = templateEmitter(tmpl)
	}
	return p, nil
}

// templateEmitter expands {kind}, {params} and {<param>} in tmpl.
func templateEmitter(tmpl string) plugin.EmitFunc {
	return func(l ir.LayerSpec) (string, error) {
		pairs := []string{"{kind}", l.Kind, "{params}", codegen.Kwargs(l.Params)}
		if l.Params != nil {
			for _, k := range l.Params.Keys() {
				v, _ := l.Params.Get(k)
				pairs = append(pairs, "{"+k+"}", codegen.Literal(v))
			}
		}
		return strings.NewReplacer(pairs...).Replace(tmpl), nil
	}
}
