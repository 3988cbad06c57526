package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/neuraldsl/internal/codegen"
	"github.com/roach88/neuraldsl/internal/grammar"
)

// Scenario defines a conformance test scenario: one source compiled through
// the pipeline, followed by assertions on what each stage produced.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the start symbol: network (default), layer or research.
	Start string `yaml:"start,omitempty"`

	// Source is the DSL text. Exactly one of Source and SourceFile is set.
	Source string `yaml:"source,omitempty"`

	// SourceFile is a path to the DSL text, relative to the scenario file.
	SourceFile string `yaml:"source_file,omitempty"`

	// Backends lists the code generators to run, by name or alias.
	Backends []string `yaml:"backends,omitempty"`

	// SkipShapes disables shape propagation for networks whose layers have
	// no shape rule.
	SkipShapes bool `yaml:"skip_shapes,omitempty"`

	// Assertions validate the compile outcome.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates one aspect of the outcome.
type Assertion struct {
	// Type selects the check; see the Assert* constants.
	Type string `yaml:"type"`

	// Kinds is the expected layer kind sequence (layers).
	Kinds []string `yaml:"kinds,omitempty"`

	// Shapes are the expected per-layer output shapes (shapes).
	Shapes []string `yaml:"shapes,omitempty"`

	// Shape is the expected output shape (output_shape).
	Shape string `yaml:"shape,omitempty"`

	// Layer, Param and Literal select a parameter and its expected Python
	// literal rendering (param).
	Layer   int    `yaml:"layer,omitempty"`
	Param   string `yaml:"param,omitempty"`
	Literal string `yaml:"literal,omitempty"`

	// Backend selects generated code (code_contains, code_order, code_count).
	Backend string `yaml:"backend,omitempty"`

	// Text is the expected substring (code_contains, code_count).
	Text string `yaml:"text,omitempty"`

	// Texts are substrings expected in order (code_order).
	Texts []string `yaml:"texts,omitempty"`

	// Count is the expected number of occurrences (code_count).
	Count int `yaml:"count,omitempty"`

	// Stage is the stage expected to fail (error).
	Stage string `yaml:"stage,omitempty"`

	// Contains is a substring of the expected error message (error).
	Contains string `yaml:"contains,omitempty"`

	// Metric and Value select a research metric (metric).
	Metric string  `yaml:"metric,omitempty"`
	Value  float64 `yaml:"value,omitempty"`

	// Codes are the expected validation finding codes in order (findings).
	Codes []string `yaml:"codes,omitempty"`
}

// Assertion type constants.
const (
	AssertLayers       = "layers"
	AssertShapes       = "shapes"
	AssertOutputShape  = "output_shape"
	AssertParam        = "param"
	AssertCodeContains = "code_contains"
	AssertCodeOrder    = "code_order"
	AssertCodeCount    = "code_count"
	AssertError        = "error"
	AssertMetric       = "metric"
	AssertFindings     = "findings"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A source_file reference is read relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.SourceFile != "" {
		if scenario.Source != "" {
			return nil, fmt.Errorf("invalid scenario: source and source_file are mutually exclusive")
		}
		srcPath := scenario.SourceFile
		if !filepath.IsAbs(srcPath) {
			srcPath = filepath.Join(filepath.Dir(path), srcPath)
		}
		src, err := os.ReadFile(srcPath)
		if err != nil {
			return nil, fmt.Errorf("invalid scenario: source file: %w", err)
		}
		scenario.Source = string(src)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// StartSymbol returns the parsed start symbol. Empty means network.
func (s *Scenario) StartSymbol() (grammar.StartSymbol, error) {
	if s.Start == "" {
		return grammar.Network, nil
	}
	return grammar.ParseStartSymbol(s.Start)
}

// ParsedBackends resolves Backends to code generators.
func (s *Scenario) ParsedBackends() ([]codegen.Backend, error) {
	out := make([]codegen.Backend, 0, len(s.Backends))
	for _, name := range s.Backends {
		b, err := codegen.ParseBackend(name)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Source == "" {
		return fmt.Errorf("source or source_file is required")
	}

	if _, err := s.StartSymbol(); err != nil {
		return err
	}

	if _, err := s.ParsedBackends(); err != nil {
		return err
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertLayers:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for layers", index)
		}
	case AssertShapes:
		if len(a.Shapes) == 0 {
			return fmt.Errorf("assertions[%d]: shapes list is required for shapes", index)
		}
	case AssertOutputShape:
		if a.Shape == "" {
			return fmt.Errorf("assertions[%d]: shape is required for output_shape", index)
		}
	case AssertParam:
		if a.Param == "" || a.Literal == "" {
			return fmt.Errorf("assertions[%d]: param and literal are required for param", index)
		}
		if a.Layer < 0 {
			return fmt.Errorf("assertions[%d]: layer must be non-negative for param", index)
		}
	case AssertCodeContains:
		if a.Backend == "" || a.Text == "" {
			return fmt.Errorf("assertions[%d]: backend and text are required for code_contains", index)
		}
	case AssertCodeOrder:
		if a.Backend == "" || len(a.Texts) == 0 {
			return fmt.Errorf("assertions[%d]: backend and texts are required for code_order", index)
		}
	case AssertCodeCount:
		if a.Backend == "" || a.Text == "" {
			return fmt.Errorf("assertions[%d]: backend and text are required for code_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for code_count", index)
		}
	case AssertError:
		if a.Stage == "" {
			return fmt.Errorf("assertions[%d]: stage is required for error", index)
		}
	case AssertMetric:
		if a.Metric == "" {
			return fmt.Errorf("assertions[%d]: metric is required for metric", index)
		}
	case AssertFindings:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
