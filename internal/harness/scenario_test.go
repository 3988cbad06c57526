package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/neuraldsl/internal/codegen"
	"github.com/roach88/neuraldsl/internal/grammar"
)

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/mnist_codegen.yaml")
	require.NoError(t, err)

	assert.Equal(t, "mnist_codegen", s.Name)
	assert.Contains(t, s.Source, "network MNISTClassifier", "source_file is read relative to the scenario")

	start, err := s.StartSymbol()
	require.NoError(t, err)
	assert.Equal(t, grammar.Network, start)

	backends, err := s.ParsedBackends()
	require.NoError(t, err)
	assert.Equal(t, []codegen.Backend{codegen.Sequential, codegen.Imperative}, backends)
	assert.Len(t, s.Assertions, 5)
}

func TestLoadScenarioRejectsUnknownFields(t *testing.T) {
	_, err := LoadScenario("testdata/invalid/typo.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/nope.yaml")
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestLoadScenarioValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"no name", "description: d\nsource: x\nassertions: [{type: findings}]\n", "name is required"},
		{"no description", "name: n\nsource: x\nassertions: [{type: findings}]\n", "description is required"},
		{"no source", "name: n\ndescription: d\nassertions: [{type: findings}]\n", "source or source_file is required"},
		{"both sources", "name: n\ndescription: d\nsource: x\nsource_file: y\nassertions: [{type: findings}]\n", "mutually exclusive"},
		{"missing source file", "name: n\ndescription: d\nsource_file: missing.neural\nassertions: [{type: findings}]\n", "source file"},
		{"bad start", "name: n\ndescription: d\nstart: model\nsource: x\nassertions: [{type: findings}]\n", "unknown start symbol"},
		{"bad backend", "name: n\ndescription: d\nsource: x\nbackends: [onnx]\nassertions: [{type: findings}]\n", "unsupported backend"},
		{"no assertions", "name: n\ndescription: d\nsource: x\n", "assertions list is required"},
		{"no type", "name: n\ndescription: d\nsource: x\nassertions: [{kinds: [Dense]}]\n", "type is required"},
		{"unknown type", "name: n\ndescription: d\nsource: x\nassertions: [{type: trace_order}]\n", "unknown assertion type"},
		{"layers without kinds", "name: n\ndescription: d\nsource: x\nassertions: [{type: layers}]\n", "kinds list is required"},
		{"param without literal", "name: n\ndescription: d\nsource: x\nassertions: [{type: param, param: units}]\n", "param and literal are required"},
		{"code without backend", "name: n\ndescription: d\nsource: x\nassertions: [{type: code_contains, text: x}]\n", "backend and text are required"},
		{"negative count", "name: n\ndescription: d\nsource: x\nassertions: [{type: code_count, backend: tf, text: x, count: -1}]\n", "count must be non-negative"},
		{"error without stage", "name: n\ndescription: d\nsource: x\nassertions: [{type: error}]\n", "stage is required"},
		{"metric without name", "name: n\ndescription: d\nsource: x\nassertions: [{type: metric, value: 1}]\n", "metric is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
