package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/neuraldsl/internal/store"
)

func TestCompileText(t *testing.T) {
	out, err := execute(t, "compile", "testdata/mnist.neural")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled model MNISTClassifier: 6 layer(s), input (28, 28, 1)")
	assert.Contains(t, out, "  hash: ")
	assert.Contains(t, out, `"name":"MNISTClassifier"`)
}

func TestCompileJSON(t *testing.T) {
	out, err := execute(t, "compile", "testdata/mnist.neural", "--format", "json")
	require.NoError(t, err)

	var result CompilationResult
	resp := decode(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "network", result.Start)
	assert.Len(t, result.Hash, 64)
	assert.Empty(t, result.Findings)

	var record map[string]any
	require.NoError(t, json.Unmarshal(result.Record, &record))
	assert.Equal(t, "MNISTClassifier", record["name"])
}

func TestCompileResearch(t *testing.T) {
	out, err := execute(t, "compile", "testdata/study.rnr")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Compiled research Study: 2 metric(s), 1 reference(s)")
}

func TestCompileWritesOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mnist.json")

	out, err := execute(t, "compile", "testdata/mnist.neural", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote canonical record to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
	assert.NotContains(t, out, string(data))
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		code string
		exit int
	}{
		{"syntax", "testdata/broken.neural", ErrCodeSyntax, ExitFailure},
		{"unsupported extension", "testdata/notes.txt", ErrCodeUnsupportedExt, ExitCommandError},
		{"missing file", "testdata/missing.neural", ErrCodeNotFound, ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "compile", tt.file, "--format", "json")
			require.Error(t, err)
			assert.Equal(t, tt.exit, GetExitCode(err))

			resp := decode(t, out, nil)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestCompileSyntaxErrorText(t *testing.T) {
	out, err := execute(t, "compile", "testdata/broken.neural")
	require.Error(t, err)
	assert.Contains(t, out, "Error [E201]: PARSE_ERROR: parse: testdata/broken.neural:")
}

func TestCompileWithCache(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "cache.db")

	for i := 0; i < 2; i++ {
		_, err := execute(t, "compile", "testdata/mnist.neural", "--cache", cache)
		require.NoError(t, err)
	}
	_, err := execute(t, "compile", "testdata/study.rnr", "--cache", cache)
	require.NoError(t, err)

	st, err := store.Open(cache)
	require.NoError(t, err)
	defer st.Close()

	all, err := st.ReadAllCompilations(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "MNISTClassifier", all[0].Name)
	assert.Equal(t, "Study", all[1].Name)
}

func TestCompileCacheFromConfig(t *testing.T) {
	dir := t.TempDir()
	cache := filepath.Join(dir, "cache.db")
	cfg := filepath.Join(dir, "neuraldsl.cue")
	require.NoError(t, os.WriteFile(cfg, []byte(`cache: "`+cache+`"`), 0o644))

	_, err := execute(t, "compile", "testdata/mnist.neural", "--config", cfg)
	require.NoError(t, err)

	_, err = os.Stat(cache)
	assert.NoError(t, err)
}
