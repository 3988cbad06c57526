package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/neuraldsl/internal/ir"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testModel(name string, units int64) *ir.Model {
	out := ir.LayerSpec{Kind: "Output", Params: ir.MapOf(ir.P("units", ir.Int(units)), ir.P("activation", ir.Str("softmax")))}
	return &ir.Model{
		Name:        name,
		InputShape:  ir.ShapeOf(4),
		Layers:      []ir.LayerSpec{{Kind: "Dense", Params: ir.MapOf(ir.P("units", ir.Int(8)))}, out},
		OutputLayer: out,
		OutputShape: ir.ShapeOf(units),
		Loss:        "mse",
		Optimizer:   ir.Optimizer{Name: "Adam"},
	}
}

// createTestCompilation builds a compilation row for a small model.
func createTestCompilation(t *testing.T, source string, m *ir.Model) Compilation {
	t.Helper()
	c, err := NewCompilation("network", source, m)
	require.NoError(t, err)
	return c
}

// verifyPragma reports whether PRAGMA name reads back as expected.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("read pragma %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
