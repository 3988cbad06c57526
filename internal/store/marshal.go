package store

import (
	"fmt"

	"github.com/roach88/neuraldsl/internal/ir"
)

// NewCompilation builds the cache row for one compile. record is the
// value the compiler produced for start: *ir.Model, *ir.ResearchReport or
// ir.LayerSpec.
func NewCompilation(start, source string, record any) (Compilation, error) {
	c := Compilation{
		SourceHash:      ir.SourceHash(start, source),
		Start:           start,
		Source:          source,
		IRVersion:       ir.IRVersion,
		CompilerVersion: ir.CompilerVersion,
	}

	var err error
	switch r := record.(type) {
	case *ir.Model:
		c.Name = r.Name
		c.RecordHash, err = ir.ModelHash(r)
	case *ir.ResearchReport:
		if r.Name != nil {
			c.Name = *r.Name
		}
		c.RecordHash, err = ir.ReportHash(r)
	case ir.LayerSpec:
		c.Name = r.Kind
		c.RecordHash, err = ir.LayerHash(r)
	default:
		return c, fmt.Errorf("new compilation: unsupported record %T", record)
	}
	if err != nil {
		return c, fmt.Errorf("new compilation: %w", err)
	}

	c.RecordJSON, err = marshalRecord(record)
	if err != nil {
		return c, fmt.Errorf("new compilation: %w", err)
	}
	return c, nil
}

// marshalRecord converts a record to canonical JSON TEXT for storage.
func marshalRecord(record any) (string, error) {
	data, err := ir.MarshalCanonical(record)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return string(data), nil
}
