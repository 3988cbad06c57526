package store

import (
	"context"
	"fmt"

	"github.com/roach88/neuraldsl/internal/ir"
)

// Compilation is one cached compile: the input and its canonical record.
type Compilation struct {
	SourceHash      string
	Start           string
	Name            string
	Source          string
	RecordJSON      string
	RecordHash      string
	IRVersion       string
	CompilerVersion string
	RunID           string
	Seq             int64
}

// Artifact is generated code for one record and backend.
type Artifact struct {
	RecordHash string
	Backend    string
	Plugins    string // plugin registry fingerprint, "" for none
	Code       string
	CodeHash   string
	RunID      string
	Seq        int64
}

// PutCompilation records c under its source hash and returns it with RunID
// and Seq filled in. Writing the same source again refreshes the record
// columns but keeps the original seq.
func (s *Store) PutCompilation(ctx context.Context, c Compilation) (Compilation, error) {
	if c.SourceHash == "" || c.RecordHash == "" {
		return c, fmt.Errorf("write compilation: source and record hashes are required")
	}
	c.RunID = s.runID

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO compilations
		(source_hash, start, name, source, record_json, record_hash, ir_version, compiler_version, run_id, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM compilations))
		ON CONFLICT(source_hash) DO UPDATE SET
			record_json = excluded.record_json,
			record_hash = excluded.record_hash,
			compiler_version = excluded.compiler_version,
			run_id = excluded.run_id
	`,
		c.SourceHash,
		c.Start,
		c.Name,
		c.Source,
		c.RecordJSON,
		c.RecordHash,
		c.IRVersion,
		c.CompilerVersion,
		c.RunID,
	)
	if err != nil {
		return c, fmt.Errorf("write compilation: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT seq FROM compilations WHERE source_hash = ?`, c.SourceHash,
	).Scan(&c.Seq); err != nil {
		return c, fmt.Errorf("write compilation: %w", err)
	}
	return c, nil
}

// PutArtifact stores code generated for recordHash on backend with the
// plugins identified by the fingerprint plugins, replacing any earlier code
// under the same key.
func (s *Store) PutArtifact(ctx context.Context, recordHash, backend, plugins, code string) (Artifact, error) {
	a := Artifact{
		RecordHash: recordHash,
		Backend:    backend,
		Plugins:    plugins,
		Code:       code,
		CodeHash:   ir.CodeHash(backend, code),
		RunID:      s.runID,
	}
	if recordHash == "" || backend == "" {
		return a, fmt.Errorf("write artifact: record hash and backend are required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (record_hash, backend, plugins, code, code_hash, run_id, seq)
		VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM artifacts))
		ON CONFLICT(record_hash, backend, plugins) DO UPDATE SET
			code = excluded.code,
			code_hash = excluded.code_hash,
			run_id = excluded.run_id
	`, a.RecordHash, a.Backend, a.Plugins, a.Code, a.CodeHash, a.RunID)
	if err != nil {
		return a, fmt.Errorf("write artifact: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT seq FROM artifacts WHERE record_hash = ? AND backend = ? AND plugins = ?`, recordHash, backend, plugins,
	).Scan(&a.Seq); err != nil {
		return a, fmt.Errorf("write artifact: %w", err)
	}
	return a, nil
}
