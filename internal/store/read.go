package store

import (
	"context"
	"fmt"
)

const compilationColumns = `source_hash, start, name, source, record_json, record_hash,
	ir_version, compiler_version, run_id, seq`

const artifactColumns = `record_hash, backend, plugins, code, code_hash, run_id, seq`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// ReadCompilation returns the cached compilation for sourceHash.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadCompilation(ctx context.Context, sourceHash string) (Compilation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+compilationColumns+` FROM compilations WHERE source_hash = ?`, sourceHash)
	return scanCompilation(row)
}

// ReadAllCompilations returns every cached compilation.
// Ordered by seq ASC, source_hash ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) for an empty cache.
func (s *Store) ReadAllCompilations(ctx context.Context) ([]Compilation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+compilationColumns+`
		FROM compilations
		ORDER BY seq ASC, source_hash COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query compilations: %w", err)
	}
	defer rows.Close()

	compilations := []Compilation{}
	for rows.Next() {
		c, err := scanCompilation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan compilation: %w", err)
		}
		compilations = append(compilations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compilations: %w", err)
	}
	return compilations, nil
}

// ReadArtifact returns the code generated for recordHash on backend with
// the plugins fingerprinted as plugins. Returns sql.ErrNoRows if not found.
func (s *Store) ReadArtifact(ctx context.Context, recordHash, backend, plugins string) (Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE record_hash = ? AND backend = ? AND plugins = ?`,
		recordHash, backend, plugins)
	return scanArtifact(row)
}

// ReadArtifacts returns all generated code for recordHash, ordered by seq.
func (s *Store) ReadArtifacts(ctx context.Context, recordHash string) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+artifactColumns+`
		FROM artifacts
		WHERE record_hash = ?
		ORDER BY seq ASC, backend COLLATE BINARY ASC, plugins COLLATE BINARY ASC
	`, recordHash)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	artifacts := []Artifact{}
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return artifacts, nil
}

func scanCompilation(row scanner) (Compilation, error) {
	var c Compilation
	if err := row.Scan(
		&c.SourceHash, &c.Start, &c.Name, &c.Source, &c.RecordJSON, &c.RecordHash,
		&c.IRVersion, &c.CompilerVersion, &c.RunID, &c.Seq,
	); err != nil {
		return Compilation{}, err
	}
	return c, nil
}

func scanArtifact(row scanner) (Artifact, error) {
	var a Artifact
	if err := row.Scan(&a.RecordHash, &a.Backend, &a.Plugins, &a.Code, &a.CodeHash, &a.RunID, &a.Seq); err != nil {
		return Artifact{}, err
	}
	return a, nil
}
