package store

import (
	"context"
	"fmt"
)

// RecompileFunc compiles source for start again and returns the record
// hash and canonical JSON of the result.
type RecompileFunc func(ctx context.Context, start, source string) (recordHash, recordJSON string, err error)

// ReplayResult reports how many cached compilations were checked and which
// of them no longer reproduce.
type ReplayResult struct {
	Checked    int
	Mismatches []Mismatch
}

// Mismatch is a cached compilation whose recompiled record differs from the
// stored one, or which no longer compiles (Err set).
type Mismatch struct {
	SourceHash string
	Name       string
	Stored     string
	Got        string
	Err        error
}

// Deterministic reports whether every checked compilation reproduced.
func (r ReplayResult) Deterministic() bool {
	return len(r.Mismatches) == 0
}

// Replay recompiles every cached source in seq order and compares the
// result with the stored record. Store errors abort the replay; compile
// errors are reported as mismatches.
func (s *Store) Replay(ctx context.Context, recompile RecompileFunc) (ReplayResult, error) {
	var result ReplayResult

	compilations, err := s.ReadAllCompilations(ctx)
	if err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}

	for _, c := range compilations {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++

		hash, recordJSON, err := recompile(ctx, c.Start, c.Source)
		switch {
		case err != nil:
			result.Mismatches = append(result.Mismatches, Mismatch{
				SourceHash: c.SourceHash, Name: c.Name, Stored: c.RecordHash, Err: err,
			})
		case hash != c.RecordHash || recordJSON != c.RecordJSON:
			result.Mismatches = append(result.Mismatches, Mismatch{
				SourceHash: c.SourceHash, Name: c.Name, Stored: c.RecordHash, Got: hash,
			})
		}
	}
	return result, nil
}

// GetLastSeq returns the highest seq across both tables. Returns 0 for an
// empty cache.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(
			(SELECT COALESCE(MAX(seq), 0) FROM compilations),
			(SELECT COALESCE(MAX(seq), 0) FROM artifacts)
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}
