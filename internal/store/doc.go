// Package store provides a SQLite-backed cache of compilations and the
// code generated from them.
//
// Two tables make up the cache:
//   - compilations: one row per compile input, keyed by ir.SourceHash and
//     holding the canonical JSON of the resulting record
//   - artifacts: generated code keyed by (record hash, backend)
//
// Artifacts are keyed by the record hash rather than the source hash, so two
// sources that lower to the same model share generated code.
//
// # Ordering
//
// Rows carry a seq INTEGER assigned at insert time. Listing queries order by
// seq ASC and then by key COLLATE BINARY, never by timestamps, so results
// are identical across runs.
//
// # Database Configuration
//
// Open creates the cache file and its directory on first use and brings
// older files up to date through the user_version migrations.
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
