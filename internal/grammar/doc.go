// Package grammar defines the neuraldsl surface syntax and parses source
// text into a typed syntax tree.
//
// One lexer is shared by three start symbols: Network (a full network
// declaration), Layer (a single layer call) and Research (a research
// report). Keyword-like words such as "filters", "loss" or "epochs" are
// ordinary identifiers; each production matches them only where it expects
// them, so they are never reserved globally.
//
// A Grammar is built once and is read-only afterwards. Parse may be called
// from any number of goroutines.
package grammar
