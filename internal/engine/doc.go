// Package engine runs the compile pipeline over one source text.
//
// Stages run in a fixed order:
//
//  1. parse: grammar.Parse with the requested start symbol
//  2. transform: compiler.Transform into a Model, LayerSpec or ResearchReport
//  3. validate: compiler.Validate (advisory, never fails the compile)
//  4. cache: store.PutCompilation, only with a store attached
//  5. shape: shape.PropagateModel, networks only, when enabled
//  6. codegen:<backend>: codegen.Generate for each requested backend
//
// Every stage appends a StageEvent to the outcome. Events carry a logical
// step number, never a timestamp, so the trace of a compile is identical
// across runs and can be compared against golden files.
//
// # Caching
//
// With a store attached, each compile is recorded under its source hash and
// generated code is looked up by (record hash, backend) before running the
// generator. Parsing and transforming always run: they are cheap and produce
// the record hash the cache is keyed by.
//
// The engine is single-threaded per Compile call. A single Engine may be
// shared by goroutines when its store is nil or safe for concurrent use.
package engine
