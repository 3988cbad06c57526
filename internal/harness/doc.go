// Package harness runs compile scenarios: a DSL source, the stages to run
// and assertions about what the pipeline produced.
//
// # Scenario Format
//
//	name: mnist_shapes
//	description: "Shape history of the classifier"
//	start: network            # network (default), layer or research
//	source_file: ../sources/mnist.neural   # or an inline source: |
//	backends: [tensorflow, pytorch]
//	skip_shapes: false
//	assertions:
//	  - type: shapes
//	    shapes: ["(26, 26, 32)", "(13, 13, 32)"]
//	  - type: code_contains
//	    backend: pytorch
//	    text: "nn.LazyConv2d(32"
//
// # Assertion Types
//
//   - layers: canonical layer kinds in order
//   - shapes: the shape after every layer
//   - output_shape: the model's declared output shape
//   - param: one layer parameter, compared as a Python literal
//   - code_contains, code_count, code_order: text in generated code
//   - error: the compile fails at a stage, optionally with a message
//   - metric: a research report metric
//   - findings: validation finding codes, empty when omitted
//
// # Golden Files
//
// Snapshot renders the stage trace, shape history and findings as
// canonical JSON. Traces carry step numbers rather than timestamps, so a
// snapshot is identical across runs. RunSuite compares each scenario with
// golden/<name>.golden next to it when that file exists.
package harness
