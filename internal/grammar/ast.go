package grammar

import "github.com/alecthomas/participle/v2/lexer"

// Tree is the result of one Parse call. Exactly one of Network, Layer and
// Research is set, matching Start.
type Tree struct {
	Start    StartSymbol
	Network  *NetworkDecl
	Layer    *LayerCall
	Research *ResearchDecl
}

// NetworkDecl is `network Name { ... }`.
type NetworkDecl struct {
	Pos lexer.Position

	Name      string          `"network" @Ident "{"`
	Input     *InputDecl      `"input" ":" @@`
	Layers    []*LayerCall    `"layers" ":" ( @@ ","? )*`
	Loss      string          `"loss" ":" @String`
	Optimizer *OptimizerDecl  `"optimizer" ":" @@`
	Train     *TrainBlock     `@@?`
	Execution *ExecutionBlock `@@? "}"`
}

// InputDecl is the parenthesized input shape. A trailing comma is allowed
// so that one-dimensional inputs can be written as (10,).
type InputDecl struct {
	Pos lexer.Position

	Dims []*Dim `"(" @@ ( "," @@ )* ","? ")"`
}

// Dim is one input dimension: an integer or None.
type Dim struct {
	Pos lexer.Position

	Size *int64 `  @Int`
	None bool   `| @"None"`
}

// LayerCall is `Kind(args...)`. The kind is any identifier.
type LayerCall struct {
	Pos lexer.Position

	Kind string `@Ident "("`
	Args []*Arg `( @@ ( "," @@ )* ","? )? ")"`
}

// Arg is a positional value or a `name=value` pair.
type Arg struct {
	Pos lexer.Position

	Name  *string `( @Ident "=" )?`
	Value *Value  `@@`
}

// Value is a literal. Exactly one field is populated.
type Value struct {
	Pos lexer.Position

	Float  *float64   `  @Float`
	Int    *int64     `| @Int`
	String *string    `| @String`
	Bool   *Boolean   `| @( "true" | "false" )`
	None   bool       `| @"None"`
	Tuple  *TupleLit  `| @@`
	List   *ListLit   `| @@`
	Map    *MapLit    `| @@`
	Call   *CallValue `| @@`
}

// Boolean captures the literals true and false.
type Boolean bool

// Capture implements participle.Capture.
func (b *Boolean) Capture(values []string) error {
	*b = values[0] == "true"
	return nil
}

// TupleLit is `(v, ...)`. Trailing records the comma after the last item,
// which is what makes `(3,)` a tuple and `(3)` a parenthesized 3.
type TupleLit struct {
	Pos lexer.Position

	Items    []*Value `"(" @@ ( "," @@ )*`
	Trailing bool     `@","? ")"`
}

// ListLit is `[v, ...]`.
type ListLit struct {
	Pos lexer.Position

	Items []*Value `"[" ( @@ ( "," @@ )* ","? )? "]"`
}

// MapLit is `{key: v, ...}`.
type MapLit struct {
	Pos lexer.Position

	Entries []*MapEntry `"{" ( @@ ( "," @@ )* ","? )? "}"`
}

// MapEntry is one `key: value` pair. Keys may be identifiers or strings.
type MapEntry struct {
	Key   string `@( Ident | String ) ":"`
	Value *Value `@@`
}

// CallValue is a bare identifier, optionally followed by an argument list.
// It covers nested layer calls such as TimeDistributed(Dense(64)) and
// helper calls such as range(1e-4, 1e-2).
type CallValue struct {
	Pos lexer.Position

	Name   string `@Ident`
	Called bool   `( @"("`
	Args   []*Arg `  ( @@ ( "," @@ )* ","? )? ")" )?`
}

// OptimizerDecl is `optimizer: Name` or `optimizer: Name(args...)`.
// The name may be written as an identifier or a string.
type OptimizerDecl struct {
	Pos lexer.Position

	Name   string `@( Ident | String )`
	Called bool   `( @"("`
	Args   []*Arg `  ( @@ ( "," @@ )* ","? )? ")" )?`
}

// TrainBlock is `train { key: value ... }`.
type TrainBlock struct {
	Pos lexer.Position

	Entries []*TrainEntry `"train" "{" @@* "}"`
}

// TrainEntry is one `key: value` line of a train block.
type TrainEntry struct {
	Pos lexer.Position

	Key   string `@Ident ":"`
	Value *Value `@@ ","?`
}

// ExecutionBlock is `execution { device: "..." }`.
type ExecutionBlock struct {
	Pos lexer.Position

	Device string `"execution" "{" "device" ":" @String "}"`
}

// ResearchDecl is `research [Name] { ... }`.
type ResearchDecl struct {
	Pos lexer.Position

	Name     *string            `"research" @Ident? "{"`
	Sections []*ResearchSection `@@* "}"`
}

// ResearchSection is a metrics or a references block.
type ResearchSection struct {
	Metrics    *MetricsBlock    `  @@`
	References *ReferencesBlock `| @@`
}

// MetricsBlock is `metrics { name: number ... }`.
type MetricsBlock struct {
	Pos lexer.Position

	Metrics []*Metric `"metrics" "{" @@* "}"`
}

// Metric is one recognised metric. Values must be numbers.
type Metric struct {
	Pos lexer.Position

	Name  string  `@( "accuracy" | "loss" | "precision" | "recall" ) ":"`
	Value *Number `@@ ","?`
}

// Number is an integer or float literal.
type Number struct {
	Float *float64 `  @Float`
	Int   *int64   `| @Int`
}

// ReferencesBlock is `references { paper: "..." ... }`.
type ReferencesBlock struct {
	Pos lexer.Position

	Papers []string `"references" "{" ( "paper" ":" @String ","? )+ "}"`
}
