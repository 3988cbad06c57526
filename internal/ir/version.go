package ir

// Version constants for IR schema and compiler.
const (
	// IRVersion is the canonical model schema version.
	IRVersion = "1"

	// CompilerVersion is the neuraldsl compiler version.
	CompilerVersion = "0.1.0"
)
