package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/neuraldsl/internal/codegen"
	"github.com/roach88/neuraldsl/internal/engine"
	"github.com/roach88/neuraldsl/internal/grammar"
	"github.com/roach88/neuraldsl/internal/ir"
	"github.com/roach88/neuraldsl/internal/shape"
)

// Source is a DSL file read from disk together with the start symbol its
// extension selects.
type Source struct {
	Path  string
	Start grammar.StartSymbol
	Text  string
}

// LoadError represents an error that occurred before compilation started.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Extensions and the start symbol each selects.
var extensions = map[string]grammar.StartSymbol{
	".neural": grammar.Network,
	".nr":     grammar.Network,
	".rnr":    grammar.Research,
}

// Classify returns the start symbol for path's extension.
func Classify(path string) (grammar.StartSymbol, error) {
	ext := strings.ToLower(filepath.Ext(path))
	start, ok := extensions[ext]
	if !ok {
		return 0, &LoadError{
			Code:    ErrCodeUnsupportedExt,
			Message: fmt.Sprintf("unsupported file type %q: expected .neural, .nr or .rnr", ext),
		}
	}
	return start, nil
}

// LoadSource classifies and reads path.
func LoadSource(path string) (*Source, error) {
	start, err := Classify(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}
	return &Source{Path: path, Start: start, Text: string(data)}, nil
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric        = "E001" // Generic/unknown error
	ErrCodeUnsupportedExt = "E003" // File extension not recognised
	ErrCodeNotFound       = "E005" // Path not found
	ErrCodeWriteFailed    = "E007" // File write error

	// Compile errors
	ErrCodeSyntax             = "E201" // Source does not match the grammar
	ErrCodeMissingParameter   = "E202" // Required layer parameter absent
	ErrCodeInvalidParameter   = "E203" // Layer parameter has the wrong type or value
	ErrCodeInvalidShape       = "E204" // Layer cannot accept its input shape
	ErrCodeUnsupportedLayer   = "E205" // Kind has no shape rule or backend translation
	ErrCodeUnsupportedBackend = "E206" // Unknown backend name
	ErrCodeStore              = "E207" // Artifact cache failure
)

// ErrorCode maps an error from loading or compiling to its CLI code.
func ErrorCode(err error) string {
	var (
		loadErr    *LoadError
		syntaxErr  *grammar.SyntaxError
		missingErr *ir.MissingParameterError
		invalidErr *ir.InvalidParameterError
		shapeErr   *shape.InvalidShapeError
		layerErr   *ir.UnsupportedLayerError
		backendErr *codegen.UnsupportedBackendError
	)
	switch {
	case errors.As(err, &loadErr):
		return loadErr.Code
	case errors.As(err, &syntaxErr):
		return ErrCodeSyntax
	case errors.As(err, &missingErr):
		return ErrCodeMissingParameter
	case errors.As(err, &invalidErr):
		return ErrCodeInvalidParameter
	case errors.As(err, &shapeErr):
		return ErrCodeInvalidShape
	case errors.As(err, &layerErr):
		return ErrCodeUnsupportedLayer
	case errors.As(err, &backendErr):
		return ErrCodeUnsupportedBackend
	case engine.IsStageError(err, engine.ErrCodeCache):
		return ErrCodeStore
	default:
		return ErrCodeGeneric
	}
}
