package engine

import (
	"errors"
	"fmt"
)

// StageErrorCode categorizes pipeline failures.
type StageErrorCode string

const (
	// ErrCodeParse indicates the source did not match the grammar.
	ErrCodeParse StageErrorCode = "PARSE_ERROR"

	// ErrCodeTransform indicates the tree could not be lowered.
	ErrCodeTransform StageErrorCode = "TRANSFORM_ERROR"

	// ErrCodeShape indicates shape propagation failed.
	ErrCodeShape StageErrorCode = "SHAPE_ERROR"

	// ErrCodeCodegen indicates a backend could not generate code.
	ErrCodeCodegen StageErrorCode = "CODEGEN_ERROR"

	// ErrCodeCache indicates the artifact cache failed.
	ErrCodeCache StageErrorCode = "CACHE_ERROR"
)

// StageError wraps the error that stopped the pipeline with the stage it
// came from.
type StageError struct {
	Code  StageErrorCode
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsStageError reports whether err is a StageError with the given code.
// Uses errors.As to handle wrapped errors.
func IsStageError(err error, code StageErrorCode) bool {
	var se *StageError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
