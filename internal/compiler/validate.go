package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/neuraldsl/internal/ir"
)

// Validation codes (E210-E219). These are advisory checks on a model that
// already transformed successfully; the CLI reports them, the compiler
// itself never fails on them.
const (
	ErrUnsupportedIRType = "E210" // unsupported IR type for validation
	ErrEmptyName         = "E211" // model name is empty
	ErrEmptyInput        = "E212" // input has no dimensions or a zero dimension
	ErrInvalidEpochs     = "E213" // epochs must be positive
	ErrInvalidBatchSize  = "E214" // batch_size must be positive
	ErrUnknownDevice     = "E215" // execution device not recognised
	ErrDuplicateOutput   = "E216" // more than one Output layer; only the last is used
	ErrOutputNotLast     = "E217" // designated Output layer is not the final layer
	ErrEmptyLoss         = "E218" // loss is empty
	ErrEmptyResearch     = "E219" // research report has neither metrics nor references
)

// ValidationError represents an advisory validation finding.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

var devicePattern = regexp.MustCompile(`^(auto|cpu|gpu|tpu|mps|cuda)(:\d+)?$`)

// Validate checks a compiled record against semantic rules the grammar
// cannot express. Returns all findings (does not fail fast).
func Validate(v any) []ValidationError {
	switch rec := v.(type) {
	case *ir.Model:
		return validateModel(rec)
	case *ir.ResearchReport:
		return validateResearch(rec)
	case *Result:
		switch {
		case rec.Model != nil:
			return validateModel(rec.Model)
		case rec.Research != nil:
			return validateResearch(rec.Research)
		}
		return nil
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

func validateModel(m *ir.Model) []ValidationError {
	var errs []ValidationError

	// E211: name
	if strings.TrimSpace(m.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "model name is required",
			Code:    ErrEmptyName,
		})
	}

	// E212: input
	if m.InputShape.Rank() == 0 {
		errs = append(errs, ValidationError{
			Field:   "input_shape",
			Message: "input shape has no dimensions",
			Code:    ErrEmptyInput,
		})
	}
	for i, d := range m.InputShape {
		if d == 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("input_shape[%d]", i),
				Message: "dimension is zero",
				Code:    ErrEmptyInput,
			})
		}
	}

	// E218: loss
	if strings.TrimSpace(m.Loss) == "" {
		errs = append(errs, ValidationError{
			Field:   "loss",
			Message: "loss is required",
			Code:    ErrEmptyLoss,
		})
	}

	// E216/E217: output layer placement
	outputs := 0
	for _, l := range m.Layers {
		if l.Kind == "Output" {
			outputs++
		}
	}
	if outputs > 1 {
		errs = append(errs, ValidationError{
			Field:   "layers",
			Message: fmt.Sprintf("%d Output layers declared; only the last one is used", outputs),
			Code:    ErrDuplicateOutput,
		})
	}
	if n := len(m.Layers); n > 0 && m.Layers[n-1].Kind != "Output" {
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("layers[%d]", n-1),
			Message: fmt.Sprintf("layer %q follows the Output layer", m.Layers[n-1].Kind),
			Code:    ErrOutputNotLast,
		})
	}

	if t := m.Training; t != nil {
		// E213: epochs
		if t.Epochs != nil && *t.Epochs <= 0 {
			errs = append(errs, ValidationError{
				Field:   "training_config.epochs",
				Message: fmt.Sprintf("epochs must be positive, got %d", *t.Epochs),
				Code:    ErrInvalidEpochs,
			})
		}
		// E214: batch_size
		if t.BatchSize != nil {
			sizes, _ := ir.AsInts(t.BatchSize)
			if n, ok := ir.AsInt(t.BatchSize); ok {
				sizes = []int64{n}
			}
			for _, n := range sizes {
				if n <= 0 {
					errs = append(errs, ValidationError{
						Field:   "training_config.batch_size",
						Message: fmt.Sprintf("batch_size must be positive, got %d", n),
						Code:    ErrInvalidBatchSize,
					})
					break
				}
			}
		}
	}

	// E215: device
	if e := m.Execution; e != nil && !devicePattern.MatchString(strings.ToLower(e.Device)) {
		errs = append(errs, ValidationError{
			Field:   "execution_config.device",
			Message: fmt.Sprintf("unknown device %q, expected auto, cpu, gpu, tpu, mps or cuda[:N]", e.Device),
			Code:    ErrUnknownDevice,
		})
	}

	return errs
}

func validateResearch(r *ir.ResearchReport) []ValidationError {
	if r.Metrics.Len() == 0 && len(r.References) == 0 {
		return []ValidationError{{
			Field:   "research",
			Message: "report has neither metrics nor references",
			Code:    ErrEmptyResearch,
		}}
	}
	return nil
}
