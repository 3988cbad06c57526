package harness

import (
	"github.com/roach88/neuraldsl/internal/engine"
	"github.com/roach88/neuraldsl/internal/ir"
)

// Result is what running one scenario produced.
type Result struct {
	Pass   bool                `json:"pass"`
	Trace  []engine.StageEvent `json:"trace"`
	Errors []string            `json:"errors,omitempty"` // assertion failures

	Outcome    *engine.Outcome `json:"-"`
	CompileErr error           `json:"-"` // the error that stopped the pipeline
}

// NewResult creates a passing result with no trace.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []engine.StageEvent{},
		Errors: []string{},
	}
}

// AddError records an assertion failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Model is the compiled network, or nil.
func (r *Result) Model() *ir.Model {
	if r.Outcome == nil || r.Outcome.Result == nil {
		return nil
	}
	return r.Outcome.Result.Model
}

// Research is the compiled research report, or nil.
func (r *Result) Research() *ir.ResearchReport {
	if r.Outcome == nil || r.Outcome.Result == nil {
		return nil
	}
	return r.Outcome.Result.Research
}

// Shapes renders the shape history. ok is false when propagation did not
// run.
func (r *Result) Shapes() (shapes []string, ok bool) {
	if r.Outcome == nil || r.Outcome.Shapes == nil {
		return nil, false
	}
	shapes = make([]string, len(r.Outcome.Shapes))
	for i, s := range r.Outcome.Shapes {
		shapes[i] = s.String()
	}
	return shapes, true
}

// FindingCodes lists validation finding codes in report order.
func (r *Result) FindingCodes() []string {
	codes := []string{}
	if r.Outcome == nil {
		return codes
	}
	for _, f := range r.Outcome.Findings {
		codes = append(codes, f.Code)
	}
	return codes
}

// Code is the program generated for backend, by canonical backend name.
func (r *Result) Code(backend string) (string, bool) {
	if r.Outcome == nil {
		return "", false
	}
	code, ok := r.Outcome.Code[backend]
	return code, ok
}
