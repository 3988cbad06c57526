package ir

// LayerSpec is one canonical layer: a kind name and its parameters.
// Params is nil when the layer was written without arguments.
//
// Wrapper layers use a composite kind such as "TimeDistributed(Dense)"
// with the inner layer's parameters merged with the wrapper's.
type LayerSpec struct {
	Kind   string    `json:"type"`
	Params *ParamMap `json:"params"`
}

// Param returns the named parameter.
func (l LayerSpec) Param(name string) (Value, bool) {
	return l.Params.Get(name)
}

// Value converts the layer to a Map for canonical encoding.
func (l LayerSpec) Value() *Map {
	m := MapOf(P("type", Str(l.Kind)))
	if l.Params == nil {
		m.Set("params", None{})
	} else {
		m.Set("params", l.Params)
	}
	return m
}

// Optimizer names the optimizer and its optional hyperparameters.
type Optimizer struct {
	Name   string    `json:"name"`
	Params *ParamMap `json:"params"`
}

// TrainingConfig holds the entries of a train block.
// BatchSize is an Int, or a List when a search over sizes was declared.
type TrainingConfig struct {
	Epochs    *int64    `json:"epochs,omitempty"`
	BatchSize Value     `json:"batch_size,omitempty"`
	Extra     *ParamMap `json:"extra,omitempty"`
}

// ExecutionConfig holds the execution block.
type ExecutionConfig struct {
	Device string `json:"device"`
}

// Model is the canonical network produced from a network declaration.
//
// Layers always contains the designated output layer. OutputLayer is the
// last Output layer in declaration order, or the synthesized default that
// was appended. OutputShape is derived only from OutputLayer's units.
type Model struct {
	Name        string           `json:"name"`
	InputShape  Shape            `json:"input_shape"`
	Layers      []LayerSpec      `json:"layers"`
	OutputLayer LayerSpec        `json:"output_layer"`
	OutputShape Shape            `json:"output_shape"`
	Loss        string           `json:"loss"`
	Optimizer   Optimizer        `json:"optimizer"`
	Training    *TrainingConfig  `json:"training_config,omitempty"`
	Execution   *ExecutionConfig `json:"execution_config,omitempty"`
}

// Value converts the model to a Map for canonical encoding and hashing.
func (m *Model) Value() *Map {
	layers := make(List, len(m.Layers))
	for i, l := range m.Layers {
		layers[i] = l.Value()
	}
	opt := MapOf(P("name", Str(m.Optimizer.Name)))
	if m.Optimizer.Params == nil {
		opt.Set("params", None{})
	} else {
		opt.Set("params", m.Optimizer.Params)
	}
	out := MapOf(
		P("name", Str(m.Name)),
		P("input_shape", m.InputShape.Value()),
		P("layers", layers),
		P("output_layer", m.OutputLayer.Value()),
		P("output_shape", m.OutputShape.Value()),
		P("loss", Str(m.Loss)),
		P("optimizer", opt),
	)
	if t := m.Training; t != nil {
		tc := NewMap()
		if t.Epochs != nil {
			tc.Set("epochs", Int(*t.Epochs))
		}
		if t.BatchSize != nil {
			tc.Set("batch_size", t.BatchSize)
		}
		if t.Extra != nil {
			tc.Set("extra", t.Extra)
		}
		out.Set("training_config", tc)
	}
	if m.Execution != nil {
		out.Set("execution_config", MapOf(P("device", Str(m.Execution.Device))))
	}
	return out
}

// ResearchReport is the canonical form of a research declaration.
// Metrics is nil when no metrics block was written.
type ResearchReport struct {
	Name       *string   `json:"name"`
	Metrics    *ParamMap `json:"metrics"`
	References []string  `json:"references"`
}

// Metric returns a recorded metric as a float64.
func (r *ResearchReport) Metric(name string) (float64, bool) {
	v, ok := r.Metrics.Get(name)
	if !ok {
		return 0, false
	}
	return AsNumber(v)
}

// Value converts the report to a Map for canonical encoding.
func (r *ResearchReport) Value() *Map {
	out := NewMap()
	if r.Name == nil {
		out.Set("name", None{})
	} else {
		out.Set("name", Str(*r.Name))
	}
	if r.Metrics == nil {
		out.Set("metrics", None{})
	} else {
		out.Set("metrics", r.Metrics)
	}
	refs := make(List, len(r.References))
	for i, ref := range r.References {
		refs[i] = Str(ref)
	}
	out.Set("references", refs)
	return out
}
