package ir

// Typed views over the parameters of the core layer kinds. Each decoder
// reports a MissingParameterError for an absent required field and an
// InvalidParameterError for a field of the wrong type.

// DenseParams is the typed view of Dense and Output layers.
type DenseParams struct {
	Units      int64
	Activation string // empty when not given
}

// Conv2DParams is the typed view of a Conv2D layer.
type Conv2DParams struct {
	Filters    int64
	KernelH    int64
	KernelW    int64
	Activation string
	Padding    string
}

// Pool2DParams is the typed view of a 2D pooling layer.
type Pool2DParams struct {
	PoolH   int64
	PoolW   int64
	Strides Value // nil when not given
	Padding string
}

// DropoutParams is the typed view of a Dropout layer.
type DropoutParams struct {
	Rate float64
	Set  bool
}

// DecodeDense reads units and activation.
func DecodeDense(l LayerSpec) (DenseParams, error) {
	var p DenseParams
	units, err := requireInt(l, "units")
	if err != nil {
		return p, err
	}
	p.Units = units
	if p.Activation, err = optionalString(l, "activation"); err != nil {
		return p, err
	}
	return p, nil
}

// DecodeConv2D reads filters, kernel_size and the optional activation and
// padding.
func DecodeConv2D(l LayerSpec) (Conv2DParams, error) {
	var p Conv2DParams
	filters, err := requireInt(l, "filters")
	if err != nil {
		return p, err
	}
	p.Filters = filters
	if p.KernelH, p.KernelW, err = requirePair(l, "kernel_size"); err != nil {
		return p, err
	}
	if p.Activation, err = optionalString(l, "activation"); err != nil {
		return p, err
	}
	if p.Padding, err = optionalString(l, "padding"); err != nil {
		return p, err
	}
	return p, nil
}

// DecodePool2D reads pool_size and the optional strides and padding.
func DecodePool2D(l LayerSpec) (Pool2DParams, error) {
	var p Pool2DParams
	var err error
	if p.PoolH, p.PoolW, err = requirePair(l, "pool_size"); err != nil {
		return p, err
	}
	p.Strides, _ = l.Param("strides")
	if p.Padding, err = optionalString(l, "padding"); err != nil {
		return p, err
	}
	return p, nil
}

// DecodeDropout reads the optional rate.
func DecodeDropout(l LayerSpec) (DropoutParams, error) {
	v, ok := l.Param("rate")
	if !ok {
		return DropoutParams{}, nil
	}
	rate, ok := AsNumber(v)
	if !ok {
		return DropoutParams{}, invalidType(l.Kind, "rate", "a number", v)
	}
	return DropoutParams{Rate: rate, Set: true}, nil
}

func requireInt(l LayerSpec, name string) (int64, error) {
	v, ok := l.Param(name)
	if !ok {
		return 0, &MissingParameterError{LayerKind: l.Kind, Parameter: name}
	}
	n, ok := AsInt(v)
	if !ok {
		return 0, invalidType(l.Kind, name, "an integer", v)
	}
	return n, nil
}

func requirePair(l LayerSpec, name string) (int64, int64, error) {
	v, ok := l.Param(name)
	if !ok {
		return 0, 0, &MissingParameterError{LayerKind: l.Kind, Parameter: name}
	}
	a, b, ok := AsPair(v)
	if !ok {
		return 0, 0, invalidType(l.Kind, name, "an integer or a pair of integers", v)
	}
	return a, b, nil
}

func optionalString(l LayerSpec, name string) (string, error) {
	v, ok := l.Param(name)
	if !ok {
		return "", nil
	}
	s, ok := AsString(v)
	if !ok {
		return "", invalidType(l.Kind, name, "a string", v)
	}
	return s, nil
}

func invalidType(kind, name, want string, got Value) error {
	return &InvalidParameterError{
		LayerKind: kind,
		Parameter: name,
		Reason:    "must be " + want + ", got " + got.String(),
	}
}
