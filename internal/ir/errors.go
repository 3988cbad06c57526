package ir

import "fmt"

// MissingParameterError reports a required parameter absent from a layer.
type MissingParameterError struct {
	LayerKind string
	Parameter string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("%s: missing required parameter %q", e.LayerKind, e.Parameter)
}

// InvalidParameterError reports a parameter with the wrong type or an
// argument list that cannot be bound to parameters.
type InvalidParameterError struct {
	LayerKind string
	Parameter string
	Reason    string
}

func (e *InvalidParameterError) Error() string {
	if e.Parameter == "" {
		return fmt.Sprintf("%s: %s", e.LayerKind, e.Reason)
	}
	return fmt.Sprintf("%s: parameter %q %s", e.LayerKind, e.Parameter, e.Reason)
}

// UnsupportedLayerError reports a layer kind with no rule in the stage
// that encountered it.
type UnsupportedLayerError struct {
	Kind  string
	Stage string // "shape" or a backend name
}

func (e *UnsupportedLayerError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("unsupported layer type %q", e.Kind)
	}
	return fmt.Sprintf("unsupported layer type %q for %s", e.Kind, e.Stage)
}
