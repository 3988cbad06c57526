package ir

import "fmt"

// Arg is one argument item of a layer call. Name is empty for positional
// arguments.
type Arg struct {
	Name  string
	Value Value
}

// Positional reports whether the argument was written without a name.
func (a Arg) Positional() bool { return a.Name == "" }

// BindArgs merges positional and named arguments into a ParamMap.
//
// Positional arguments fill slots in order. Named arguments are applied
// afterwards so they always win over a positional value for the same key,
// whatever order they were written in. Duplicate names keep the last value.
// More positional arguments than slots is an InvalidParameterError.
// An empty argument list yields a nil ParamMap.
func BindArgs(kind string, slots []string, args []Arg) (*ParamMap, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := NewMap()
	pos := 0
	for _, a := range args {
		if !a.Positional() {
			continue
		}
		if pos >= len(slots) {
			return nil, &InvalidParameterError{
				LayerKind: kind,
				Reason:    fmt.Sprintf("takes at most %d positional argument(s), got %d", len(slots), countPositional(args)),
			}
		}
		params.Set(slots[pos], a.Value)
		pos++
	}
	for _, a := range args {
		if a.Positional() {
			continue
		}
		params.Set(a.Name, a.Value)
	}
	return params, nil
}

func countPositional(args []Arg) int {
	n := 0
	for _, a := range args {
		if a.Positional() {
			n++
		}
	}
	return n
}
