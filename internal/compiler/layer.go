package compiler

import (
	"fmt"

	"github.com/roach88/neuraldsl/internal/grammar"
	"github.com/roach88/neuraldsl/internal/ir"
	"github.com/roach88/neuraldsl/internal/plugin"
)

// customArgsKey holds the positional arguments of a kind with no slot
// table entry.
const customArgsKey = "args"

// TransformLayer lowers one layer call. Resolution order:
//  1. a registered plugin for the kind builds the spec from the raw items
//  2. wrapper kinds merge the wrapped layer's params with their own
//  3. built-in kinds bind positional args to their slots and type-check
//  4. any other identifier is a custom layer carried through as written
func TransformLayer(call *grammar.LayerCall, reg *plugin.Registry) (ir.LayerSpec, error) {
	return transformCall(call.Kind, call.Args, reg)
}

func transformCall(kind string, args []*grammar.Arg, reg *plugin.Registry) (ir.LayerSpec, error) {
	if p, ok := reg.Lookup(kind); ok {
		items, err := convertArgs(args)
		if err != nil {
			return ir.LayerSpec{}, err
		}
		return p.BuildSpec(kind, items)
	}

	if wrapperKinds[kind] {
		return transformWrapper(kind, args, reg)
	}

	items, err := convertArgs(args)
	if err != nil {
		return ir.LayerSpec{}, err
	}

	slots, builtin := slotTable[kind]
	if !builtin {
		return customLayer(kind, items), nil
	}

	params, err := ir.BindArgs(kind, slots, items)
	if err != nil {
		return ir.LayerSpec{}, err
	}
	if err := checkFields(kind, params); err != nil {
		return ir.LayerSpec{}, err
	}
	return ir.LayerSpec{Kind: kind, Params: params}, nil
}

// transformWrapper handles TimeDistributed(Inner(...), ...) and friends.
// The reported kind is "Wrapper(Inner)" and the wrapper's own named
// params win over the inner layer's on conflict.
func transformWrapper(kind string, args []*grammar.Arg, reg *plugin.Registry) (ir.LayerSpec, error) {
	if len(args) == 0 || args[0].Name != nil || args[0].Value.Call == nil || !args[0].Value.Call.Called {
		return ir.LayerSpec{}, &ir.InvalidParameterError{
			LayerKind: kind,
			Parameter: "layer",
			Reason:    "first argument must be a layer call",
		}
	}
	innerCall := args[0].Value.Call
	inner, err := transformCall(innerCall.Name, innerCall.Args, reg)
	if err != nil {
		return ir.LayerSpec{}, fmt.Errorf("%s: %w", kind, err)
	}

	items, err := convertArgs(args[1:])
	if err != nil {
		return ir.LayerSpec{}, err
	}
	own, err := ir.BindArgs(kind, nil, items)
	if err != nil {
		return ir.LayerSpec{}, err
	}
	if err := checkFields(kind, own); err != nil {
		return ir.LayerSpec{}, err
	}

	params := inner.Params.Clone()
	if own != nil {
		if params == nil {
			params = ir.NewMap()
		}
		params.Merge(own)
	}
	return ir.LayerSpec{Kind: kind + "(" + inner.Kind + ")", Params: params}, nil
}

// customLayer keeps named arguments as written and collects positional
// ones under "args", since an unknown kind has no slot order.
func customLayer(kind string, items []ir.Arg) ir.LayerSpec {
	if len(items) == 0 {
		return ir.LayerSpec{Kind: kind}
	}
	params := ir.NewMap()
	var positional ir.List
	for _, a := range items {
		if a.Positional() {
			positional = append(positional, a.Value)
			continue
		}
		params.Set(a.Name, a.Value)
	}
	if len(positional) > 0 {
		params.Set(customArgsKey, positional)
	}
	return ir.LayerSpec{Kind: kind, Params: params}
}

func convertArgs(args []*grammar.Arg) ([]ir.Arg, error) {
	items := make([]ir.Arg, 0, len(args))
	for _, a := range args {
		v, err := convertValue(a.Value)
		if err != nil {
			return nil, err
		}
		item := ir.Arg{Value: v}
		if a.Name != nil {
			item.Name = *a.Name
		}
		items = append(items, item)
	}
	return items, nil
}

// convertValue turns a literal node into a Value. A bare identifier becomes
// a Str; a nested call becomes a Map with its name under "type". A single
// parenthesized value without a trailing comma is just that value.
func convertValue(v *grammar.Value) (ir.Value, error) {
	switch {
	case v.Float != nil:
		return ir.Float(*v.Float), nil
	case v.Int != nil:
		return ir.Int(*v.Int), nil
	case v.String != nil:
		return ir.Str(grammar.Unquote(*v.String)), nil
	case v.Bool != nil:
		return ir.Bool(*v.Bool), nil
	case v.None:
		return ir.None{}, nil
	case v.Tuple != nil:
		if len(v.Tuple.Items) == 1 && !v.Tuple.Trailing {
			return convertValue(v.Tuple.Items[0])
		}
		elems, err := convertValues(v.Tuple.Items)
		return ir.Tuple(elems), err
	case v.List != nil:
		elems, err := convertValues(v.List.Items)
		return ir.List(elems), err
	case v.Map != nil:
		m := ir.NewMap()
		for _, e := range v.Map.Entries {
			ev, err := convertValue(e.Value)
			if err != nil {
				return nil, err
			}
			m.Set(grammar.Unquote(e.Key), ev)
		}
		return m, nil
	case v.Call != nil:
		return convertCall(v.Call)
	}
	return nil, fmt.Errorf("%s: empty value", v.Pos)
}

func convertValues(nodes []*grammar.Value) ([]ir.Value, error) {
	out := make([]ir.Value, 0, len(nodes))
	for _, n := range nodes {
		v, err := convertValue(n)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func convertCall(c *grammar.CallValue) (ir.Value, error) {
	if !c.Called {
		return ir.Str(c.Name), nil
	}
	items, err := convertArgs(c.Args)
	if err != nil {
		return nil, err
	}
	m := ir.MapOf(ir.P("type", ir.Str(c.Name)))
	var positional ir.List
	for _, a := range items {
		if a.Positional() {
			positional = append(positional, a.Value)
			continue
		}
		m.Set(a.Name, a.Value)
	}
	if len(positional) > 0 {
		m.Set(customArgsKey, positional)
	}
	return m, nil
}
