package codegen

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/neuraldsl/internal/ir"
)

// Literal renders v as a Python literal. Strings use single quotes, tuples
// of one element keep their trailing comma and maps become dicts.
func Literal(v ir.Value) string {
	switch x := v.(type) {
	case nil, ir.None:
		return "None"
	case ir.Int:
		return strconv.FormatInt(int64(x), 10)
	case ir.Float:
		return ir.FormatFloat(float64(x))
	case ir.Bool:
		if x {
			return "True"
		}
		return "False"
	case ir.Str:
		return quote(string(x))
	case ir.Tuple:
		if len(x) == 1 {
			return "(" + Literal(x[0]) + ",)"
		}
		return "(" + joinLiterals(x) + ")"
	case ir.List:
		return "[" + joinLiterals(x) + "]"
	case *ir.Map:
		if x == nil {
			return "None"
		}
		parts := make([]string, 0, x.Len())
		for _, k := range x.Keys() {
			val, _ := x.Get(k)
			parts = append(parts, quote(k)+": "+Literal(val))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func joinLiterals(vals []ir.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = Literal(v)
	}
	return strings.Join(parts, ", ")
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\x%02x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// Kwargs renders params as Python keyword arguments in declaration order,
// skipping the named keys.
func Kwargs(params *ir.Map, skip ...string) string {
	parts := make([]string, 0, params.Len())
	for _, k := range params.Keys() {
		if slices.Contains(skip, k) {
			continue
		}
		v, _ := params.Get(k)
		parts = append(parts, k+"="+Literal(v))
	}
	return strings.Join(parts, ", ")
}

// joinArgs joins the non-empty argument fragments with ", ".
func joinArgs(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

// pyWriter accumulates indented source lines.
type pyWriter struct {
	b strings.Builder
}

func (w *pyWriter) line(indent int, format string, args ...any) {
	w.b.WriteString(strings.Repeat("    ", indent))
	if len(args) == 0 {
		w.b.WriteString(format)
	} else {
		fmt.Fprintf(&w.b, format, args...)
	}
	w.b.WriteByte('\n')
}

func (w *pyWriter) blank() { w.b.WriteByte('\n') }

func (w *pyWriter) String() string { return w.b.String() }
