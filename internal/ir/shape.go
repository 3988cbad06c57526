package ir

import (
	"slices"
	"strconv"
	"strings"
)

// Dim is one tensor dimension: a non-negative size or Unknown.
type Dim int64

// Unknown marks a dimension whose size is not known statically,
// typically the batch axis. It is written as None in source.
const Unknown Dim = -1

// Known reports whether d is a concrete size.
func (d Dim) Known() bool { return d >= 0 }

func (d Dim) String() string {
	if !d.Known() {
		return "None"
	}
	return strconv.FormatInt(int64(d), 10)
}

// MarshalJSON encodes Unknown as null.
func (d Dim) MarshalJSON() ([]byte, error) {
	if !d.Known() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(int64(d), 10)), nil
}

// Shape is an ordered sequence of dimensions.
type Shape []Dim

// ShapeOf builds a Shape from sizes. Negative sizes become Unknown.
func ShapeOf(dims ...int64) Shape {
	s := make(Shape, len(dims))
	for i, d := range dims {
		if d < 0 {
			s[i] = Unknown
			continue
		}
		s[i] = Dim(d)
	}
	return s
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int { return len(s) }

// Equal reports element-wise equality.
func (s Shape) Equal(o Shape) bool { return slices.Equal(s, o) }

// Clone returns an independent copy.
func (s Shape) Clone() Shape { return slices.Clone(s) }

// FullyKnown reports whether every dimension is concrete.
func (s Shape) FullyKnown() bool {
	for _, d := range s {
		if !d.Known() {
			return false
		}
	}
	return true
}

// String renders the shape as a tuple: (26, 26, 32), (5408,) or ().
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = d.String()
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Value converts the shape to a Tuple with Unknown rendered as None.
func (s Shape) Value() Tuple {
	t := make(Tuple, len(s))
	for i, d := range s {
		if d.Known() {
			t[i] = Int(d)
		} else {
			t[i] = None{}
		}
	}
	return t
}

// MarshalJSON encodes the shape as an array, keeping the empty shape as [].
func (s Shape) MarshalJSON() ([]byte, error) {
	return s.Value().MarshalJSON()
}
