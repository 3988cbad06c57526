package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", Str("hello"), `"hello"`},
		{"empty string", Str(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"float", Float(0.001), "0.001"},
		{"whole float", Float(2), "2.0"},
		{"bool", Bool(true), "true"},
		{"none", None{}, "null"},
		{"nil params", (*Map)(nil), "null"},
		{"tuple", Tuple{Int(3), Int(3)}, "[3,3]"},
		{"empty list", List{}, "[]"},
		{"empty map", NewMap(), "{}"},
		{"shape with unknown", Shape{Unknown, 28, 28, 1}, "[null,28,28,1]"},
		{"go map", map[string]any{"b": 1, "a": "x"}, `{"a":"x","b":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortsKeys(t *testing.T) {
	m := MapOf(P("zebra", Int(1)), P("alpha", Int(2)), P("beta", MapOf(P("y", Int(1)), P("x", Int(2)))))

	result, err := MarshalCanonical(m)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":{"x":2,"y":1},"zebra":1}`, string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(Str("x < 1 && y > 2"))
	require.NoError(t, err)
	assert.Equal(t, `"x < 1 && y > 2"`, string(result))
}

func TestMarshalCanonicalStringEscaping(t *testing.T) {
	result, err := MarshalCanonical(Str("a\"b\\c\nd\x01"))
	require.NoError(t, err)
	assert.Equal(t, `"a\"b\\c\nd\u0001"`, string(result))
}

func TestMarshalCanonicalU2028NotEscaped(t *testing.T) {
	result, err := MarshalCanonical(Str("a\u2028b"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(result))
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	// e followed by a combining acute accent (NFD) must encode like the
	// precomposed form (NFC).
	nfd, err := MarshalCanonical(Str("cafe\u0301"))
	require.NoError(t, err)
	nfc, err := MarshalCanonical(Str("caf\u00e9"))
	require.NoError(t, err)
	assert.Equal(t, string(nfc), string(nfd))
}

func TestMarshalCanonicalRejectsNaN(t *testing.T) {
	_, err := MarshalCanonical(Float(math.NaN()))
	assert.Error(t, err)

	_, err = MarshalCanonical(MapOf(P("lr", Float(math.Inf(1)))))
	assert.ErrorContains(t, err, `"lr"`)
}

func TestMarshalCanonicalRejectsUnsupported(t *testing.T) {
	_, err := MarshalCanonical(struct{}{})
	assert.ErrorContains(t, err, "unsupported type")
}

func TestMarshalCanonicalIndependentOfParamOrder(t *testing.T) {
	a := LayerSpec{Kind: "Conv2D", Params: MapOf(
		P("filters", Int(32)), P("kernel_size", Tuple{Int(3), Int(3)}), P("activation", Str("relu")),
	)}
	b := LayerSpec{Kind: "Conv2D", Params: MapOf(
		P("activation", Str("relu")), P("filters", Int(32)), P("kernel_size", Tuple{Int(3), Int(3)}),
	)}

	ca, err := MarshalCanonical(a)
	require.NoError(t, err)
	cb, err := MarshalCanonical(b)
	require.NoError(t, err)
	assert.Equal(t, string(ca), string(cb))
	assert.Equal(t, `{"params":{"activation":"relu","filters":32,"kernel_size":[3,3]},"type":"Conv2D"}`, string(ca))
}
