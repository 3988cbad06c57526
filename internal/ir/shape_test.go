package ir

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeString(t *testing.T) {
	assert.Equal(t, "(26, 26, 32)", ShapeOf(26, 26, 32).String())
	assert.Equal(t, "(5408,)", ShapeOf(5408).String())
	assert.Equal(t, "(None, 28, 28, 1)", Shape{Unknown, 28, 28, 1}.String())
	assert.Equal(t, "()", Shape{}.String())
}

func TestShapeOfNegativeIsUnknown(t *testing.T) {
	s := ShapeOf(-1, 10)

	assert.False(t, s[0].Known())
	assert.True(t, s[1].Known())
	assert.False(t, s.FullyKnown())
}

func TestShapeJSON(t *testing.T) {
	data, err := json.Marshal(Shape{Unknown, 10})
	require.NoError(t, err)
	assert.Equal(t, "[null,10]", string(data))
}

func TestDecodeConv2D(t *testing.T) {
	l := LayerSpec{Kind: "Conv2D", Params: MapOf(P("filters", Int(32)), P("kernel_size", Int(3)))}

	p, err := DecodeConv2D(l)
	require.NoError(t, err)
	assert.Equal(t, Conv2DParams{Filters: 32, KernelH: 3, KernelW: 3}, p)
}

func TestDecodeErrors(t *testing.T) {
	_, err := DecodePool2D(LayerSpec{Kind: "MaxPooling2D"})
	var mpe *MissingParameterError
	require.True(t, errors.As(err, &mpe))
	assert.Equal(t, "pool_size", mpe.Parameter)

	_, err = DecodeDense(LayerSpec{Kind: "Dense", Params: MapOf(P("units", Str("abc")))})
	var ipe *InvalidParameterError
	require.True(t, errors.As(err, &ipe))
	assert.Equal(t, "units", ipe.Parameter)
	assert.Equal(t, `Dense: parameter "units" must be an integer, got "abc"`, ipe.Error())
}
