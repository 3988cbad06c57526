package ir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var convSlots = []string{"filters", "kernel_size", "activation"}

func TestBindArgsPositionalAndNamedAgree(t *testing.T) {
	positional, err := BindArgs("Conv2D", convSlots, []Arg{
		{Value: Int(32)}, {Value: Tuple{Int(3), Int(3)}}, {Value: Str("relu")},
	})
	require.NoError(t, err)

	named, err := BindArgs("Conv2D", convSlots, []Arg{
		{Name: "filters", Value: Int(32)},
		{Name: "kernel_size", Value: Tuple{Int(3), Int(3)}},
		{Name: "activation", Value: Str("relu")},
	})
	require.NoError(t, err)

	assert.True(t, positional.Equal(named))
	assert.Equal(t, []string{"filters", "kernel_size", "activation"}, positional.Keys())
}

func TestBindArgsNamedWinsRegardlessOfOrder(t *testing.T) {
	params, err := BindArgs("Dense", []string{"units", "activation"}, []Arg{
		{Name: "units", Value: Int(64)},
		{Value: Int(128)},
	})
	require.NoError(t, err)

	units, _ := params.Get("units")
	assert.Equal(t, Int(64), units)
}

func TestBindArgsDuplicateNameLastWins(t *testing.T) {
	params, err := BindArgs("Dense", nil, []Arg{
		{Name: "units", Value: Int(1)},
		{Name: "units", Value: Int(2)},
	})
	require.NoError(t, err)

	units, _ := params.Get("units")
	assert.Equal(t, Int(2), units)
	assert.Equal(t, 1, params.Len())
}

func TestBindArgsEmptyIsNull(t *testing.T) {
	params, err := BindArgs("Flatten", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, params)
}

func TestBindArgsTooManyPositional(t *testing.T) {
	_, err := BindArgs("Dropout", []string{"rate"}, []Arg{{Value: Float(0.5)}, {Value: Float(0.2)}})

	var ipe *InvalidParameterError
	require.True(t, errors.As(err, &ipe))
	assert.Equal(t, "Dropout", ipe.LayerKind)
	assert.Contains(t, ipe.Reason, "at most 1 positional")
}
