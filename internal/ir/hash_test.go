package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleModel() *Model {
	out := LayerSpec{Kind: "Output", Params: MapOf(P("units", Int(10)), P("activation", Str("softmax")))}
	return &Model{
		Name:       "MNIST",
		InputShape: ShapeOf(28, 28, 1),
		Layers: []LayerSpec{
			{Kind: "Flatten"},
			{Kind: "Dense", Params: MapOf(P("units", Int(128)), P("activation", Str("relu")))},
			out,
		},
		OutputLayer: out,
		OutputShape: ShapeOf(10),
		Loss:        "categorical_crossentropy",
		Optimizer:   Optimizer{Name: "Adam"},
	}
}

func TestModelHashDeterminism(t *testing.T) {
	h1, err := ModelHash(sampleModel())
	require.NoError(t, err)
	h2, err := ModelHash(sampleModel())
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.Equal(t, strings.ToLower(h1), h1, "hash must be lowercase hex")
}

func TestModelHashChangesWithContent(t *testing.T) {
	m := sampleModel()
	before := MustModelHash(m)

	m.Loss = "mse"
	assert.NotEqual(t, before, MustModelHash(m))
}

func TestModelHashIgnoresParamOrder(t *testing.T) {
	a := sampleModel()
	b := sampleModel()
	b.Layers[1].Params = MapOf(P("activation", Str("relu")), P("units", Int(128)))

	assert.Equal(t, MustModelHash(a), MustModelHash(b))
}

func TestSourceHashSeparatesStartSymbols(t *testing.T) {
	src := "Dense(10)"

	assert.Equal(t, SourceHash("layer", src), SourceHash("layer", src))
	assert.NotEqual(t, SourceHash("layer", src), SourceHash("network", src))
}

func TestDomainSeparationPreventsCrossTypeCollision(t *testing.T) {
	data := []byte("same-data")

	assert.NotEqual(t, hashWithDomain(DomainModel, data), hashWithDomain(DomainSource, data))
	assert.NotEqual(t, CodeHash("tensorflow", "x"), CodeHash("pytorch", "x"))
}

func TestRecordHashesUseSeparateDomains(t *testing.T) {
	name := "MNIST"
	report := &ResearchReport{Name: &name, References: []string{}}
	layer := LayerSpec{Kind: "Dense", Params: MapOf(P("units", Int(10)))}

	rh, err := ReportHash(report)
	require.NoError(t, err)
	lh, err := LayerHash(layer)
	require.NoError(t, err)

	assert.Len(t, rh, 64)
	assert.Len(t, lh, 64)
	assert.NotEqual(t, rh, lh)
	assert.NotEqual(t, MustModelHash(sampleModel()), rh)

	again, err := LayerHash(LayerSpec{Kind: "Dense", Params: MapOf(P("units", Int(10)))})
	require.NoError(t, err)
	assert.Equal(t, lh, again)
}
