package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/neuraldsl/internal/shape"
)

func TestShapesText(t *testing.T) {
	out, err := execute(t, "shapes", "testdata/mnist.neural")
	require.NoError(t, err)

	assert.Contains(t, out, "network MNISTClassifier\n")
	assert.Regexp(t, `0\s+Input\s+\(28, 28, 1\)`, out)
	assert.Regexp(t, `1\s+Conv2D\s+\(26, 26, 32\)`, out)
	assert.Regexp(t, `3\s+Flatten\s+\(5408,\)`, out)
	assert.Regexp(t, `6\s+Output\s+\(10,\)`, out)
}

func TestShapesJSON(t *testing.T) {
	out, err := execute(t, "shapes", "testdata/mnist.neural", "--format", "json")
	require.NoError(t, err)

	var result ShapesResult
	decode(t, out, &result)
	assert.Equal(t, "MNISTClassifier", result.Model)
	assert.Equal(t, "(28, 28, 1)", result.Input)
	assert.Equal(t, "(10,)", result.Output)
	require.Len(t, result.Layers, 6)
	assert.Equal(t, ShapeRow{Index: 2, Kind: "MaxPooling2D", Shape: "(13, 13, 32)"}, result.Layers[1])
}

func TestShapesGraph(t *testing.T) {
	out, err := execute(t, "shapes", "testdata/mnist.neural", "--graph", "--format", "json")
	require.NoError(t, err)

	var g struct {
		Nodes []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"nodes"`
		Links []shape.Link `json:"links"`
	}
	decode(t, out, &g)
	require.Len(t, g.Nodes, 7)
	assert.Equal(t, "input", g.Nodes[0].ID)
	assert.Equal(t, "layer1", g.Nodes[1].ID)
	assert.Equal(t, "output", g.Nodes[6].ID)
	require.Len(t, g.Links, 6)
	assert.Equal(t, shape.Link{Source: "layer5", Target: "output"}, g.Links[5])
}

func TestShapesRejectsResearch(t *testing.T) {
	out, err := execute(t, "shapes", "testdata/study.rnr")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "shapes needs a network file, got research")
}
