package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/neuraldsl/internal/shape"
)

// ShapesOptions holds flags for the shapes command.
type ShapesOptions struct {
	*RootOptions
	Graph bool // emit the node/link graph instead of a table
}

// ShapeRow is one layer of the shape history.
type ShapeRow struct {
	Index int    `json:"index"`
	Kind  string `json:"kind"`
	Shape string `json:"shape"`
}

// ShapesResult is the JSON payload of the shapes command.
type ShapesResult struct {
	Model  string     `json:"model"`
	Input  string     `json:"input"`
	Layers []ShapeRow `json:"layers"`
	Output string     `json:"output"`
}

// NewShapesCommand creates the shapes command.
func NewShapesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShapesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "shapes <file>",
		Short: "Show the tensor shape after every layer",
		Long: `Propagate the input shape of a network through its layers and print
the shape each layer produces. With --graph the result is the layer graph
used by visualizers: input, layer and output nodes linked in order.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShapes(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Graph, "graph", false, "output the layer graph as JSON")

	return cmd
}

func runShapes(opts *ShapesOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	out, err := compileFile(opts.RootOptions, cmd, path, "", true, nil)
	if err != nil {
		return formatter.Fail(err, traceDetails(out))
	}
	m := out.Result.Model
	if m == nil {
		return formatter.Fail(&LoadError{
			Code:    ErrCodeUnsupportedExt,
			Message: fmt.Sprintf("shapes needs a network file, got %s", out.Start),
		}, nil)
	}

	if opts.Graph {
		g, err := shape.Graph(m, out.Shapes)
		if err != nil {
			return formatter.Fail(err, nil)
		}
		if formatter.JSON() {
			return formatter.Success(g)
		}
		enc := json.NewEncoder(formatter.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(g)
	}

	result := ShapesResult{
		Model:  m.Name,
		Input:  m.InputShape.String(),
		Layers: make([]ShapeRow, len(m.Layers)),
		Output: m.InputShape.String(),
	}
	for i, l := range m.Layers {
		result.Layers[i] = ShapeRow{Index: i + 1, Kind: l.Kind, Shape: out.Shapes[i].String()}
		result.Output = result.Layers[i].Shape
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "network %s\n", m.Name)
	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "  0\tInput\t%s\n", result.Input)
	for _, row := range result.Layers {
		fmt.Fprintf(tw, "  %d\t%s\t%s\n", row.Index, row.Kind, row.Shape)
	}
	return tw.Flush()
}
