package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/chazu/bso/pkg/engine"
	"github.com/chazu/bso/pkg/filter"
	"github.com/chazu/bso/pkg/kernel"
	"github.com/chazu/bso/pkg/kernel/brush"
	"github.com/chazu/bso/pkg/kernel/sdfx"
	"github.com/chazu/bso/pkg/logging"
	"github.com/chazu/bso/pkg/tessellate"
)

// colorPalette assigns distinct colors to parts.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// MeshData is the JSON mesh format written by --json.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable eval error.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the document written by --json.
type EvalResult struct {
	ID     string          `json:"id,omitempty"`
	Meshes []MeshData      `json:"meshes"`
	Errors []EvalErrorData `json:"errors"`
}

// ErrScript is returned when the script fails to evaluate.
var ErrScript = errors.New("script failed")

// ErrJSONFilters is returned when --json is combined with --filter. The
// JSON output holds one mesh per part, and the filter passes only run on
// the combined scene mesh.
var ErrJSONFilters = errors.New("--filter cannot be combined with --json")

type evalOptions struct {
	filters       string
	weldEpsilon   float64
	lineTolerance float64
	segments      int
	json          bool
	logLevel      string
	kernel        string
	cells         int
}

func newEvalCmd() *cobra.Command {
	defaults := filter.DefaultOptions()
	opts := evalOptions{
		filters:       "none",
		weldEpsilon:   defaults.WeldingEpsilon,
		lineTolerance: defaults.LineTolerance,
		logLevel:      "warn",
		kernel:        "brush",
		cells:         sdfx.DefaultCells,
	}
	cmd := &cobra.Command{
		Use:   "eval <script>",
		Short: "evaluate a scene script",
		Long:  "evaluates a scene script and prints mesh statistics, or the render meshes as JSON. Use - to read the script from stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd.Context(), opts, args[0], cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.filters, "filter", opts.filters, "filter passes for the statistics output: none, all, or a list of collinear,boundary,weld")
	f.Float64Var(&opts.weldEpsilon, "weld-epsilon", opts.weldEpsilon, "largest gap closed by the weld pass")
	f.Float64Var(&opts.lineTolerance, "line-tolerance", opts.lineTolerance, "distance at which a vertex lies on a line")
	f.IntVar(&opts.segments, "segments", opts.segments, "default facet count for round primitives (0 keeps the built-in defaults)")
	f.BoolVar(&opts.json, "json", opts.json, "write per-part render meshes as JSON")
	f.StringVar(&opts.logLevel, "log-level", opts.logLevel, "log level written to stderr")
	f.StringVar(&opts.kernel, "kernel", opts.kernel, "geometry kernel: brush, or sdfx for a marching cubes reference mesh")
	f.IntVar(&opts.cells, "cells", opts.cells, "marching cubes resolution of the sdfx kernel")
	return cmd
}

func readScript(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), errors.Wrap(err, "read stdin")
	}
	b, err := os.ReadFile(path)
	return string(b), errors.Wrapf(err, "read %s", path)
}

func (o evalOptions) brushKernel() (*brush.Kernel, error) {
	mode, err := filter.ParseMode(o.filters)
	if err != nil {
		return nil, err
	}
	fo := filter.DefaultOptions()
	fo.WeldingEpsilon = o.weldEpsilon
	fo.LineTolerance = o.lineTolerance
	return brush.New(
		brush.WithSegments(o.segments),
		brush.WithFilters(mode),
		brush.WithFilterOptions(fo),
	), nil
}

func runEval(ctx context.Context, o evalOptions, path string, stdin io.Reader, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := logging.New(errOut, o.logLevel)
	if err != nil {
		return errors.Wrap(err, "log-level")
	}
	logging.SetLogger(logger)

	if o.json {
		if mode, err := filter.ParseMode(o.filters); err == nil && mode != filter.None {
			return ErrJSONFilters
		}
	}

	var k kernel.Kernel
	switch o.kernel {
	case "brush":
		if k, err = o.brushKernel(); err != nil {
			return err
		}
	case "sdfx":
		k = sdfx.New(sdfx.WithCells(o.cells))
	default:
		return errors.Errorf("unknown kernel %q", o.kernel)
	}
	source, err := readScript(path, stdin)
	if err != nil {
		return err
	}

	scene, evalErrs, err := engine.NewEngine(k).Evaluate(source)
	if err != nil {
		return err
	}
	if len(evalErrs) > 0 {
		if o.json {
			if err := writeJSON(out, EvalResult{Meshes: []MeshData{}, Errors: errorData(evalErrs)}); err != nil {
				return err
			}
		} else {
			for _, e := range evalErrs {
				fmt.Fprintf(errOut, "%s: %s\n", path, e.Error())
			}
		}
		return errors.Wrapf(ErrScript, "%d error(s)", len(evalErrs))
	}

	if scene.Empty() {
		if o.json {
			return writeJSON(out, EvalResult{Meshes: []MeshData{}, Errors: []EvalErrorData{}})
		}
		fmt.Fprintln(out, "empty scene")
		return nil
	}

	bk, ok := k.(*brush.Kernel)
	if !ok {
		return writeMesh(out, o.json, k, scene.Solid)
	}
	ev, err := bk.Evaluate(ctx, scene.Solid)
	if err != nil {
		return err
	}

	if o.json {
		parts, err := tessellate.Tessellate(ev.Tree, ev.Result)
		if err != nil {
			return err
		}
		return writeJSON(out, EvalResult{
			ID:     ev.Result.ID,
			Meshes: meshData(parts),
			Errors: []EvalErrorData{},
		})
	}

	m, err := tessellate.Mesh(ev.Result.Mesh, "scene")
	if err != nil {
		return err
	}
	printStats(out, ev, m)
	return nil
}

// writeMesh reports a scene meshed by a kernel without a CSG tree.
func writeMesh(out io.Writer, asJSON bool, k kernel.Kernel, s kernel.Solid) error {
	m, err := k.ToMesh(s)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, EvalResult{Meshes: meshData([]*kernel.Mesh{m}), Errors: []EvalErrorData{}})
	}
	min, max := m.Bounds()
	fmt.Fprintf(out, "triangles  %d\n", m.TriangleCount())
	fmt.Fprintf(out, "bounds     %g %g\n", min, max)
	return nil
}

func printStats(w io.Writer, ev *brush.Evaluation, m *kernel.Mesh) {
	st := ev.Result.Mesh.Stats()
	min, max := m.Bounds()
	rep := ev.Result.Filter
	fmt.Fprintf(w, "run        %s\n", ev.Result.ID)
	fmt.Fprintf(w, "nodes      %d\n", ev.Tree.NodeCount())
	fmt.Fprintf(w, "polygons   %d (%d visible)\n", st.Polygons, st.Visible)
	fmt.Fprintf(w, "vertices   %d\n", st.Vertices)
	fmt.Fprintf(w, "triangles  %d\n", m.TriangleCount())
	fmt.Fprintf(w, "bounds     %g %g\n", min, max)
	fmt.Fprintf(w, "filters    collinear=%d boundary=%d weld=%d\n",
		rep.CollinearSplits, rep.BoundarySplits, rep.Weld.Total())
}

func meshData(parts []*kernel.Mesh) []MeshData {
	return lo.Map(parts, func(m *kernel.Mesh, i int) MeshData {
		return MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			PartName: m.PartName,
			Color:    colorPalette[i%len(colorPalette)],
		}
	})
}

func errorData(errs []engine.EvalError) []EvalErrorData {
	return lo.Map(errs, func(e engine.EvalError, _ int) EvalErrorData {
		return EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message}
	})
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "write json")
}
