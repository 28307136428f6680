package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/bso/pkg/logging"
)

const overlapping = `
; two unit cubes, the second shifted half a unit along x
(scene (union (box 1 1 1 :name "left")
              (translate (box 1 1 1) 0.5 0 0 :name "right")))
`

func writeScript(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.bso")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	prev := logging.Logger()
	t.Cleanup(func() { logging.SetLogger(prev) })

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestEvalPrintsStats(t *testing.T) {
	out, _, err := execute(t, "", "eval", writeScript(t, overlapping))
	require.NoError(t, err)

	assert.Contains(t, out, "run ")
	assert.Contains(t, out, "nodes      3\n")
	assert.Contains(t, out, "polygons   20 (14 visible)\n")
	assert.Contains(t, out, "triangles  28\n")
	assert.Contains(t, out, "bounds     [0 0 0] [1.5 1 1]\n")
	assert.Contains(t, out, "filters    collinear=0 boundary=0 weld=0\n")
}

func TestEvalReadsStdin(t *testing.T) {
	out, _, err := execute(t, "(box 2 2 2)", "eval", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "polygons   6 (6 visible)\n")
	assert.Contains(t, out, "bounds     [0 0 0] [2 2 2]\n")
}

func TestEvalFilters(t *testing.T) {
	src := `(union (box 2 1 1) (translate (box 1 1 1) 0 0 1))`
	out, _, err := execute(t, src, "eval", "-", "--filter", "collinear")
	require.NoError(t, err)
	assert.NotContains(t, out, "collinear=0 ")

	_, _, err = execute(t, src, "eval", "-", "--filter", "bogus")
	require.Error(t, err)
}

func TestEvalJSON(t *testing.T) {
	out, _, err := execute(t, "", "eval", writeScript(t, overlapping), "--json")
	require.NoError(t, err)

	var res EvalResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.NotEmpty(t, res.ID)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Meshes, 2)
	assert.Equal(t, "left", res.Meshes[0].PartName)
	assert.Equal(t, "right", res.Meshes[1].PartName)
	assert.Equal(t, colorPalette[1], res.Meshes[1].Color)
	for _, m := range res.Meshes {
		assert.Len(t, m.Normals, len(m.Vertices))
		assert.Zero(t, len(m.Indices)%3)
	}
}

func TestEvalJSONRejectsFilters(t *testing.T) {
	path := writeScript(t, overlapping)
	for _, mode := range []string{"all", "collinear", "weld"} {
		t.Run(mode, func(t *testing.T) {
			out, _, err := execute(t, "", "eval", path, "--json", "--filter", mode)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrJSONFilters))
			assert.Empty(t, out)
		})
	}

	_, _, err := execute(t, "", "eval", path, "--json", "--filter", "none")
	require.NoError(t, err)
}

func TestEvalScriptErrors(t *testing.T) {
	_, errOut, err := execute(t, "(box 1 2)", "eval", "-")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrScript))
	assert.NotEmpty(t, errOut)

	out, _, err := execute(t, "(box 1 2)", "eval", "-", "--json")
	require.Error(t, err)
	var res EvalResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.NotEmpty(t, res.Errors)
	assert.Empty(t, res.Meshes)
}

func TestEvalEmptyScene(t *testing.T) {
	out, _, err := execute(t, "(+ 1 2)", "eval", "-")
	require.NoError(t, err)
	assert.Equal(t, "empty scene\n", out)
}

func TestEvalBadDimensions(t *testing.T) {
	_, _, err := execute(t, "(box 0 1 1)", "eval", "-")
	require.Error(t, err)
}

func TestEvalFlagErrors(t *testing.T) {
	_, _, err := execute(t, "", "eval")
	require.Error(t, err)

	_, _, err = execute(t, "(box 1 1 1)", "eval", "-", "--log-level", "loud")
	require.Error(t, err)

	_, _, err = execute(t, "", "eval", filepath.Join(t.TempDir(), "missing.bso"))
	require.Error(t, err)
}

func TestLogLevelWritesToStderr(t *testing.T) {
	_, errOut, err := execute(t, "(box 1 1 1)", "eval", "-", "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, errOut, "component=engine")
}

func TestEvalSdfxKernel(t *testing.T) {
	out, _, err := execute(t, "(box 1 1 1)", "eval", "-", "--kernel", "sdfx", "--cells", "16")
	require.NoError(t, err)
	assert.Contains(t, out, "triangles  ")
	assert.NotContains(t, out, "polygons")

	_, _, err = execute(t, "(brush (plane 1 0 0 1))", "eval", "-", "--kernel", "sdfx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrScript))

	_, _, err = execute(t, "(box 1 1 1)", "eval", "-", "--kernel", "nope")
	require.Error(t, err)
}

func TestEvalCommentsOnly(t *testing.T) {
	out, _, err := execute(t, ";; nothing here\n  ; still nothing\n", "eval", "-")
	require.NoError(t, err)
	assert.Equal(t, "empty scene\n", out)
}

func TestEvalArithmeticDimensions(t *testing.T) {
	src := `
(def width (* 2 (+ 1 0.5)))
(def half (/ width 2))
(box width half (- width 1))
`
	out, _, err := execute(t, src, "eval", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "bounds     [0 0 0] [3 1.5 2]\n")
}

func TestEvalColorPaletteWrapping(t *testing.T) {
	var b strings.Builder
	b.WriteString("(union")
	n := len(colorPalette) + 2
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, " (translate (box 1 1 1) %d 0 0 :name \"p%d\")", 2*i, i)
	}
	b.WriteString(")")

	out, _, err := execute(t, b.String(), "eval", "-", "--json")
	require.NoError(t, err)

	var res EvalResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Meshes, n)
	assert.Equal(t, "p0", res.Meshes[0].PartName)
	assert.Equal(t, res.Meshes[0].Color, res.Meshes[len(colorPalette)].Color)
	assert.Equal(t, res.Meshes[1].Color, res.Meshes[len(colorPalette)+1].Color)
}
