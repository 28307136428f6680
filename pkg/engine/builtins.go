package engine

import (
	"fmt"
	"math"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/pkg/errors"

	"github.com/chazu/bso/pkg/geom"
	"github.com/chazu/bso/pkg/kernel"
	"github.com/chazu/bso/pkg/kernel/brush"
)

// PlaneKernel is a Kernel that can also build solids straight from
// bounding planes. The brush and frustum builtins need one.
type PlaneKernel interface {
	kernel.Kernel
	Brush(planes []geom.Plane) kernel.Solid
	Frustum(height, baseRadius, topRadius float64, segments int) kernel.Solid
}

var _ PlaneKernel = (*brush.Kernel)(nil)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites scene source before it reaches zygomys:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal), so
//     keywords never collide with user variables of the same name.
//
//  2. Kebab-case to underscore: my-part -> my_part. zygomys reads a hyphen
//     inside an identifier as subtraction.
//
//  3. Line comments: ; and ;; become //.
//
// String literals are copied through untouched.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		switch {
		case b[i] == '"':
			j := skipQuoted(b, i)
			result = append(result, b[i:j]...)
			i = j
			continue
		case b[i] == '`':
			j := i + 1
			for j < len(b) && b[j] != '`' {
				j++
			}
			if j < len(b) {
				j++
			}
			result = append(result, b[i:j]...)
			i = j
			continue
		case b[i] == ';':
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		case b[i] == ':' && i+1 < len(b) && b[i+1] == '=':
			result = append(result, b[i], b[i+1])
			i += 2
			continue
		case b[i] == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			result = append(result, '"')
			result = append(result, kwPrefix...)
			result = append(result, b[i+1:j]...)
			result = append(result, '"')
			i = j
			continue
		case b[i] == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

// skipQuoted returns the index just past the double-quoted literal that
// starts at i.
func skipQuoted(b []byte, i int) int {
	j := i + 1
	for j < len(b) && b[j] != '"' {
		if b[j] == '\\' && j+1 < len(b) {
			j++
		}
		j++
	}
	if j < len(b) {
		j++
	}
	return j
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpSolid wraps a kernel solid so it can be passed between builtins.
type sexpSolid struct {
	solid kernel.Solid
}

func (s *sexpSolid) SexpString(ps *zygo.PrintState) string {
	min, max := s.solid.BoundingBox()
	return fmt.Sprintf("(solid %v %v)", min, max)
}
func (s *sexpSolid) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a geom.Vector3.
type sexpVec3 struct {
	vec geom.Vector3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpPlane wraps a geom.Plane for the brush builtin.
type sexpPlane struct {
	plane geom.Plane
}

func (p *sexpPlane) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(plane %g %g %g %g)", p.plane.A, p.plane.B, p.plane.C, p.plane.D)
}
func (p *sexpPlane) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		if name, ok := isKW(args[i]); ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				result.kw[name] = zygo.SexpNull
				i++
			}
			continue
		}
		result.positional = append(result.positional, args[i])
		i++
	}
	return result
}

// get returns keyword key, or positional argument i when the keyword is
// absent. Pass i < 0 for keyword-only arguments.
func (pa kwArgs) get(i int, key string) (zygo.Sexp, bool) {
	if v, ok := pa.kw[key]; ok {
		return v, true
	}
	if i >= 0 && i < len(pa.positional) {
		return pa.positional[i], true
	}
	return nil, false
}

// float reads a required number.
func (pa kwArgs) float(fn string, i int, key string) (float64, error) {
	v, ok := pa.get(i, key)
	if !ok {
		return 0, errors.Errorf("%s: missing %s", fn, key)
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, errors.Wrapf(err, "%s: %s", fn, key)
	}
	return f, nil
}

// segments reads the optional facet count. Zero selects the kernel default.
func (pa kwArgs) segments(fn string, i int) (int, error) {
	v, ok := pa.get(i, "segments")
	if !ok {
		return 0, nil
	}
	n, err := toInt(v)
	if err != nil {
		return 0, errors.Wrapf(err, "%s: segments", fn)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, errors.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts an integer; floats are accepted when they are whole.
func toInt(s zygo.Sexp) (int, error) {
	f, err := toFloat64(s)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, errors.Errorf("expected integer, got %g", f)
	}
	return int(f), nil
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", errors.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

func toSolid(s zygo.Sexp) (kernel.Solid, error) {
	if v, ok := s.(*sexpSolid); ok {
		return v.solid, nil
	}
	return nil, errors.Errorf("expected solid, got %T (%s)", s, s.SexpString(nil))
}

func toVec3(s zygo.Sexp) (geom.Vector3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return geom.Vector3{}, errors.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, errors.Errorf("expected list or array, got %T", s)
}

// flatten expands list and array arguments in place so that builtins
// taking many operands accept (union a b c) and (union [a b c]) alike.
func flatten(args []zygo.Sexp) ([]zygo.Sexp, error) {
	var out []zygo.Sexp
	for _, a := range args {
		switch a.(type) {
		case *zygo.SexpPair, *zygo.SexpArray:
			items, err := sexpListToSlice(a)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
		default:
			out = append(out, a)
		}
	}
	return out, nil
}

// xyz reads a vector given either as one vec3 or as three numbers
// starting at positional index i.
func xyz(fn string, pa kwArgs, i int) (geom.Vector3, error) {
	if i < len(pa.positional) {
		if v, ok := pa.positional[i].(*sexpVec3); ok {
			return v.vec, nil
		}
	}
	x, err := pa.float(fn, i, "x")
	if err != nil {
		return geom.Vector3{}, err
	}
	y, err := pa.float(fn, i+1, "y")
	if err != nil {
		return geom.Vector3{}, err
	}
	z, err := pa.float(fn, i+2, "z")
	if err != nil {
		return geom.Vector3{}, err
	}
	return geom.Vec(x, y, z), nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// state collects what a script builds during one evaluation.
type state struct {
	kernel kernel.Kernel
	scenes []kernel.Solid
	built  int
}

// wrap records a new solid, applying an optional :name.
func (st *state) wrap(fn string, s kernel.Solid, pa kwArgs) (zygo.Sexp, error) {
	if v, ok := pa.kw["name"]; ok {
		n, err := toString(v)
		if err != nil {
			return zygo.SexpNull, errors.Wrapf(err, "%s: name", fn)
		}
		if b, ok := s.(*brush.Solid); ok {
			s = b.Named(n)
		}
	}
	st.built++
	return &sexpSolid{solid: s}, nil
}

// scene picks the output: every (scene ...) solid unioned in call order,
// or the value of the last expression when it is a solid.
func (st *state) scene(last zygo.Sexp) *Scene {
	out := &Scene{Solids: st.built}
	if len(st.scenes) > 0 {
		out.Solid = st.scenes[0]
		for _, s := range st.scenes[1:] {
			out.Solid = st.kernel.Union(out.Solid, s)
		}
		return out
	}
	if s, ok := last.(*sexpSolid); ok {
		out.Solid = s.solid
	}
	return out
}

func (st *state) planeKernel(fn string) (PlaneKernel, error) {
	pk, ok := st.kernel.(PlaneKernel)
	if !ok {
		return nil, errors.Errorf("%s: kernel %T cannot build solids from planes", fn, st.kernel)
	}
	return pk, nil
}

// operands reads the solids of a Boolean builtin.
func operands(fn string, args []zygo.Sexp) ([]kernel.Solid, kwArgs, error) {
	pa := parseArgs(args)
	items, err := flatten(pa.positional)
	if err != nil {
		return nil, pa, errors.Wrap(err, fn)
	}
	if len(items) < 2 {
		return nil, pa, errors.Errorf("%s requires at least two solids, got %d", fn, len(items))
	}
	solids := make([]kernel.Solid, len(items))
	for i, it := range items {
		s, err := toSolid(it)
		if err != nil {
			return nil, pa, errors.Wrapf(err, "%s: operand %d", fn, i+1)
		}
		solids[i] = s
	}
	return solids, pa, nil
}

// registerBuiltins installs the scene builtins into a zygomys environment.
// Source code must be preprocessed with preprocessSource() first so that
// :keyword tokens arrive as recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, st *state) {
	k := st.kernel

	// -----------------------------------------------------------------------
	// (vec3 x y z)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, errors.Errorf("vec3 requires 3 numbers, got %d", len(args))
		}
		var c [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, errors.Wrapf(err, "vec3: component %d", i+1)
			}
			c[i] = f
		}
		return &sexpVec3{vec: geom.Vec(c[0], c[1], c[2])}, nil
	})

	// -----------------------------------------------------------------------
	// (plane a b c d) or (plane (vec3 a b c) d)
	// -----------------------------------------------------------------------
	env.AddFunction("plane", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var p geom.Plane
		if len(pa.positional) == 2 {
			n, err := toVec3(pa.positional[0])
			if err != nil {
				return zygo.SexpNull, errors.Wrap(err, "plane: normal")
			}
			d, err := toFloat64(pa.positional[1])
			if err != nil {
				return zygo.SexpNull, errors.Wrap(err, "plane: distance")
			}
			p = geom.NewPlane(n, d)
		} else {
			n, err := xyz("plane", pa, 0)
			if err != nil {
				return zygo.SexpNull, err
			}
			d, err := pa.float("plane", 3, "d")
			if err != nil {
				return zygo.SexpNull, err
			}
			p = geom.NewPlane(n, d)
		}
		if err := p.Validate(); err != nil {
			return zygo.SexpNull, errors.Wrap(err, "plane")
		}
		return &sexpPlane{plane: p}, nil
	})

	// -----------------------------------------------------------------------
	// (box 10 20 30), (box :x 10 :y 20 :z 30) or (box (vec3 10 20 30))
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var size geom.Vector3
		var err error
		if v, ok := pa.kw["size"]; ok {
			size, err = toVec3(v)
			err = errors.Wrap(err, "box: size")
		} else {
			size, err = xyz("box", pa, 0)
		}
		if err != nil {
			return zygo.SexpNull, err
		}
		return st.wrap(name, k.Box(size.X, size.Y, size.Z), pa)
	})

	// -----------------------------------------------------------------------
	// (cuboid (vec3 0 0 0) (vec3 1 2 3)) or (cuboid :min .. :max ..)
	// -----------------------------------------------------------------------
	env.AddFunction("cuboid", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var corners [2]geom.Vector3
		for i, key := range []string{"min", "max"} {
			v, ok := pa.get(i, key)
			if !ok {
				return zygo.SexpNull, errors.Errorf("cuboid: missing %s", key)
			}
			c, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, errors.Wrapf(err, "cuboid: %s", key)
			}
			corners[i] = c
		}
		size := corners[1].Sub(corners[0])
		s := k.Translate(k.Box(size.X, size.Y, size.Z), corners[0].X, corners[0].Y, corners[0].Z)
		return st.wrap(name, s, pa)
	})

	// -----------------------------------------------------------------------
	// (cylinder :radius 1 :length 2 :segments 12)
	// (cone :radius 1 :length 2 :segments 16)
	// -----------------------------------------------------------------------
	round := func(build func(height, radius float64, segments int) kernel.Solid) zygo.ZlispUserFunction {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			r, err := pa.float(name, 0, "radius")
			if err != nil {
				return zygo.SexpNull, err
			}
			l, err := pa.float(name, 1, "length")
			if err != nil {
				return zygo.SexpNull, err
			}
			n, err := pa.segments(name, 2)
			if err != nil {
				return zygo.SexpNull, err
			}
			return st.wrap(name, build(l, r, n), pa)
		}
	}
	env.AddFunction("cylinder", round(k.Cylinder))
	env.AddFunction("cone", round(k.Cone))

	// -----------------------------------------------------------------------
	// (frustum :base-radius 2 :top-radius 1 :length 3 :segments 24)
	// -----------------------------------------------------------------------
	env.AddFunction("frustum", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pk, err := st.planeKernel(name)
		if err != nil {
			return zygo.SexpNull, err
		}
		pa := parseArgs(args)
		base, err := pa.float(name, 0, "base-radius")
		if err != nil {
			return zygo.SexpNull, err
		}
		top, err := pa.float(name, 1, "top-radius")
		if err != nil {
			return zygo.SexpNull, err
		}
		l, err := pa.float(name, 2, "length")
		if err != nil {
			return zygo.SexpNull, err
		}
		n, err := pa.segments(name, 3)
		if err != nil {
			return zygo.SexpNull, err
		}
		return st.wrap(name, pk.Frustum(l, base, top, n), pa)
	})

	// -----------------------------------------------------------------------
	// (sphere :radius 2 :segments 12)
	// -----------------------------------------------------------------------
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		r, err := pa.float(name, 0, "radius")
		if err != nil {
			return zygo.SexpNull, err
		}
		n, err := pa.segments(name, 1)
		if err != nil {
			return zygo.SexpNull, err
		}
		return st.wrap(name, k.Sphere(r, n), pa)
	})

	// -----------------------------------------------------------------------
	// (brush (plane 1 0 0 1) (plane -1 0 0 0) ...)
	// -----------------------------------------------------------------------
	env.AddFunction("brush", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pk, err := st.planeKernel(name)
		if err != nil {
			return zygo.SexpNull, err
		}
		pa := parseArgs(args)
		items, err := flatten(pa.positional)
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "brush")
		}
		if len(items) == 0 {
			return zygo.SexpNull, errors.New("brush requires at least one plane")
		}
		planes := make([]geom.Plane, len(items))
		for i, it := range items {
			p, ok := it.(*sexpPlane)
			if !ok {
				return zygo.SexpNull, errors.Errorf("brush: argument %d: expected plane, got %T", i+1, it)
			}
			planes[i] = p.plane
		}
		return st.wrap(name, pk.Brush(planes), pa)
	})

	// -----------------------------------------------------------------------
	// (union a b ...), (difference a b ...), (intersection a b ...)
	// Operands fold left: (difference a b c) is (a - b) - c.
	// -----------------------------------------------------------------------
	boolean := func(op func(a, b kernel.Solid) kernel.Solid) zygo.ZlispUserFunction {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			solids, pa, err := operands(name, args)
			if err != nil {
				return zygo.SexpNull, err
			}
			acc := solids[0]
			for _, s := range solids[1:] {
				acc = op(acc, s)
			}
			return st.wrap(name, acc, pa)
		}
	}
	env.AddFunction("union", boolean(k.Union))
	env.AddFunction("difference", boolean(k.Difference))
	env.AddFunction("intersection", boolean(k.Intersection))

	// -----------------------------------------------------------------------
	// (translate s 1 0 0) or (translate s (vec3 1 0 0))
	// (rotate s 0 0 90), Euler angles in degrees
	// -----------------------------------------------------------------------
	transform := func(op func(s kernel.Solid, x, y, z float64) kernel.Solid) zygo.ZlispUserFunction {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			if len(pa.positional) == 0 {
				return zygo.SexpNull, errors.Errorf("%s requires a solid", name)
			}
			s, err := toSolid(pa.positional[0])
			if err != nil {
				return zygo.SexpNull, errors.Wrap(err, name)
			}
			v, err := xyz(name, pa, 1)
			if err != nil {
				return zygo.SexpNull, err
			}
			return st.wrap(name, op(s, v.X, v.Y, v.Z), pa)
		}
	}
	env.AddFunction("translate", transform(k.Translate))
	env.AddFunction("rotate", transform(k.Rotate))

	// -----------------------------------------------------------------------
	// (scene a b ...)
	// -----------------------------------------------------------------------
	env.AddFunction("scene", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		items, err := flatten(args)
		if err != nil {
			return zygo.SexpNull, errors.Wrap(err, "scene")
		}
		if len(items) == 0 {
			return zygo.SexpNull, errors.New("scene requires at least one solid")
		}
		for i, it := range items {
			s, err := toSolid(it)
			if err != nil {
				return zygo.SexpNull, errors.Wrapf(err, "scene: argument %d", i+1)
			}
			st.scenes = append(st.scenes, s)
		}
		return items[len(items)-1], nil
	})
}
