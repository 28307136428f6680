// Package filter post-processes an evaluated mesh: it removes T-junctions
// by splicing collinear vertices into edges and closes numerical gaps
// along the boundary by welding nearby features.
package filter

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/chazu/bso/pkg/geom"
	"github.com/chazu/bso/pkg/logging"
	"github.com/chazu/bso/pkg/mesh"
)

// Mode selects filter passes.
type Mode uint8

const (
	Collinear Mode = 1 << iota
	BoundaryCollinear
	Weld
)

const (
	None Mode = 0
	All       = Collinear | BoundaryCollinear | Weld
)

var modeNames = []struct {
	mode Mode
	name string
}{
	{Collinear, "collinear"},
	{BoundaryCollinear, "boundary"},
	{Weld, "weld"},
}

func (m Mode) String() string {
	if m == None {
		return "none"
	}
	var parts []string
	for _, mn := range modeNames {
		if m&mn.mode != 0 {
			parts = append(parts, mn.name)
		}
	}
	return strings.Join(parts, ",")
}

// ParseMode parses a comma separated list of pass names, or "all" or "none".
func ParseMode(s string) (Mode, error) {
	var m Mode
	for _, part := range strings.Split(s, ",") {
		switch part = strings.TrimSpace(part); part {
		case "", "none":
		case "all":
			m |= All
		default:
			found := false
			for _, mn := range modeNames {
				if mn.name == part {
					m |= mn.mode
					found = true
				}
			}
			if !found {
				return None, errors.Errorf("unknown filter %q", part)
			}
		}
	}
	return m, nil
}

// Options are the tolerances used by the passes.
type Options struct {
	LineTolerance     float64 // distance from both line planes
	EdgeLengthEpsilon float64 // shorter edges are ignored
	WeldingEpsilon    float64 // largest gap that is closed
}

// DefaultOptions returns the package tolerances.
func DefaultOptions() Options {
	return Options{
		LineTolerance:     geom.PointOnLineTolerance,
		EdgeLengthEpsilon: geom.EdgeLengthEpsilon,
		WeldingEpsilon:    geom.WeldingEpsilon,
	}
}

// Report summarises one Apply call.
type Report struct {
	CollinearSplits int
	BoundarySplits  int
	Weld            WeldReport
}

// Apply runs the selected passes in order: collinear, boundary collinear,
// weld.
func Apply(m *mesh.Mesh, mode Mode, o Options) (Report, error) {
	var r Report
	var err error
	log := logging.For("filter")
	start := time.Now()

	if mode&Collinear != 0 {
		if r.CollinearSplits, err = SplitCollinear(m, o); err != nil {
			return r, errors.Wrap(err, "collinear pass")
		}
	}
	if mode&BoundaryCollinear != 0 {
		if r.BoundarySplits, err = SplitBoundaryCollinear(m, o); err != nil {
			return r, errors.Wrap(err, "boundary collinear pass")
		}
	}
	if mode&Weld != 0 {
		if r.Weld, err = CloseGaps(m, o); err != nil {
			return r, errors.Wrap(err, "weld pass")
		}
	}

	log.WithFields(logrus.Fields{
		"mode":         mode.String(),
		"collinear":    r.CollinearSplits,
		"boundary":     r.BoundarySplits,
		"contractions": r.Weld.Total(),
		"weld_splits":  r.Weld.Splits,
		"edges":        len(m.Edges),
		"vertices":     len(m.Vertices),
		"duration":     time.Since(start),
	}).Debug("filtered")
	return r, nil
}
