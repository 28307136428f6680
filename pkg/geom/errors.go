package geom

import "github.com/pkg/errors"

// ErrInvalidArgument marks NaN or infinite input geometry.
var ErrInvalidArgument = errors.New("geom: invalid argument")

func invalidf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}
