// Package logging holds the process-wide logrus logger. Library packages
// log through For so that embedding programs stay quiet until they call
// SetLogger.
package logging

import (
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var current atomic.Pointer[logrus.Logger]

func init() {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	current.Store(l)
}

// Logger returns the active logger.
func Logger() *logrus.Logger {
	return current.Load()
}

// SetLogger replaces the active logger. A nil logger is ignored.
func SetLogger(l *logrus.Logger) {
	if l != nil {
		current.Store(l)
	}
}

// New builds a text logger writing to w at the named level.
func New(w io.Writer, level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return l, nil
}

// For returns an entry tagged with a component name.
func For(component string) *logrus.Entry {
	return Logger().WithField("component", component)
}
