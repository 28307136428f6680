package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForTagsComponent(t *testing.T) {
	prev := Logger()
	defer SetLogger(prev)

	var buf bytes.Buffer
	l, err := New(&buf, "debug")
	require.NoError(t, err)
	SetLogger(l)

	For("csg").Debug("hello")
	assert.Contains(t, buf.String(), "component=csg")
	assert.Contains(t, buf.String(), "hello")
}

func TestSetLoggerIgnoresNil(t *testing.T) {
	prev := Logger()
	SetLogger(nil)
	assert.Same(t, prev, Logger())
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud")
	assert.Error(t, err)
}
