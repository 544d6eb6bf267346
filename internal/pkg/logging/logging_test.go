package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-kit/log/level"
	"gotest.tools/v3/assert"
)

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "warn")
	assert.NilError(t, err)

	level.Info(logger).Log("msg", "hidden")
	level.Warn(logger).Log("msg", "shown")

	out := buf.String()
	assert.Assert(t, !strings.Contains(out, "hidden"))
	assert.Assert(t, strings.Contains(out, "msg=shown"))
}

func TestComponentTag(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "debug")
	assert.NilError(t, err)

	level.Debug(Component(logger, "hydro")).Log("msg", "inflow")
	assert.Assert(t, strings.Contains(buf.String(), "component=hydro"))
}

func TestUnknownLevel(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud")
	assert.ErrorContains(t, err, "unknown log level")
}
