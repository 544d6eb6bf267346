package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func TestCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"compute", "construct", "construct-tyndp", "download", "inspect", "scenarios"} {
		assert.Assert(t, strings.Contains(strings.Join(names, " "), want), "missing %s in %v", want, names)
	}

	safe, err := root.PersistentFlags().GetBool("safe")
	assert.NilError(t, err)
	assert.Assert(t, safe)
	res, err := root.PersistentFlags().GetInt("temporal-resolution")
	assert.NilError(t, err)
	assert.Equal(t, res, 1)
}

func TestScenarios(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"scenarios", "--log-level", "error"})
	assert.NilError(t, root.ExecuteContext(context.Background()))
	assert.Assert(t, strings.Contains(out.String(), "base-heat\n"))
}

func TestComputeRequiresDataset(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"compute", "--datapackage-dir", t.TempDir(), "--results-dir", t.TempDir(), "--log-level", "error"})
	assert.Assert(t, root.ExecuteContext(context.Background()) != nil)
}

func TestLinkServicesBadConfig(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"construct", "de-pv", "--nats-config", "does-not-exist.json", "--log-level", "error",
		"--datapackage-dir", t.TempDir(), "--offline"})
	err := root.ExecuteContext(context.Background())
	assert.ErrorContains(t, err, "does-not-exist.json")
}
