//go:build basic

// Package integration contains integration tests for prism.
// These tests are excluded from normal test runs due to build tags.
// To run these tests: go test -tags basic ./integration
package integration

import (
	"bytes"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runPrism runs the prism binary and returns its combined output.
func runPrism(t *testing.T, args ...string) (string, error) {
	t.Helper()

	prismPath := getPrismBinary()
	cmd := exec.Command(prismPath, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	if err != nil {
		t.Logf("Command failed: %s\nOutput: %s", cmd.String(), out.String())
	}
	return out.String(), err
}

// TestPrismAggregateByStatus verifies an end-to-end group-by against a real snapshot.
func TestPrismAggregateByStatus(t *testing.T) {
	base := writeTestSnapshot(t)

	out, err := runPrism(t, "aggregate", base,
		"--across", "status",
		"--cache-backend", "none",
		"--sprint-backend", "none",
		"--color", "no")
	require.NoError(t, err)

	assert.Contains(t, out, "OPEN")
	assert.Contains(t, out, "DONE")
	assert.Contains(t, out, "Showing 2 groups over 3 matching records")
}

// TestPrismAggregateUnassigned verifies the missing-value sentinel shows up.
func TestPrismAggregateUnassigned(t *testing.T) {
	base := writeTestSnapshot(t)

	out, err := runPrism(t, "aggregate", base,
		"--across", "assignee",
		"--cache-backend", "none",
		"--sprint-backend", "none",
		"--color", "no")
	require.NoError(t, err)

	assert.Contains(t, out, "UNASSIGNED")
}

// TestPrismListFiltered verifies filtered listing output.
func TestPrismListFiltered(t *testing.T) {
	base := writeTestSnapshot(t)

	out, err := runPrism(t, "list", base,
		"--equals", "status=DONE",
		"--cache-backend", "none",
		"--sprint-backend", "none",
		"--color", "no")
	require.NoError(t, err)

	assert.Contains(t, out, "PROJ-2")
	assert.Contains(t, out, "PROJ-3")
	assert.NotContains(t, out, "PROJ-1")
	assert.Contains(t, out, "Showing 2 of 2 records")
}

// TestPrismInvalidFilterFails verifies unknown fields are rejected, not ignored.
func TestPrismInvalidFilterFails(t *testing.T) {
	base := writeTestSnapshot(t)

	out, err := runPrism(t, "aggregate", base,
		"--equals", "bogus_field=x",
		"--cache-backend", "none",
		"--sprint-backend", "none")
	require.Error(t, err)
	assert.Contains(t, out, "bogus_field")
}

// TestPrismVersion verifies the version command works.
func TestPrismVersion(t *testing.T) {
	out, err := runPrism(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "prism CLI")
}
