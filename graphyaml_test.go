package taskgraph

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGraphYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadGraphFromYAML_LinearChain(t *testing.T) {
	path := writeGraphYAML(t, `
nodes:
  - name: build
    command: echo
    args: ["building"]
    asserts:
      - exit_code: 0
  - name: test
    command: echo
    args: ["testing"]
    depends: [build]
    tag: cpu
    asserts:
      - exit_code: 0
      - output_contains: "testing"
`)

	units, err := LoadGraphFromYAML(path)
	require.NoError(t, err)
	require.Len(t, units, 2)

	byName := map[string]*ShellUnit{}
	for _, u := range units {
		byName[u.ID()] = u
	}

	build, ok := byName["build"]
	require.True(t, ok)
	assert.Equal(t, "echo", build.Command)
	assert.Empty(t, build.Prerequisites())

	test, ok := byName["test"]
	require.True(t, ok)
	assert.Equal(t, "cpu", test.Tag())
	require.Len(t, test.Prerequisites(), 1)
	assert.Equal(t, "build", test.Prerequisites()[0].ID())
	assert.Len(t, test.Asserts, 2)
}

func TestLoadGraphFromYAML_DuplicateName(t *testing.T) {
	path := writeGraphYAML(t, `
nodes:
  - name: a
    command: echo
  - name: a
    command: echo
`)
	_, err := LoadGraphFromYAML(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate graph node name")
}

func TestLoadGraphFromYAML_UnknownDependency(t *testing.T) {
	path := writeGraphYAML(t, `
nodes:
  - name: a
    command: echo
    depends: [missing]
`)
	_, err := LoadGraphFromYAML(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depends on unknown node")
}

func TestLoadGraphFromYAML_MissingName(t *testing.T) {
	path := writeGraphYAML(t, `
nodes:
  - command: echo
`)
	_, err := LoadGraphFromYAML(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing name")
}

func TestLoadGraphFromYAML_TimeoutApplied(t *testing.T) {
	path := writeGraphYAML(t, `
nodes:
  - name: a
    command: sleep
    args: ["1"]
    timeout: 10ms
`)
	units, err := LoadGraphFromYAML(path)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, 10*time.Millisecond, units[0].Timeout)

	u := units[0]
	_, err = u.Perform(context.Background())
	require.Error(t, err, "a 1s sleep must be killed by its 10ms node timeout")
}

func TestLoadGraphFromYAML_InvalidTimeout(t *testing.T) {
	path := writeGraphYAML(t, `
nodes:
  - name: a
    command: echo
    timeout: not-a-duration
`)
	_, err := LoadGraphFromYAML(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timeout")
}

func TestLoadGraphFromYAML_AssertVariants(t *testing.T) {
	path := writeGraphYAML(t, `
nodes:
  - name: a
    command: echo
    asserts:
      - exit_code: 0
      - output_equals: "hi\n"
      - output_contains: "h"
      - output_json: '{"ok":true}'
        skip_json_nodes: ["ts"]
`)
	units, err := LoadGraphFromYAML(path)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Len(t, units[0].Asserts, 4)
}

func TestLoadGraphFromYAML_DiamondDependencies(t *testing.T) {
	path := writeGraphYAML(t, `
nodes:
  - name: a
    command: echo
  - name: b
    command: echo
    depends: [a]
  - name: c
    command: echo
    depends: [a]
  - name: d
    command: echo
    depends: [b, c]
`)
	units, err := LoadGraphFromYAML(path)
	require.NoError(t, err)
	require.Len(t, units, 4)

	sched, err := NewScheduler(nil)
	require.NoError(t, err)
	for _, u := range units {
		require.NoError(t, sched.Schedule(u))
	}
}

func TestLoadGraphFromYAML_FileNotFound(t *testing.T) {
	_, err := LoadGraphFromYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read graph file")
}
