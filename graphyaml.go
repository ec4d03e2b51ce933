// Declarative YAML graph loading.
//
// Example:
//
//	nodes:
//	  - name: build
//	    command: make
//	    args: ["build"]
//	    asserts:
//	      - exit_code: 0
//	  - name: test
//	    command: make
//	    args: ["test"]
//	    depends: [build]
//	    tag: cpu
//	    timeout: 30s
//	    asserts:
//	      - exit_code: 0
//	      - output_contains: "PASS"
//
// timeout, if set, becomes ShellUnit.Timeout: a bound on that single
// node's command, applied by ShellUnit.Perform deriving its own
// context.WithTimeout. It is not enforced by the Scheduler or Executor
// themselves, which time out no unit on their own.
package taskgraph

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type assertionYAML struct {
	ExitCode       *int     `yaml:"exit_code,omitempty"`
	OutputEquals   *string  `yaml:"output_equals,omitempty"`
	OutputContains *string  `yaml:"output_contains,omitempty"`
	OutputJSON     *string  `yaml:"output_json,omitempty"`
	SkipJSONNodes  []string `yaml:"skip_json_nodes,omitempty"`
}

type nodeYAML struct {
	Name       string            `yaml:"name"`
	Tag        string            `yaml:"tag,omitempty"`
	Command    string            `yaml:"command"`
	Args       []string          `yaml:"args,omitempty"`
	Depends    []string          `yaml:"depends,omitempty"`
	Timeout    string            `yaml:"timeout,omitempty"`
	Env        map[string]string `yaml:"env,omitempty"`
	WorkingDir string            `yaml:"working_dir,omitempty"`
	Image      string            `yaml:"image,omitempty"`
	Backend    string            `yaml:"backend,omitempty"`
	Asserts    []assertionYAML   `yaml:"asserts,omitempty"`
}

type graphYAML struct {
	Nodes []nodeYAML `yaml:"nodes"`
}

// LoadGraphFromYAML reads a declarative graph definition from path and
// returns the ShellUnits it describes, wired to each other by name via
// Depends, in no particular order. Callers still need to Schedule every
// returned unit.
//
// This generalizes the teacher's LoadWorkflowFromYAML (yaml.go), which
// only builds a single linear Workflow, into a full dependency graph —
// the teacher's "depends" field per step already existed but went
// unused by the linear Workflow.Run; here it drives Scheduler wiring.
func LoadGraphFromYAML(path string) ([]*ShellUnit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph file: %w", err)
	}
	var g graphYAML
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse graph YAML: %w", err)
	}
	return buildGraph(g)
}

func buildGraph(g graphYAML) ([]*ShellUnit, error) {
	byName := make(map[string]*ShellUnit, len(g.Nodes))
	order := make([]*ShellUnit, 0, len(g.Nodes))

	// First pass: construct every node with no prerequisites yet, so
	// Depends can reference nodes regardless of file order.
	for _, n := range g.Nodes {
		if n.Name == "" {
			return nil, fmt.Errorf("graph node missing name")
		}
		if _, exists := byName[n.Name]; exists {
			return nil, fmt.Errorf("duplicate graph node name %q", n.Name)
		}
		u := NewShellUnit(n.Name, n.Tag, nil, n.Command, n.Args...)
		u.Env = n.Env
		u.WorkingDir = n.WorkingDir
		u.Image = n.Image
		if n.Backend != "" {
			u.Backend = n.Backend
		}
		if n.Timeout != "" {
			d, err := time.ParseDuration(n.Timeout)
			if err != nil {
				return nil, fmt.Errorf("node %s: invalid timeout: %w", n.Name, err)
			}
			u.Timeout = d
		}
		for _, a := range n.Asserts {
			switch {
			case a.ExitCode != nil:
				u.AddAssertion(AssertExitCode(*a.ExitCode))
			case a.OutputEquals != nil:
				u.AddAssertion(AssertOutputEquals(*a.OutputEquals))
			case a.OutputContains != nil:
				u.AddAssertion(AssertOutputContains(*a.OutputContains))
			case a.OutputJSON != nil:
				u.AddAssertion(AssertOutputJSON(*a.OutputJSON, a.SkipJSONNodes...))
			}
		}
		byName[n.Name] = u
		order = append(order, u)
	}

	// Second pass: resolve each node's named dependencies into Unit
	// references now that every node exists.
	for _, n := range g.Nodes {
		if len(n.Depends) == 0 {
			continue
		}
		prereqs := make([]Unit, 0, len(n.Depends))
		for _, depName := range n.Depends {
			dep, ok := byName[depName]
			if !ok {
				return nil, fmt.Errorf("node %s depends on unknown node %q", n.Name, depName)
			}
			prereqs = append(prereqs, dep)
		}
		byName[n.Name].SetPrerequisites(prereqs)
	}

	return order, nil
}
