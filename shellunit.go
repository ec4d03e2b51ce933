package taskgraph

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Output holds the result of running a ShellUnit's command: its exit
// code and combined stdout/stderr, mirroring the teacher's Task.Actual
// (iapetus task.go/backend.go).
type Output struct {
	ExitCode int
	Output   string
	Error    string
}

// ShellAssertion validates a ShellUnit's Output after the command
// completes. Returning a non-nil error fails the unit (see assert.go).
type ShellAssertion func(Output) error

// ShellUnit is a ready-made Unit that runs a command through a pluggable
// ShellBackend and validates the result with zero or more assertions.
// It generalizes the teacher's Task/BashBackend/DockerBackend trio
// (task.go, backend.go) into a concrete Unit implementation, and is
// what graphyaml.go builds from a declarative YAML graph.
type ShellUnit struct {
	*BaseUnit

	Command    string
	Args       []string
	Env        map[string]string
	WorkingDir string
	Image      string // required by the docker/kubernetes backends
	Backend    string // "bash" (default), "docker", "kubernetes"
	Asserts    []ShellAssertion

	// Timeout, if positive, bounds a single run of Command. The engine
	// itself enforces no per-unit timeouts (spec.md Non-goal); Perform
	// derives its own child context via context.WithTimeout, the same
	// way any other user-supplied Unit would if it wanted one.
	Timeout time.Duration
}

// NewShellUnit constructs a ShellUnit. id may be empty (random id
// assigned); tag defaults to "default"; backend defaults to "bash".
func NewShellUnit(id, tag string, prerequisites []Unit, command string, args ...string) *ShellUnit {
	return &ShellUnit{
		BaseUnit: NewBaseUnit(id, tag, prerequisites),
		Command:  command,
		Args:     args,
		Backend:  "bash",
	}
}

// AddAssertion registers an assertion run after the command completes.
func (u *ShellUnit) AddAssertion(a ShellAssertion) *ShellUnit {
	u.Asserts = append(u.Asserts, a)
	return u
}

// Perform runs the configured command through its backend and then
// every registered assertion in order, returning the first assertion
// failure (or the backend's own error) as the unit's failure.
func (u *ShellUnit) Perform(ctx context.Context) (any, error) {
	backend := GetShellBackend(u.Backend)
	if backend == nil {
		return nil, fmt.Errorf("unknown shell backend %q", u.Backend)
	}
	if u.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.Timeout)
		defer cancel()
	}
	out, err := backend.Run(ctx, u)
	if err != nil {
		return nil, err
	}
	for _, assert := range u.Asserts {
		if err := assert(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ShellBackend executes a ShellUnit's command in some environment
// (local shell, a container, a Kubernetes pod). Implement this
// interface and call RegisterShellBackend to add a new one, the same
// extension pattern as the teacher's Backend interface (backend.go).
type ShellBackend interface {
	Run(ctx context.Context, u *ShellUnit) (Output, error)
	Name() string
}

var shellBackendRegistry = map[string]ShellBackend{}

func init() {
	RegisterShellBackend(&BashBackend{})
	RegisterShellBackend(&DockerBackend{})
	RegisterShellBackend(&KubernetesBackend{})
}

// RegisterShellBackend registers a backend plugin by its Name().
func RegisterShellBackend(b ShellBackend) {
	shellBackendRegistry[b.Name()] = b
}

// GetShellBackend retrieves a backend by name, or nil if unregistered.
func GetShellBackend(name string) ShellBackend {
	return shellBackendRegistry[name]
}

// BashBackend runs a ShellUnit's command as a local subprocess. It is
// the default backend.
type BashBackend struct{}

func (b *BashBackend) Name() string { return "bash" }

func (b *BashBackend) Run(ctx context.Context, u *ShellUnit) (Output, error) {
	cmd := exec.CommandContext(ctx, u.Command, u.Args...)
	cmd.Env = mergeEnv(u.Env)
	if u.WorkingDir != "" {
		cmd.Dir = u.WorkingDir
	}

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	out := Output{Output: buf.String(), ExitCode: GetExitCode(err)}
	if err != nil {
		out.Error = err.Error()
		if ctx.Err() == context.DeadlineExceeded {
			return out, fmt.Errorf("command %s timed out", u.Command)
		}
		return out, fmt.Errorf("command %s failed: %w", u.Command, err)
	}
	return out, nil
}

func mergeEnv(extra map[string]string) []string {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	for k, v := range extra {
		env[k] = v
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// DockerBackend runs a ShellUnit's command inside a container,
// requiring Image to be set (mirrors the teacher's DockerBackend).
type DockerBackend struct{}

func (d *DockerBackend) Name() string { return "docker" }

func (d *DockerBackend) Run(ctx context.Context, u *ShellUnit) (Output, error) {
	if u.Image == "" {
		return Output{}, fmt.Errorf("docker backend requires ShellUnit.Image to be set")
	}
	args := []string{"run", "--rm"}
	if u.WorkingDir != "" {
		args = append(args, "-w", u.WorkingDir)
	}
	for k, v := range u.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, u.Image, u.Command)
	args = append(args, u.Args...)

	cmd := exec.CommandContext(ctx, "docker", args...)
	output, err := cmd.CombinedOutput()
	out := Output{Output: string(output)}
	if err != nil {
		out.Error = err.Error()
		out.ExitCode = GetExitCode(err)
		return out, fmt.Errorf("docker run failed: %w", err)
	}
	return out, nil
}

// KubernetesBackend runs a ShellUnit's command in a throwaway pod via
// kubectl, requiring Image to be set (mirrors the teacher's
// KubernetesBackend).
type KubernetesBackend struct{}

func (k *KubernetesBackend) Name() string { return "kubernetes" }

func (k *KubernetesBackend) Run(ctx context.Context, u *ShellUnit) (Output, error) {
	if u.Image == "" {
		return Output{}, fmt.Errorf("kubernetes backend requires ShellUnit.Image to be set")
	}
	cmdStr := u.Command
	if len(u.Args) > 0 {
		cmdStr += " " + strings.Join(u.Args, " ")
	}
	podName := fmt.Sprintf("taskgraph-%s-%d", strings.ToLower(u.ID()), os.Getpid())
	args := []string{
		"run", podName,
		"--image", u.Image,
		"--restart", "Never",
		"--rm",
		"--attach",
		"--command", "--",
		"sh", "-c", cmdStr,
	}
	cmd := exec.CommandContext(ctx, "kubectl", args...)
	output, err := cmd.CombinedOutput()
	out := Output{Output: string(output)}
	if err != nil {
		out.Error = err.Error()
		out.ExitCode = GetExitCode(err)
		return out, fmt.Errorf("kubectl run failed: %w", err)
	}
	return out, nil
}
