package taskgraph

import "os/exec"

// GetExitCode extracts the exit code from an error that may be an
// *exec.ExitError. Returns 0 if err is nil, the real exit code if err
// is an *exec.ExitError, or -1 for any other error type. Mirrors the
// teacher's unexported getExitCode (helper.go), exported here since
// custom ShellBackend implementations outside this package need it
// too.
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
