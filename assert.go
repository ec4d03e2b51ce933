package taskgraph

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	jd "github.com/josephburnett/jd/lib"
)

// AssertExitCode fails unless the command's exit code equals code.
// Mirrors the teacher's AssertByExitCode (assert.go).
func AssertExitCode(code int) ShellAssertion {
	return func(out Output) error {
		if out.ExitCode != code {
			return fmt.Errorf("exit code mismatch: expected %d, got %d", code, out.ExitCode)
		}
		return nil
	}
}

// AssertOutputEquals fails unless the command's combined output equals
// expected exactly. Mirrors the teacher's AssertByOutputString.
func AssertOutputEquals(expected string) ShellAssertion {
	return func(out Output) error {
		if out.Output != expected {
			return fmt.Errorf("output mismatch: expected %q, got %q", expected, out.Output)
		}
		return nil
	}
}

// AssertOutputContains fails unless every substring in want appears in
// the command's output. Mirrors the teacher's AssertByContains.
func AssertOutputContains(want ...string) ShellAssertion {
	return func(out Output) error {
		for _, w := range want {
			if !strings.Contains(out.Output, w) {
				return fmt.Errorf("output does not contain expected substring: %q", w)
			}
		}
		return nil
	}
}

// AssertOutputMatches fails unless the output matches every given
// regular expression. Mirrors the teacher's AssertByRegexp.
func AssertOutputMatches(patterns ...string) ShellAssertion {
	return func(out Output) error {
		for _, pattern := range patterns {
			matched, err := regexp.MatchString(pattern, out.Output)
			if err != nil {
				return fmt.Errorf("invalid regexp pattern %q: %w", pattern, err)
			}
			if !matched {
				return fmt.Errorf("output does not match pattern: %q", pattern)
			}
		}
		return nil
	}
}

// AssertOutputJSON fails unless the command's output, parsed as JSON,
// diffs equal to expectedJSON, ignoring any path whose final node name
// appears in skipNodes. Mirrors the teacher's AssertByOutputJson
// (assert.go), which uses github.com/josephburnett/jd for a structural
// diff rather than a byte-for-byte string comparison.
func AssertOutputJSON(expectedJSON string, skipNodes ...string) ShellAssertion {
	return func(out Output) error {
		expectation, err := jd.ReadJsonString(expectedJSON)
		if err != nil {
			return errors.New("failed to read expected JSON: " + err.Error())
		}
		actual, err := jd.ReadJsonString(strings.ReplaceAll(out.Output, "\\r\\n", "\\n"))
		if err != nil {
			return errors.New("failed to parse actual output as JSON: " + err.Error())
		}

		diff := expectation.Diff(actual)
		if len(diff) == 0 {
			return nil
		}
		for _, d := range diff {
			path := d.Path[len(d.Path)-1]
			name := path.Json()
			if unquoted, err := strconv.Unquote(name); err == nil {
				name = unquoted
			}
			skipped := false
			for _, skip := range skipNodes {
				if name == skip {
					skipped = true
					break
				}
			}
			if !skipped {
				return fmt.Errorf("mismatch at path %v: expected %v, got %v", d.Path, d.OldValues, d.NewValues)
			}
		}
		return nil
	}
}
