package taskgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssertExitCode(t *testing.T) {
	a := AssertExitCode(0)
	assert.NoError(t, a(Output{ExitCode: 0}))
	assert.Error(t, a(Output{ExitCode: 1}))
}

func TestAssertOutputEquals(t *testing.T) {
	a := AssertOutputEquals("hello\n")
	assert.NoError(t, a(Output{Output: "hello\n"}))
	assert.Error(t, a(Output{Output: "goodbye\n"}))
}

func TestAssertOutputContains(t *testing.T) {
	a := AssertOutputContains("PASS", "ok")
	assert.NoError(t, a(Output{Output: "tests ok, 3 PASS"}))
	assert.Error(t, a(Output{Output: "FAIL"}))
}

func TestAssertOutputMatches(t *testing.T) {
	a := AssertOutputMatches(`^\d+ examples?, 0 failures`)
	assert.NoError(t, a(Output{Output: "3 examples, 0 failures"}))
	assert.Error(t, a(Output{Output: "3 examples, 1 failure"}))
}

func TestAssertOutputMatches_InvalidPattern(t *testing.T) {
	a := AssertOutputMatches(`(`)
	err := a(Output{Output: "anything"})
	assert.ErrorContains(t, err, "invalid regexp pattern")
}

func TestAssertOutputJSON_Equal(t *testing.T) {
	a := AssertOutputJSON(`{"status":"ok","count":3}`)
	assert.NoError(t, a(Output{Output: `{"status":"ok","count":3}`}))
}

func TestAssertOutputJSON_Mismatch(t *testing.T) {
	a := AssertOutputJSON(`{"status":"ok"}`)
	err := a(Output{Output: `{"status":"failed"}`})
	assert.Error(t, err)
}

func TestAssertOutputJSON_SkipNodes(t *testing.T) {
	a := AssertOutputJSON(`{"status":"ok","timestamp":"ignored"}`, "timestamp")
	err := a(Output{Output: `{"status":"ok","timestamp":"2026-07-30T00:00:00Z"}`})
	assert.NoError(t, err)
}

func TestAssertOutputJSON_InvalidExpected(t *testing.T) {
	a := AssertOutputJSON(`not json`)
	err := a(Output{Output: `{}`})
	assert.ErrorContains(t, err, "failed to read expected JSON")
}

func TestAssertOutputJSON_InvalidActual(t *testing.T) {
	a := AssertOutputJSON(`{}`)
	err := a(Output{Output: `not json`})
	assert.ErrorContains(t, err, "failed to parse actual output as JSON")
}
