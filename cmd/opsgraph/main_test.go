package main

import (
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunDispatch(t *testing.T) {
	if code := run([]string{"opsgraph"}); code != exitOK {
		t.Fatalf("run without args: expected %d got %d", exitOK, code)
	}
	if code := run([]string{"opsgraph", "version"}); code != exitOK {
		t.Fatalf("run version: expected %d got %d", exitOK, code)
	}
	if code := run([]string{"opsgraph", "unknown"}); code != exitInvalidInput {
		t.Fatalf("run unknown: expected %d got %d", exitInvalidInput, code)
	}
	if code := run([]string{"opsgraph", "node"}); code != exitInvalidInput {
		t.Fatalf("run node without subcommand: expected %d got %d", exitInvalidInput, code)
	}
	if code := run([]string{"opsgraph", "node", "rename"}); code != exitInvalidInput {
		t.Fatalf("run unknown node subcommand: expected %d got %d", exitInvalidInput, code)
	}
	for _, arguments := range [][]string{
		{"opsgraph", "node", "add", "--help"},
		{"opsgraph", "edge", "add", "--help"},
		{"opsgraph", "status", "set", "--help"},
		{"opsgraph", "project", "graph", "--help"},
		{"opsgraph", "user", "add", "--help"},
		{"opsgraph", "logs", "--help"},
		{"opsgraph", "logs", "verify", "--help"},
		{"opsgraph", "import", "--help"},
		{"opsgraph", "graph", "--help"},
		{"opsgraph", "node", "--help"},
		{"opsgraph", "--explain"},
		{"opsgraph", "edge", "add", "--explain"},
	} {
		if code := run(arguments); code != exitOK {
			t.Fatalf("run %v: expected %d got %d", arguments[1:], exitOK, code)
		}
	}
}

func TestMainEntrypoint(t *testing.T) {
	if os.Getenv("OPSGRAPH_TEST_MAIN") == "1" {
		os.Args = []string{"opsgraph", "version"}
		main()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestMainEntrypoint")
	cmd.Env = append(os.Environ(), "OPSGRAPH_TEST_MAIN=1")
	if err := cmd.Run(); err != nil {
		t.Fatalf("run child process: %v", err)
	}
}

func TestReorderInterspersedFlags(t *testing.T) {
	reordered := reorderInterspersedFlags(
		[]string{"web", "--label", "Web tier", "--json", "--data={}", "--", "--literal"},
		map[string]bool{"label": true, "json": false, "data": true},
	)
	want := "--label|Web tier|--json|--data={}|web|--literal"
	if strings.Join(reordered, "|") != want {
		t.Fatalf("unexpected order: %v", reordered)
	}
	if got := splitList(" a, ,b ,"); strings.Join(got, ",") != "a,b" {
		t.Fatalf("unexpected split: %v", got)
	}
}

func TestMarshalOutputWithErrorEnvelopeDefaults(t *testing.T) {
	encoded, err := marshalOutputWithErrorEnvelope(commandOutput{OK: false, Command: "node get", Error: "boom"}, exitNotFound)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if decoded["error_code"] != "not_found" || decoded["error_category"] != "not_found" || decoded["retryable"] != false {
		t.Fatalf("unexpected envelope: %v", decoded)
	}
	if decoded["hint"] == "" {
		t.Fatalf("expected default hint")
	}
}

type cliResult struct {
	OK            bool            `json:"ok"`
	Command       string          `json:"command"`
	Result        json.RawMessage `json:"result"`
	Error         string          `json:"error"`
	ErrorCode     string          `json:"error_code"`
	ErrorCategory string          `json:"error_category"`
}

// runJSON runs one CLI invocation against dbPath with --json and decodes the
// output envelope.
func runJSON(t *testing.T, dbPath string, expectedCode int, arguments ...string) cliResult {
	t.Helper()
	full := append([]string{"opsgraph"}, arguments...)
	full = append(full, "--db", dbPath, "--json")
	var code int
	raw := captureStdout(t, func() {
		code = run(full)
	})
	if code != expectedCode {
		t.Fatalf("run %v: expected exit %d got %d (output %s)", arguments, expectedCode, code, raw)
	}
	var result cliResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &result); err != nil {
		t.Fatalf("decode output of %v: %v (%s)", arguments, err, raw)
	}
	return result
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	original := os.Stdout
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdout = writer
	defer func() {
		os.Stdout = original
	}()

	type readResult struct {
		raw []byte
		err error
	}
	resultCh := make(chan readResult, 1)
	go func() {
		raw, readErr := io.ReadAll(reader)
		resultCh <- readResult{raw: raw, err: readErr}
	}()

	fn()

	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	result := <-resultCh
	if result.err != nil {
		t.Fatalf("read stdout: %v", result.err)
	}
	if err := reader.Close(); err != nil {
		t.Fatalf("close reader: %v", err)
	}
	return string(result.raw)
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "state", "graph.db")
}
