package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

var (
	testBinary     string
	testBinaryOnce sync.Once
	testBinaryErr  error
)

// buildTestBinary builds the recruitops binary once for all tests
func buildTestBinary(t *testing.T) string {
	t.Helper()
	testBinaryOnce.Do(func() {
		tmpBinary := filepath.Join(os.TempDir(), "recruitops-test")
		cmd := exec.Command("go", "build", "-ldflags", "-X main.Version=9.9.9", "-o", tmpBinary, ".")
		if out, err := cmd.CombinedOutput(); err != nil {
			testBinaryErr = err
			testBinary = string(out)
			return
		}
		testBinary = tmpBinary
	})
	if testBinaryErr != nil {
		t.Fatalf("failed to build test binary: %v\n%s", testBinaryErr, testBinary)
	}
	return testBinary
}

func TestVersionCommand(t *testing.T) {
	output, err := exec.Command(buildTestBinary(t), "version", "--no-color").CombinedOutput()
	if err != nil {
		t.Fatalf("version command failed: %v\nOutput: %s", err, output)
	}
	for _, exp := range []string{"recruitops version: 9.9.9", "Git commit:", "Build date:", "Go version:"} {
		if !strings.Contains(string(output), exp) {
			t.Errorf("expected output to contain %q, got:\n%s", exp, output)
		}
	}
}

func TestUnknownCommandFails(t *testing.T) {
	output, err := exec.Command(buildTestBinary(t), "sync", "benhc", "--no-color").CombinedOutput()
	if err == nil {
		t.Fatalf("expected sync of an unknown target to fail, got:\n%s", output)
	}
	if !strings.Contains(string(output), "Did you mean: bench?") {
		t.Errorf("expected a suggestion, got:\n%s", output)
	}
}

func TestSizeCommand(t *testing.T) {
	output, err := exec.Command(buildTestBinary(t), "size", "850k", "--no-color").CombinedOutput()
	if err != nil {
		t.Fatalf("size command failed: %v\nOutput: %s", err, output)
	}
	if !strings.Contains(string(output), "$850,000") {
		t.Errorf("expected the parsed amount, got:\n%s", output)
	}
}
