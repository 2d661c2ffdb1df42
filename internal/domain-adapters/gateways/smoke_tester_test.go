package gateways

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ochairo/frontpack/internal/domain/entities"
)

func smokeArtifact(t *testing.T, launcher string, port int) *entities.Artifact {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"package.json":   `{"name":"shop","version":"1.0.0"}`,
		".next/BUILD_ID": "abc",
		"bin/shop":       "#!/bin/sh\n" + launcher + "\n",
	}
	for name, content := range files {
		p := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		//nolint:gosec // G306: launcher must be executable
		if err := os.WriteFile(p, []byte(content), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return &entities.Artifact{Name: "shop", Root: root, Launcher: filepath.Join(root, "bin", "shop"), Port: port}
}

func TestSmokeTester_TimeoutIsSuccess(t *testing.T) {
	artifact := smokeArtifact(t, "sleep 30", 39999)
	start := time.Now()

	report, err := NewSmokeTester(500*time.Millisecond, nil).SmokeTest(context.Background(), artifact)
	if err != nil {
		t.Fatalf("SmokeTest() error = %v", err)
	}
	if !report.TimedOut {
		t.Error("TimedOut = false, want true")
	}
	if report.PackageName != "shop" || report.PackageVersion != "1.0.0" {
		t.Errorf("package = %s@%s", report.PackageName, report.PackageVersion)
	}
	if report.OutputSize != 3 {
		t.Errorf("OutputSize = %d, want 3", report.OutputSize)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("launcher not terminated at deadline, took %v", elapsed)
	}
}

func TestSmokeTester_Crash(t *testing.T) {
	artifact := smokeArtifact(t, "echo 'Error: Cannot find module next' >&2; exit 3", 39998)

	report, err := NewSmokeTester(10*time.Second, nil).SmokeTest(context.Background(), artifact)
	if !errors.Is(err, entities.ErrSmokeTestFailed) {
		t.Fatalf("SmokeTest() error = %v, want ErrSmokeTestFailed", err)
	}
	if report == nil || report.ExitCode != 3 {
		t.Fatalf("report = %+v, want exit code 3", report)
	}
	if report.Output != "Error: Cannot find module next\n" {
		t.Errorf("Output = %q", report.Output)
	}
}

func TestSmokeTester_CleanExit(t *testing.T) {
	report, err := NewSmokeTester(10*time.Second, nil).SmokeTest(context.Background(), smokeArtifact(t, "exit 0", 39997))
	if err != nil {
		t.Fatalf("SmokeTest() error = %v", err)
	}
	if report.TimedOut || report.ExitCode != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestSmokeTester_Serving(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	_, portStr, err := net.SplitHostPort(server.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)

	tester := NewSmokeTester(time.Second, nil)
	tester.pollInterval = 50 * time.Millisecond
	report, err := tester.SmokeTest(context.Background(), smokeArtifact(t, "sleep 30", port))
	if err != nil {
		t.Fatalf("SmokeTest() error = %v", err)
	}
	if !report.Serving {
		t.Error("Serving = false, want true")
	}
}

func TestSmokeTester_SanityChecks(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(root string) error
	}{
		{"missing package.json", func(root string) error { return os.Remove(filepath.Join(root, "package.json")) }},
		{"unnamed package", func(root string) error {
			return os.WriteFile(filepath.Join(root, "package.json"), []byte(`{"version":"1.0.0"}`), 0o644)
		}},
		{"empty build output", func(root string) error {
			return os.WriteFile(filepath.Join(root, ".next", "BUILD_ID"), nil, 0o644)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artifact := smokeArtifact(t, "sleep 30", 39996)
			if err := tt.mutate(artifact.Root); err != nil {
				t.Fatal(err)
			}
			_, err := NewSmokeTester(time.Second, nil).SmokeTest(context.Background(), artifact)
			if !errors.Is(err, entities.ErrSmokeTestFailed) {
				t.Errorf("SmokeTest() error = %v, want ErrSmokeTestFailed", err)
			}
		})
	}
}
