package gateways

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/ochairo/frontpack/internal/domain/entities"
	"github.com/ochairo/frontpack/internal/domain/interfaces"
	"github.com/ochairo/frontpack/internal/external-adapters/npm"
)

// maxSmokeOutput bounds how much launcher output a report keeps
const maxSmokeOutput = 16 << 10

// SmokeTester launches an artifact under a hard deadline
type SmokeTester struct {
	timeout      time.Duration
	pollInterval time.Duration
	outputDir    string // Build output inspected for size, relative to the artifact root
	httpClient   *http.Client
	logger       interfaces.Logger
}

// DefaultSmokeTimeout is how long a launcher runs when no timeout is configured
const DefaultSmokeTimeout = 10 * time.Second

// NewSmokeTester creates a smoke tester that stops the launcher after timeout
func NewSmokeTester(timeout time.Duration, logger interfaces.Logger) *SmokeTester {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	if timeout <= 0 {
		timeout = DefaultSmokeTimeout
	}
	return &SmokeTester{
		timeout:      timeout,
		pollInterval: 250 * time.Millisecond,
		outputDir:    ".next",
		httpClient:   &http.Client{Timeout: time.Second},
		logger:       logger,
	}
}

// SmokeTest checks package metadata and build output size, then runs the launcher until
// the deadline. Still running at the deadline is success; exiting non-zero before it is a crash.
func (s *SmokeTester) SmokeTest(ctx context.Context, artifact *entities.Artifact) (*entities.SmokeReport, error) {
	report := &entities.SmokeReport{}

	manifest, err := npm.ReadManifest(artifact.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entities.ErrSmokeTestFailed, err)
	}
	if manifest.Name == "" {
		return nil, fmt.Errorf("%w: package.json has no name", entities.ErrSmokeTestFailed)
	}
	report.PackageName = manifest.Name
	report.PackageVersion = manifest.Version

	size, err := treeSize(filepath.Join(artifact.Root, s.outputDir))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entities.ErrSmokeTestFailed, err)
	}
	if size == 0 {
		return nil, fmt.Errorf("%w: build output %s is empty", entities.ErrSmokeTestFailed, s.outputDir)
	}
	report.OutputSize = size

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	//nolint:gosec // G204: the launcher is the artifact's own entry script
	cmd := exec.CommandContext(runCtx, artifact.Launcher)
	setProcessGroup(cmd)
	cmd.Env = append(os.Environ(), "PORT="+strconv.Itoa(artifact.Port), "NODE_ENV=production")
	var output boundedBuffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start launcher: %w", entities.ErrSmokeTestFailed, err)
	}
	s.logger.Info("smoke test started", interfaces.F("launcher", artifact.Launcher), interfaces.F("timeout", s.timeout.String()))

	serving := make(chan struct{})
	go s.pollServing(runCtx, artifact.Port, serving)

	waitErr := cmd.Wait()
	report.Duration = time.Since(start)
	report.Output = output.String()
	select {
	case <-serving:
		report.Serving = true
	default:
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if runCtx.Err() == context.DeadlineExceeded {
		report.TimedOut = true
		report.ExitCode = -1
		s.logger.Info("smoke test deadline reached", interfaces.F("serving", report.Serving))
		return report, nil
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			report.ExitCode = exitErr.ExitCode()
		} else {
			report.ExitCode = -1
		}
		return report, fmt.Errorf("%w: launcher exited with code %d after %v\n%s",
			entities.ErrSmokeTestFailed, report.ExitCode, report.Duration.Round(time.Millisecond), report.Output)
	}
	return report, nil
}

// pollServing closes serving once the port answers any HTTP response
func (s *SmokeTester) pollServing(ctx context.Context, port int, serving chan<- struct{}) {
	url := fmt.Sprintf("http://127.0.0.1:%d/", port)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return
			}
			resp, err := s.httpClient.Do(req)
			if err != nil {
				continue
			}
			_ = resp.Body.Close()
			close(serving)
			return
		}
	}
}

func treeSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to measure %s: %w", root, err)
	}
	return total, nil
}

// boundedBuffer keeps the first maxSmokeOutput bytes written to it
type boundedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := maxSmokeOutput - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
