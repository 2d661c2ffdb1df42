package gateways

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ochairo/frontpack/internal/domain/entities"
	"github.com/ochairo/frontpack/internal/domain/interfaces"
)

// deadProxy is an address nothing listens on; any request through it fails fast
const deadProxy = "http://127.0.0.1:9"

// InstallCommand installs strictly from the normalized lockfile without network or lifecycle scripts
const InstallCommand = "npm ci --offline --ignore-scripts --no-audit --no-fund"

// NpmPackageManager drives npm through the script executor
type NpmPackageManager struct {
	executor *ScriptExecutor
	nodePath string
	timeout  time.Duration
	logger   interfaces.Logger
}

// NewNpmPackageManager creates an npm adapter. nodePath is the directory holding bin/node
// and bin/npm; when empty the tools are taken from PATH.
func NewNpmPackageManager(executor *ScriptExecutor, nodePath string, timeout time.Duration, logger interfaces.Logger) *NpmPackageManager {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &NpmPackageManager{
		executor: executor,
		nodePath: nodePath,
		timeout:  timeout,
		logger:   logger,
	}
}

// HermeticEnv returns the variables that cut npm off from the network.
// They are applied after the caller's env so they cannot be overridden.
func HermeticEnv(workDir string) map[string]string {
	return map[string]string{
		"HOME":                       filepath.Join(workDir, ".frontpack-home"),
		"npm_config_cache":           filepath.Join(workDir, ".frontpack-npm-cache"),
		"npm_config_offline":         "true",
		"npm_config_registry":        deadProxy + "/",
		"npm_config_proxy":           deadProxy,
		"npm_config_https_proxy":     deadProxy,
		"npm_config_audit":           "false",
		"npm_config_fund":            "false",
		"npm_config_update_notifier": "false",
		"HTTP_PROXY":                 deadProxy,
		"HTTPS_PROXY":                deadProxy,
		"http_proxy":                 deadProxy,
		"https_proxy":                deadProxy,
		"NO_PROXY":                   "",
		"no_proxy":                   "",
		"NEXT_TELEMETRY_DISABLED":    "1",
		"CI":                         "1",
	}
}

// Install runs npm ci against the offline cache
func (m *NpmPackageManager) Install(ctx context.Context, workDir string, env map[string]string) error {
	m.logger.Info("installing dependencies offline", interfaces.F("dir", workDir))

	result := m.executor.ExecuteScript(ctx, ExecuteScriptConfig{
		Script:      InstallCommand,
		WorkingDir:  workDir,
		BaseEnv:     m.baseEnv(),
		Env:         mergeEnv(env, HermeticEnv(workDir)),
		Timeout:     m.timeout,
		Description: "npm ci (offline)",
	})
	if !result.Success {
		return &entities.BuildError{Step: "npm ci", ExitCode: result.ExitCode, Stderr: result.Stderr, Err: result.Error}
	}
	return nil
}

// Build runs the project build command. A failure is returned as *entities.BuildError
// carrying the tool's stderr verbatim.
func (m *NpmPackageManager) Build(ctx context.Context, workDir, command string, env map[string]string) (*entities.BuildOutput, error) {
	if err := m.executor.ValidateScript(command); err != nil {
		return nil, fmt.Errorf("invalid build command: %w", err)
	}
	m.logger.Info("running build", interfaces.F("command", command))

	result := m.executor.ExecuteScript(ctx, ExecuteScriptConfig{
		Script:      command,
		WorkingDir:  workDir,
		BaseEnv:     m.baseEnv(),
		Env:         mergeEnv(env, HermeticEnv(workDir)),
		Timeout:     m.timeout,
		Description: command,
	})
	if !result.Success {
		return nil, &entities.BuildError{Step: command, ExitCode: result.ExitCode, Stderr: result.Stderr, Err: result.Error}
	}

	return &entities.BuildOutput{
		WorkDir:  workDir,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
		Duration: result.Duration,
	}, nil
}

// Dev starts the live-reloading development server in the source tree itself.
// It is not hermetic: dependencies are installed from the registry when node_modules is absent.
func (m *NpmPackageManager) Dev(ctx context.Context, sourceDir string, env map[string]string, stdout, stderr io.Writer) error {
	if _, err := os.Stat(filepath.Join(sourceDir, "node_modules")); os.IsNotExist(err) {
		m.logger.Info("node_modules missing, running npm install", interfaces.F("dir", sourceDir))
		result := m.executor.ExecuteScript(ctx, ExecuteScriptConfig{
			Script:      "npm install",
			WorkingDir:  sourceDir,
			Env:         env,
			Timeout:     m.timeout,
			Description: "npm install",
			Stdout:      stdout,
			Stderr:      stderr,
		})
		if !result.Success {
			return &entities.BuildError{Step: "npm install", ExitCode: result.ExitCode, Stderr: result.Stderr, Err: result.Error}
		}
	}

	result := m.executor.ExecuteScript(ctx, ExecuteScriptConfig{
		Script:     "npm run dev",
		WorkingDir: sourceDir,
		Env:        env,
		// The dev server runs until interrupted.
		Timeout: 24 * time.Hour,
		Stdout:  stdout,
		Stderr:  stderr,
	})
	if !result.Success && ctx.Err() == nil {
		return fmt.Errorf("dev server exited with code %d: %w", result.ExitCode, result.Error)
	}
	return nil
}

// baseEnv keeps only what locates the toolchain; nothing else leaks in from the caller
func (m *NpmPackageManager) baseEnv() []string {
	path := os.Getenv("PATH")
	if m.nodePath != "" {
		path = filepath.Join(m.nodePath, "bin") + string(os.PathListSeparator) + path
	}
	env := []string{"PATH=" + path, "LANG=C.UTF-8", "TZ=UTC", "SOURCE_DATE_EPOCH=1"}
	for _, key := range []string{"SSL_CERT_FILE", "TMPDIR"} {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	return env
}

// mergeEnv layers maps left to right; later maps win
func mergeEnv(layers ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// envList renders an environment map as sorted KEY=VALUE pairs
func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
