/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/fulmenhq/codescore/pkg/logger"
)

// ErrToolNotFound is returned when the requested binary is not installed.
var ErrToolNotFound = errors.New("tool not found")

// ExecuteOptions configures tool execution
type ExecuteOptions struct {
	// Tool name or path (e.g., "semgrep")
	Tool string

	// Args to pass to the tool
	Args []string

	// WorkDir is the working directory (defaults to current directory)
	WorkDir string

	// Stdin to pipe to the tool (optional)
	Stdin io.Reader

	// Env contains additional environment variables
	Env map[string]string
}

// ExecuteResult contains the output of tool execution
type ExecuteResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Executor runs external tools. Execute must stop the process when ctx
// is cancelled.
type Executor interface {
	Execute(ctx context.Context, opts ExecuteOptions) (*ExecuteResult, error)
	IsAvailable(tool string) bool
}

// LocalExecutor runs tools installed on the local system
type LocalExecutor struct {
	extraDirs []string
}

// NewLocalExecutor creates a LocalExecutor that also searches common
// user-level install directories.
func NewLocalExecutor() *LocalExecutor {
	return &LocalExecutor{extraDirs: userBinDirectories()}
}

// IsAvailable checks if the tool is available locally
func (e *LocalExecutor) IsAvailable(tool string) bool {
	return e.FindToolPath(tool) != ""
}

// Execute runs the tool. A non-zero exit status is reported through
// ExecuteResult.ExitCode, not as an error.
func (e *LocalExecutor) Execute(ctx context.Context, opts ExecuteOptions) (*ExecuteResult, error) {
	toolPath := e.FindToolPath(opts.Tool)
	if toolPath == "" {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, opts.Tool)
	}

	// #nosec G204 - toolPath is resolved via FindToolPath
	cmd := exec.CommandContext(ctx, toolPath, opts.Args...)
	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}
	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}
	cmd.Env = os.Environ()
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &ExecuteResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s interrupted: %w", opts.Tool, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("failed to execute %s: %w", opts.Tool, err)
	}
	return result, nil
}

// FindToolPath resolves a tool via PATH and then the user bin directories.
func (e *LocalExecutor) FindToolPath(toolName string) string {
	if toolName == "" {
		return ""
	}
	if path, err := exec.LookPath(toolName); err == nil {
		return path
	}
	if filepath.Base(toolName) != toolName {
		return ""
	}
	for _, dir := range e.extraDirs {
		candidate := filepath.Join(dir, toolName)
		if runtime.GOOS == "windows" && filepath.Ext(candidate) != ".exe" {
			candidate += ".exe"
		}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			logger.Debug("Found tool outside PATH", logger.String("tool", toolName), logger.String("path", candidate))
			return candidate
		}
	}
	return ""
}

// userBinDirectories returns install locations of pip, pipx and go install.
func userBinDirectories() []string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	goBin := os.Getenv("GOBIN")
	if goBin == "" {
		goBin = filepath.Join(homeDir, "go", "bin")
	}
	candidates := []string{
		filepath.Join(homeDir, ".local", "bin"),
		goBin,
		filepath.Join(homeDir, ".local", "share", "mise", "shims"),
	}
	var dirs []string
	for _, d := range candidates {
		if info, err := os.Stat(d); err == nil && info.IsDir() {
			dirs = append(dirs, d)
		}
	}
	return dirs
}
