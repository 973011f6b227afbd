// Package subprocess implements executor.Executor by spawning the language's
// interpreter as a child process inside a single-use workspace directory.
//
// Isolation model — stated plainly so nobody assumes more than is there:
// this runner provides workspace scoping, a wall-clock deadline, and output
// caps. It does NOT provide OS-level sandboxing (no namespaces, seccomp, or
// chroot). Code runs with the server's own user and filesystem view. Callers
// that need real containment should use the docker executor instead.
//
// Lifecycle of one call, always in this order:
//
//	validate language → create workspace → write source file →
//	spawn → await exit or deadline → capture output → remove workspace
//
// The workspace is removed on every exit path via defer — success, non-zero
// exit, timeout, spawn failure, setup failure. Cleanup errors are logged and
// never affect the reported result.
package subprocess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/xid"

	"github.com/tahmid/codebench/internal/executor"
)

// Compile-time check that *Runner satisfies the executor interface.
var _ executor.Executor = (*Runner)(nil)

// Runner executes snippets as host subprocesses. It is stateless apart from
// its config and safe for concurrent use: every call gets its own workspace
// and its own process, so no locking is needed.
type Runner struct {
	config Config
	logger *slog.Logger
}

// New creates a Runner and ensures the workspace root exists.
//
// This is the one place where a filesystem failure is returned as a Go error
// rather than inside a Result: if we cannot create the root directory at all,
// no execution will ever work, and the caller should treat it as fatal.
func New(cfg Config, logger *slog.Logger) (*Runner, error) {
	if cfg.Root == "" || cfg.Timeout <= 0 || cfg.MaxOutputBytes <= 0 {
		return nil, fmt.Errorf("subprocess: invalid config: root=%q timeout=%s maxOutput=%d",
			cfg.Root, cfg.Timeout, cfg.MaxOutputBytes)
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = DefaultConfig().KillGrace
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("subprocess: creating workspace root: %w", err)
	}
	return &Runner{config: cfg, logger: logger}, nil
}

// Execute runs one snippet to completion or forced termination.
//
// Expected outcomes (bad language, missing interpreter, timeout, non-zero
// exit) are reported inside the Result with a nil error. The error return is
// used only when the caller's context is cancelled mid-run.
func (r *Runner) Execute(ctx context.Context, req executor.Request) (*executor.Result, error) {
	start := time.Now()

	// Language check comes first: an unsupported language must have no side
	// effects at all — no directory, no file, no process.
	interp, ok := executor.Lookup(req.Language)
	if !ok {
		return &executor.Result{
			FailureKind: executor.FailureUnsupportedLanguage,
			Diagnostic:  fmt.Sprintf("unsupported language %q", req.Language),
			Duration:    time.Since(start),
		}, nil
	}

	// Resolve the interpreter before touching the filesystem. LookPath up
	// front turns "node is not installed" into a precise diagnostic instead
	// of a generic exec error after we already built a workspace.
	binary, err := exec.LookPath(interp.Binary)
	if err != nil {
		return &executor.Result{
			FailureKind: executor.FailureSpawn,
			Diagnostic:  fmt.Sprintf("%s runtime not found: %v", interp.DisplayName, err),
			Duration:    time.Since(start),
		}, nil
	}

	// Workspace: unique per call, never reused. xid gives collision-resistant
	// sortable names, so concurrent executions under the same caller cannot
	// collide without any shared counter.
	workspace, err := r.createWorkspace(req.CallerID)
	if err != nil {
		return &executor.Result{
			FailureKind: executor.FailureInternal,
			Diagnostic:  fmt.Sprintf("creating workspace: %v", err),
			Duration:    time.Since(start),
		}, nil
	}
	defer r.removeWorkspace(workspace)

	filename := sanitizeFilename(req.Filename, interp)
	sourcePath := filepath.Join(workspace, filename)

	// The source is written byte-for-byte. No trimming, no encoding fixes,
	// no newline translation — any rewrite here would silently change what
	// the program means.
	if err := os.WriteFile(sourcePath, []byte(req.Source), 0o644); err != nil {
		return &executor.Result{
			FailureKind: executor.FailureInternal,
			Diagnostic:  fmt.Sprintf("writing source file: %v", err),
			Duration:    time.Since(start),
		}, nil
	}

	if interp.MarkExecutable {
		if err := os.Chmod(sourcePath, 0o755); err != nil {
			return &executor.Result{
				FailureKind: executor.FailureInternal,
				Diagnostic:  fmt.Sprintf("marking source executable: %v", err),
				Duration:    time.Since(start),
			}, nil
		}
	}

	stdout := newCappedBuffer(r.config.MaxOutputBytes)
	stderr := newCappedBuffer(r.config.MaxOutputBytes)

	cmd := exec.Command(binary, filename)
	cmd.Dir = workspace
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Run the child in its own process group so the deadline kill reaches
	// anything it forked (a bash script's `sleep`, a Python os.system child).
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return &executor.Result{
			FailureKind: executor.FailureSpawn,
			Diagnostic:  fmt.Sprintf("starting %s: %v", interp.Binary, err),
			Duration:    time.Since(start),
		}, nil
	}

	// Non-blocking wait: Wait runs in its own goroutine and we select on
	// completion, the deadline, and caller cancellation. The buffered
	// channel lets the goroutine finish even if nobody reads the send.
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	deadline := time.NewTimer(r.config.Timeout)
	defer deadline.Stop()

	select {
	case waitErr := <-done:
		return r.finish(cmd, waitErr, stdout, stderr, start), nil

	case <-deadline.C:
		r.kill(cmd, done)
		// Partial output up to the kill point is preserved — a program that
		// printed for 29s before looping deserves to show what it printed.
		return &executor.Result{
			Stdout:      stdout.String(),
			Stderr:      stderr.String(),
			FailureKind: executor.FailureTimeout,
			Diagnostic:  fmt.Sprintf("execution exceeded deadline of %s", r.config.Timeout),
			Duration:    time.Since(start),
		}, nil

	case <-ctx.Done():
		// The caller gave up (client disconnected, server shutting down).
		// Kill the child so nothing leaks, then surface the cancellation.
		r.kill(cmd, done)
		return nil, ctx.Err()
	}
}

// finish builds the Result for a process that exited on its own.
func (r *Runner) finish(cmd *exec.Cmd, waitErr error, stdout, stderr *cappedBuffer, start time.Time) *executor.Result {
	res := &executor.Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if dropped := stdout.Dropped() + stderr.Dropped(); dropped > 0 {
		r.logger.Warn("execution output truncated",
			slog.Int64("droppedBytes", dropped),
			slog.Int64("capBytes", r.config.MaxOutputBytes),
		)
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		code := 0
		res.ExitCode = &code
		res.Succeeded = true

	case errors.As(waitErr, &exitErr):
		// Ordinary non-zero exit: a result state, not a failure kind.
		// ExitCode() is -1 when the process died from a signal; only a
		// real exit status is propagated.
		if code := exitErr.ExitCode(); code >= 0 {
			res.ExitCode = &code
		}

	default:
		// Wait failed for a reason other than the process's exit status
		// (pipe copy error and the like) — nothing trustworthy to report.
		res.FailureKind = executor.FailureInternal
		res.Diagnostic = fmt.Sprintf("waiting for process: %v", waitErr)
	}

	return res
}

// kill terminates the child's whole process group and waits up to KillGrace
// for the reap, so the common case leaves no zombie behind. If the grace
// period elapses the Wait goroutine still reaps eventually; we just stop
// holding the caller hostage for it.
func (r *Runner) kill(cmd *exec.Cmd, done <-chan error) {
	if cmd.Process == nil {
		return
	}
	// Negative pid addresses the process group created by Setpgid.
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		// Group kill can fail if the child already exited; fall back to
		// the single process for the race where it hasn't.
		_ = cmd.Process.Kill()
	}

	grace := time.NewTimer(r.config.KillGrace)
	defer grace.Stop()
	select {
	case <-done:
	case <-grace.C:
		r.logger.Warn("killed process not reaped within grace period",
			slog.Int("pid", cmd.Process.Pid),
			slog.Duration("grace", r.config.KillGrace),
		)
	}
}

// createWorkspace makes the single-use directory for one execution,
// optionally namespaced under the caller identity.
func (r *Runner) createWorkspace(callerID string) (string, error) {
	dir := r.config.Root
	if caller := sanitizeCallerID(callerID); caller != "" {
		dir = filepath.Join(dir, caller)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	workspace := filepath.Join(dir, "exec-"+xid.New().String())
	// Mkdir, not MkdirAll: the name is fresh, so an "already exists" error
	// here means something is genuinely wrong and should surface.
	if err := os.Mkdir(workspace, 0o755); err != nil {
		return "", err
	}
	return workspace, nil
}

// removeWorkspace deletes the workspace tree. Best effort: a failed cleanup
// is a disk-space problem to alert on, not a reason to fail an execution
// whose result is already correct.
func (r *Runner) removeWorkspace(workspace string) {
	if err := os.RemoveAll(workspace); err != nil {
		r.logger.Error("failed to remove workspace",
			slog.String("workspace", workspace),
			slog.String("error", err.Error()),
		)
	}
}

// sanitizeFilename reduces a caller-supplied filename to a safe base name
// inside the workspace, falling back to the language default. The extension
// is forced to match the language so the dispatch table stays authoritative.
func sanitizeFilename(name string, interp executor.Interpreter) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return interp.DefaultFilename()
	}
	if !strings.HasSuffix(name, interp.Extension) {
		name += interp.Extension
	}
	return name
}

// sanitizeCallerID keeps only characters that are safe in a path component.
// CallerID is an opaque token from the caller; it must never be able to
// escape the workspace root.
func sanitizeCallerID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}
