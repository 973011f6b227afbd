// Package docker implements executor.Executor inside pooled containers.
//
// This is the containment option the subprocess runner deliberately does not
// provide: no network, read-only rootfs, unprivileged user, memory and CPU
// limits. Each execution takes a pre-warmed container from the pool, execs
// the interpreter with the source passed inline (python3 -c / node -e /
// bash -c via the dispatch table), and removes the container afterwards —
// containers are never reused across executions.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/tahmid/codebench/internal/executor"
)

var _ executor.Executor = (*Executor)(nil)

// Executor implements executor.Executor using the Docker API.
type Executor struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pool   *pool
}

// New creates a Docker Executor, pulls the execution image, and starts the
// container pool. Returns an error if the daemon is unreachable — callers
// treat that as "containerized execution unavailable", not as fatal.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker: creating client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger.Info("ensuring execution image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(ctx, cfg.Image, image.PullOptions{})
	if err != nil {
		return nil, fmt.Errorf("docker: pulling image: %w", err)
	}
	defer reader.Close()
	// drain to block until the pull completes
	io.Copy(io.Discard, reader)

	e := &Executor{
		cli:    cli,
		config: cfg,
		logger: logger,
	}
	e.pool = newPool(cli, cfg, logger)
	e.pool.start()

	return e, nil
}

// Close shuts down the pool and the docker client.
func (e *Executor) Close() error {
	e.pool.stop()
	return e.cli.Close()
}

// Execute runs one snippet inside a pooled container.
//
// The failure taxonomy matches the subprocess runner: unsupported language
// and daemon-level exec failures are reported in the Result, a timeout kills
// the container (removing it tears down the whole process tree), and a
// non-zero exit is an ordinary result.
func (e *Executor) Execute(ctx context.Context, req executor.Request) (*executor.Result, error) {
	start := time.Now()

	interp, ok := executor.Lookup(req.Language)
	if !ok {
		return &executor.Result{
			FailureKind: executor.FailureUnsupportedLanguage,
			Diagnostic:  fmt.Sprintf("unsupported language %q", req.Language),
			Duration:    time.Since(start),
		}, nil
	}

	containerID, err := e.pool.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("docker: acquiring container from pool: %w", err)
	}

	// The container is single-use: always removed, which also kills any
	// process the snippet left running.
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.cli.ContainerRemove(cleanupCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			e.logger.Error("failed to remove container",
				slog.String("id", containerID),
				slog.String("error", err.Error()),
			)
		}
	}()

	execCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	execResp, err := e.cli.ContainerExecCreate(execCtx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          []string{interp.Binary, interp.InlineFlag, req.Source},
	})
	if err != nil {
		return &executor.Result{
			FailureKind: executor.FailureSpawn,
			Diagnostic:  fmt.Sprintf("creating exec in container: %v", err),
			Duration:    time.Since(start),
		}, nil
	}

	attachResp, err := e.cli.ContainerExecAttach(execCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return &executor.Result{
			FailureKind: executor.FailureSpawn,
			Diagnostic:  fmt.Sprintf("attaching to exec: %v", err),
			Duration:    time.Since(start),
		}, nil
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer

	done := make(chan struct{})
	go func() {
		// stdcopy demultiplexes the combined stream into stdout/stderr.
		// The LimitReader bounds worker memory against a runaway printer:
		// both streams plus the 8-byte frame headers fit in the budget,
		// anything past it is dropped when the container is removed.
		limited := io.LimitReader(attachResp.Reader, 2*e.config.MaxOutputBytes+4096)
		_, _ = stdcopy.StdCopy(&stdout, &stderr, limited)
		close(done)
	}()

	res := &executor.Result{}

	select {
	case <-done:
		inspect, err := e.cli.ContainerExecInspect(ctx, execResp.ID)
		if err != nil {
			res.FailureKind = executor.FailureInternal
			res.Diagnostic = fmt.Sprintf("inspecting exec: %v", err)
			break
		}
		code := inspect.ExitCode
		res.ExitCode = &code
		res.Succeeded = code == 0

	case <-execCtx.Done():
		if ctx.Err() != nil {
			// caller cancellation, not our deadline
			return nil, ctx.Err()
		}
		res.FailureKind = executor.FailureTimeout
		res.Diagnostic = fmt.Sprintf("execution exceeded deadline of %s", e.config.Timeout)
	}

	res.Stdout = truncate(stdout.String(), e.config.MaxOutputBytes)
	res.Stderr = truncate(stderr.String(), e.config.MaxOutputBytes)
	res.Duration = time.Since(start)

	return res, nil
}

func truncate(s string, limit int64) string {
	if int64(len(s)) <= limit {
		return s
	}
	return s[:limit]
}
