package docker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// pool keeps a set of pre-warmed idle containers so an execution does not
// pay container-creation latency on the request path. Containers are
// single-use: Execute takes one, runs in it, and removes it; the manager
// goroutine tops the pool back up in the background.
type pool struct {
	cli        *client.Client
	config     Config
	logger     *slog.Logger
	containers chan string
	done       chan struct{}
	wg         sync.WaitGroup
	startOnce  sync.Once
}

func newPool(cli *client.Client, cfg Config, logger *slog.Logger) *pool {
	return &pool{
		cli:        cli,
		config:     cfg,
		logger:     logger,
		containers: make(chan string, cfg.PoolSize),
		done:       make(chan struct{}),
	}
}

// start begins filling the pool in the background. Idempotent.
func (p *pool) start() {
	p.startOnce.Do(func() {
		p.logger.Info("starting container pool", slog.Int("poolSize", p.config.PoolSize))
		p.wg.Add(1)
		go p.manage()
	})
}

// stop shuts down the manager and removes all idle containers.
func (p *pool) stop() {
	close(p.done)
	p.wg.Wait()

	for {
		select {
		case id := <-p.containers:
			p.remove(id)
		default:
			return
		}
	}
}

// acquire returns a ready container ID, blocking until one is available or
// the context is cancelled. The caller owns the container and must remove it.
func (p *pool) acquire(ctx context.Context) (string, error) {
	select {
	case id := <-p.containers:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// manage keeps the pool at capacity until stop is called.
func (p *pool) manage() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		default:
			if len(p.containers) >= cap(p.containers) {
				time.Sleep(100 * time.Millisecond)
				continue
			}

			id, err := p.create()
			if err != nil {
				p.logger.Error("failed to create pre-warmed container", slog.String("error", err.Error()))
				time.Sleep(1 * time.Second) // backoff before retrying
				continue
			}

			select {
			case p.containers <- id:
			case <-p.done:
				// shutting down while holding a fresh container
				p.remove(id)
				return
			}
		}
	}
}

// create starts an idle container parked on `sleep infinity`, network
// disabled, rootfs read-only, running as nobody, with the configured
// memory/CPU limits.
func (p *pool) create() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hostConfig := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:   p.config.MemoryLimit,
			NanoCPUs: int64(p.config.CPULimit * 1e9),
		},
		AutoRemove:     false,
		ReadonlyRootfs: true,
		// /tmp stays writable so interpreters can spill temp files
		Tmpfs: map[string]string{"/tmp": "rw,size=16m"},
	}

	resp, err := p.cli.ContainerCreate(ctx, &container.Config{
		Image:      p.config.Image,
		Cmd:        []string{"sleep", "infinity"},
		User:       "nobody",
		WorkingDir: "/tmp",
	}, hostConfig, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("ContainerCreate failed: %w", err)
	}

	if err := p.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		p.remove(resp.ID)
		return "", fmt.Errorf("ContainerStart failed: %w", err)
	}

	return resp.ID, nil
}

// remove force-removes a container by ID.
func (p *pool) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		p.logger.Error("failed to remove container",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}
}
