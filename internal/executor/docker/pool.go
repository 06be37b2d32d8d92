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

// Pool keeps Config.PoolSize idle containers running so a run does not pay
// for container startup.
//
// Containers are single use: Acquire hands one out and Discard removes it,
// which wakes the filler to start a replacement.
type Pool struct {
	cli    *client.Client
	config Config
	logger *slog.Logger

	ready  chan string
	refill chan struct{}
	done   chan struct{}

	wg       sync.WaitGroup
	start    sync.Once
	stop     sync.Once
	retryGap time.Duration
}

// NewPool creates a pool; nothing is started until Start.
func NewPool(cli *client.Client, cfg Config, logger *slog.Logger) *Pool {
	return &Pool{
		cli:      cli,
		config:   cfg,
		logger:   logger,
		ready:    make(chan string, cfg.PoolSize),
		refill:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		retryGap: time.Second,
	}
}

// Start launches the background filler. Calling it twice is a no-op.
func (p *Pool) Start() {
	p.start.Do(func() {
		p.logger.Info("starting sandbox container pool", slog.Int("poolSize", p.config.PoolSize))
		p.wg.Add(1)
		go p.fill()
	})
}

// Stop halts the filler and removes every idle container.
func (p *Pool) Stop() {
	p.stop.Do(func() {
		p.logger.Info("stopping sandbox container pool")
		close(p.done)
		p.wg.Wait()

		for {
			select {
			case id := <-p.ready:
				p.remove(id)
			default:
				return
			}
		}
	})
}

// Acquire blocks until an idle container is available or ctx ends.
func (p *Pool) Acquire(ctx context.Context) (string, error) {
	select {
	case id := <-p.ready:
		return id, nil
	case <-p.done:
		return "", fmt.Errorf("docker: pool is stopped")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Discard removes a used container and asks the filler for a replacement.
func (p *Pool) Discard(id string) {
	p.remove(id)
	select {
	case p.refill <- struct{}{}:
	default:
	}
}

// fill tops the pool up to capacity, then sleeps until a container is
// discarded. Failed creates are retried after retryGap.
func (p *Pool) fill() {
	defer p.wg.Done()

	for {
		for len(p.ready) < cap(p.ready) {
			id, err := p.create()
			if err != nil {
				p.logger.Error("failed to create sandbox container", slog.String("error", err.Error()))
				select {
				case <-p.done:
					return
				case <-time.After(p.retryGap):
				}
				continue
			}

			select {
			case p.ready <- id:
			case <-p.done:
				p.remove(id)
				return
			}
		}

		select {
		case <-p.done:
			return
		case <-p.refill:
		}
	}
}

// create starts an idle container that sleeps until a run execs into it.
func (p *Pool) create() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hostConfig := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:   p.config.MemoryLimit,
			NanoCPUs: int64(p.config.CPULimit * 1e9),
		},
		ReadonlyRootfs: true,
		Tmpfs:          map[string]string{"/tmp": "rw,noexec,nosuid,size=16m"},
	}

	resp, err := p.cli.ContainerCreate(ctx, &container.Config{
		Image: p.config.Image,
		Cmd:   []string{"sleep", "infinity"},
		User:  "nobody",
	}, hostConfig, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("creating container: %w", err)
	}

	if err := p.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		p.remove(resp.ID)
		return "", fmt.Errorf("starting container: %w", err)
	}
	return resp.ID, nil
}

func (p *Pool) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		p.logger.Error("failed to remove sandbox container",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}
}
