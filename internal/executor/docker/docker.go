// Package docker runs snippets inside throwaway Docker containers.
//
// Each run takes a pre-warmed container from the Pool, execs the code in it
// and removes the container afterwards, so no state survives between runs.
// Containers have no network, a read-only root filesystem, and memory and
// CPU limits.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/snipshare/internal/executor"
)

// Executor implements executor.Executor using Docker.
type Executor struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pool   *Pool
}

var _ executor.Executor = (*Executor)(nil)

// New connects to the Docker daemon from the environment (DOCKER_HOST etc.),
// pulls the image and starts the container pool.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Executor, error) {
	cfg = cfg.withDefaults()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker: creating client: %w", err)
	}

	pullCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	logger.Info("ensuring sandbox image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(pullCtx, cfg.Image, image.PullOptions{})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker: pulling %s: %w", cfg.Image, err)
	}
	// The pull only finishes once the progress stream is drained.
	_, _ = io.Copy(io.Discard, reader)
	reader.Close()
	logger.Info("sandbox image is ready", slog.String("image", cfg.Image))

	e := &Executor{
		cli:    cli,
		config: cfg,
		logger: logger,
		pool:   NewPool(cli, cfg, logger),
	}
	e.pool.Start()
	return e, nil
}

// Close stops the pool and closes the docker client.
func (e *Executor) Close() error {
	e.pool.Stop()
	return e.cli.Close()
}

// Supports reports whether language is the one this sandbox's image runs.
func (e *Executor) Supports(language string) bool {
	return strings.EqualFold(language, e.config.Language)
}

// Execute runs req.Code in a fresh container.
//
// A run that outlives Config.Timeout is abandoned with exit code 124 and a
// note on stderr; the container is force-removed either way.
func (e *Executor) Execute(ctx context.Context, req executor.Request) (*executor.Result, error) {
	if !e.Supports(req.Language) {
		return nil, fmt.Errorf("docker: language %q is not supported by this sandbox", req.Language)
	}
	start := time.Now()

	containerID, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("docker: acquiring container: %w", err)
	}
	defer e.pool.Discard(containerID)

	runCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	cmd := append(append([]string{}, e.config.Command...), req.Code)
	execResp, err := e.cli.ContainerExecCreate(runCtx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          cmd,
	})
	if err != nil {
		return nil, fmt.Errorf("docker: creating exec: %w", err)
	}

	attachResp, err := e.cli.ContainerExecAttach(runCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("docker: attaching to exec: %w", err)
	}
	defer attachResp.Close()

	stdout := newCappedBuffer(e.config.MaxOutputBytes)
	stderr := newCappedBuffer(e.config.MaxOutputBytes)

	done := make(chan struct{})
	go func() {
		// Docker multiplexes both streams over one connection.
		_, _ = stdcopy.StdCopy(stdout, stderr, attachResp.Reader)
		close(done)
	}()

	exitCode := 0
	select {
	case <-done:
		inspectResp, err := e.cli.ContainerExecInspect(ctx, execResp.ID)
		if err == nil {
			exitCode = inspectResp.ExitCode
		}
	case <-runCtx.Done():
		attachResp.Close()
		<-done
		exitCode = executor.TimeoutExitCode
		stderr.WriteString("\nExecution timed out.\n")
	}

	result := &executor.Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		ExitCode:  exitCode,
		Duration:  time.Since(start),
		Truncated: stdout.truncated || stderr.truncated,
	}
	e.logger.Info("sandbox run finished",
		slog.Int("exitCode", result.ExitCode),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

// cappedBuffer keeps the first limit bytes written and drops the rest while
// still reporting full writes, so stdcopy keeps draining the stream.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

// WriteString appends s even past the cap, for the executor's own notes.
func (b *cappedBuffer) WriteString(s string) {
	b.buf.WriteString(s)
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}
