package flatten

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

const (
	DefaultImage = "minidocks/ghostscript:latest"
	// WorkDir is where the scratch dir is mounted inside the container.
	WorkDir = "/work"
	Label   = "binder-flatten"
)

// DockerConfig configures the containerized runner.
type DockerConfig struct {
	Image   string
	Timeout time.Duration
	Scratch Scratch
	Logger  *slog.Logger
	Labels  map[string]string
}

// Docker runs Ghostscript in a throwaway container per call.
type Docker struct {
	image   string
	timeout time.Duration
	scratch Scratch
	logger  *slog.Logger
	labels  map[string]string

	mu       sync.Mutex
	cli      *client.Client
	probed   bool
	probeErr error
}

// NewDocker creates a containerized runner. The daemon is not contacted
// until Available or Flatten is called.
func NewDocker(cfg DockerConfig) *Docker {
	if cfg.Image == "" {
		cfg.Image = DefaultImage
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	labels := map[string]string{Label: "true"}
	for k, v := range cfg.Labels {
		labels[k] = v
	}
	return &Docker{
		image:   cfg.Image,
		timeout: cfg.Timeout,
		scratch: cfg.Scratch,
		logger:  logger,
		labels:  labels,
	}
}

func (d *Docker) Engine() string { return EngineDocker }

// Image returns the configured image name.
func (d *Docker) Image() string { return d.image }

// Close closes the Docker client if one was opened.
func (d *Docker) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cli == nil {
		return nil
	}
	return d.cli.Close()
}

// Probe pings the daemon and makes sure the image is present, pulling it if
// needed. A conclusive result is cached.
func (d *Docker) Probe(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.probed {
		return d.probeErr
	}

	err := d.probe(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	d.probed = true
	d.probeErr = err
	return err
}

func (d *Docker) probe(ctx context.Context) error {
	if d.cli == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return fmt.Errorf("%w: failed to create docker client: %v", ErrNotFound, err)
		}
		d.cli = cli
	}
	if _, err := d.cli.Ping(ctx); err != nil {
		return fmt.Errorf("%w: docker is not running: %v", ErrNotFound, err)
	}
	if err := d.ensureImage(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return nil
}

// Available reports whether the daemon and image are usable.
func (d *Docker) Available(ctx context.Context) bool {
	return d.Probe(ctx) == nil
}

// Flatten runs gs in a container with the scratch dir bind-mounted.
func (d *Docker) Flatten(ctx context.Context, src []byte) ([]byte, error) {
	if err := d.Probe(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	return d.scratch.Do(src, func(dir string) error {
		return d.run(ctx, dir)
	})
}

func (d *Docker) run(ctx context.Context, dir string) error {
	containerConfig := &container.Config{
		Image:      d.image,
		Entrypoint: []string{"gs"},
		Cmd:        gsArgs(WorkDir+"/"+OutputName, WorkDir+"/"+InputName),
		WorkingDir: WorkDir,
		Labels:     d.labels,
	}
	if runtime.GOOS != "windows" {
		containerConfig.User = fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid())
	}

	hostConfig := &container.HostConfig{
		NetworkMode: "none",
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: dir,
				Target: WorkDir,
			},
		},
	}

	resp, err := d.cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, "")
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	defer func() {
		// The run context may already be done; removal gets its own.
		rmCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.cli.ContainerRemove(rmCtx, resp.ID, container.RemoveOptions{Force: true}); err != nil {
			d.logger.Warn("failed to remove flatten container", "container", resp.ID, "error", err)
		}
	}()

	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}

	statusCh, errCh := d.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return fmt.Errorf("failed waiting for container: %w", err)
	case status := <-statusCh:
		if status.StatusCode != 0 {
			return &ExitError{
				Engine: EngineDocker,
				Code:   int(status.StatusCode),
				Stderr: d.logs(ctx, resp.ID),
			}
		}
	}
	return nil
}

// logs returns the container's stderr, or stdout when stderr is empty.
func (d *Docker) logs(ctx context.Context, id string) string {
	rc, err := d.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       "50",
	})
	if err != nil {
		return ""
	}
	defer rc.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, rc); err != nil {
		return ""
	}
	if stderr.Len() > 0 {
		return stderr.String()
	}
	return stdout.String()
}

// ensureImage pulls the image if not present.
func (d *Docker) ensureImage(ctx context.Context) error {
	if _, err := d.cli.ImageInspect(ctx, d.image); err == nil {
		return nil
	}

	d.logger.Info("pulling ghostscript image", "image", d.image)
	reader, err := d.cli.ImagePull(ctx, d.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()

	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	return nil
}
