package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
)

// defaultPluginImage runs a plugin binary with no host dependencies beyond
// what the binary itself statically links, mirroring container/manager.go's
// DefaultImage constant but scoped to plugin processes instead of project
// workspaces.
const defaultPluginImage = "scratch"

const pluginContainerPrefix = "dispatch-plugin-"

// Sandbox launches a plugin's binary and exposes its stdin/stdout as a pipe
// pair for the RPC registration protocol. It prefers a Docker container,
// falling back to a direct subprocess when the Docker daemon is
// unreachable — the same "available bool" graceful-degradation pattern the
// teacher's container.Manager uses, generalized from project containers to
// plugin containers (spec §4.7).
type Sandbox struct {
	mu        sync.Mutex
	client    *client.Client
	available bool
}

// NewSandbox probes for a reachable Docker daemon. It has no error result:
// failure to reach Docker degrades to subprocess mode rather than making
// the sandbox unusable.
func NewSandbox(ctx context.Context) *Sandbox {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return &Sandbox{available: false}
	}
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return &Sandbox{available: false}
	}
	return &Sandbox{client: cli, available: true}
}

// IsAvailable reports whether this sandbox will run plugins inside Docker
// (true) or as direct subprocesses (false).
func (s *Sandbox) IsAvailable() bool { return s.available }

// Process is a running plugin instance: its stdin/stdout and a Wait/Stop
// pair, abstracting over the container vs. subprocess backend.
type Process struct {
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stop   func(ctx context.Context) error
	wait   func() error
}

// Stdin returns the writer the host uses to reply to the plugin's RPC
// register calls.
func (p *Process) Stdin() io.WriteCloser { return p.stdin }

// Stdout returns the reader the host scans for incoming RPC register
// calls.
func (p *Process) Stdout() io.ReadCloser { return p.stdout }

// Wait blocks until the plugin process exits.
func (p *Process) Wait() error { return p.wait() }

// Stop terminates the plugin process.
func (p *Process) Stop(ctx context.Context) error { return p.stop(ctx) }

// Start launches m.Binary for the named plugin, inside Docker if available
// or as a direct subprocess otherwise.
func (s *Sandbox) Start(ctx context.Context, pluginDir, pluginName string, m *Manifest) (*Process, error) {
	if m.Binary == "" {
		return nil, fmt.Errorf("service: plugin %s has no binary to sandbox", pluginName)
	}
	s.mu.Lock()
	available := s.available
	s.mu.Unlock()
	if available {
		return s.startContainer(ctx, pluginDir, pluginName, m)
	}
	return s.startSubprocess(ctx, pluginDir, m)
}

func (s *Sandbox) startSubprocess(ctx context.Context, pluginDir string, m *Manifest) (*Process, error) {
	cmd := exec.CommandContext(ctx, m.Binary)
	cmd.Dir = pluginDir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("service: start plugin subprocess: %w", err)
	}

	return &Process{
		stdin:  stdin,
		stdout: stdout,
		wait:   cmd.Wait,
		stop: func(ctx context.Context) error {
			if cmd.Process == nil {
				return nil
			}
			return cmd.Process.Kill()
		},
	}, nil
}

// containerPipe adapts a Docker exec attach stream (a single combined
// ReadWriteCloser) to the separate stdin/stdout the Process contract wants.
type containerPipe struct {
	io.Reader
	io.Writer
	closer func() error
}

func (c *containerPipe) Close() error { return c.closer() }

func (s *Sandbox) startContainer(ctx context.Context, pluginDir, pluginName string, m *Manifest) (*Process, error) {
	img := m.Image
	if img == "" {
		img = defaultPluginImage
	}
	if err := s.ensureImage(ctx, img); err != nil {
		return nil, fmt.Errorf("service: pull plugin image %s: %w", img, err)
	}

	name := pluginContainerPrefix + pluginName
	containerCfg := &container.Config{
		Image:        img,
		WorkingDir:   "/plugin",
		Cmd:          []string{"/plugin/" + m.Binary},
		Tty:          false,
		OpenStdin:    true,
		AttachStdin:  true,
		AttachStdout: true,
	}
	hostCfg := &container.HostConfig{
		Binds: []string{pluginDir + ":/plugin:ro"},
	}

	resp, err := s.client.ContainerCreate(ctx, containerCfg, hostCfg, (*network.NetworkingConfig)(nil), nil, name)
	if err != nil {
		return nil, fmt.Errorf("service: create plugin container: %w", err)
	}

	attach, err := s.client.ContainerAttach(ctx, resp.ID, container.AttachOptions{
		Stream: true, Stdin: true, Stdout: true,
	})
	if err != nil {
		return nil, fmt.Errorf("service: attach plugin container: %w", err)
	}

	if err := s.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		attach.Close()
		return nil, fmt.Errorf("service: start plugin container: %w", err)
	}

	pipe := &containerPipe{
		Reader: bufio.NewReader(attach.Reader),
		Writer: attach.Conn,
		closer: func() error { attach.Close(); return nil },
	}

	return &Process{
		stdin:  pipe,
		stdout: io.NopCloser(pipe),
		wait: func() error {
			statusCh, errCh := s.client.ContainerWait(context.Background(), resp.ID, container.WaitConditionNotRunning)
			select {
			case err := <-errCh:
				return err
			case <-statusCh:
				return nil
			}
		},
		stop: func(ctx context.Context) error {
			timeout := 5
			return s.client.ContainerStop(ctx, resp.ID, container.StopOptions{Timeout: &timeout})
		},
	}, nil
}

func (s *Sandbox) ensureImage(ctx context.Context, imageName string) error {
	_, _, err := s.client.ImageInspectWithRaw(ctx, imageName)
	if err == nil {
		return nil
	}
	reader, err := s.client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()
	_, err = io.Copy(io.Discard, reader)
	return err
}

// Close releases the Docker client, if one was opened.
func (s *Sandbox) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
