// Package runtime provides the Runtime interface for job execution backends.
package runtime

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// imagePullRetries bounds how many image pull attempts Start makes in
// all before giving up; slicer/worker images live in a private registry
// that occasionally throttles concurrent pulls during a burst of
// allocations.
const imagePullRetries = 3

// DockerRuntime implements the Runtime interface using the Docker SDK.
type DockerRuntime struct {
	client *client.Client
}

// DockerHandle represents a running container.
type DockerHandle struct {
	client      *client.Client
	containerID string
}

func mapToEnvList(m map[string]string) []string {
	var env []string
	for k, v := range m {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

// NewDockerRuntime creates a new Docker-based runtime, picking up its
// connection from the standard DOCKER_HOST/DOCKER_CERT_PATH environment.
func NewDockerRuntime() (*DockerRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker runtime: create client: %w", err)
	}
	return &DockerRuntime{client: cli}, nil
}

// Start implements Runtime.Start using Docker containers. The container
// is named and labelled from opts.Env's execution/node/role triple so
// `docker ps` and cleanup sweeps can identify orphaned slicer/worker
// containers without consulting the store.
func (d *DockerRuntime) Start(ctx context.Context, opts StartOptions) (Handle, error) {
	if err := d.ensureImage(ctx, opts.Image); err != nil {
		return nil, err
	}

	containerConfig := &container.Config{
		Image:  opts.Image,
		Cmd:    opts.Command,
		Env:    mapToEnvList(opts.Env),
		Labels: containerLabels(opts.Env),
		Tty:    true,
	}
	containerResponse, err := d.client.ContainerCreate(ctx, containerConfig, nil, nil, nil, opts.Env[execIDEnvKey]+"-"+opts.Env["JOBCORE_NODE_ID"])
	if err != nil {
		return nil, fmt.Errorf("docker runtime: create container: %w", err)
	}

	if err := d.client.ContainerStart(ctx, containerResponse.ID, types.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("docker runtime: start container: %w", err)
	}

	return &DockerHandle{
		client:      d.client,
		containerID: containerResponse.ID,
	}, nil
}

// containerLabels tags the container with the node's identity so it can
// be correlated back to an execution and role (slicer vs worker) by
// inspecting the Docker daemon alone.
func containerLabels(env map[string]string) map[string]string {
	labels := map[string]string{"jobcore.managed": "true"}
	if v := env[execIDEnvKey]; v != "" {
		labels["jobcore.execution_id"] = v
	}
	if v := env["JOBCORE_NODE_ID"]; v != "" {
		labels["jobcore.node_id"] = v
	}
	if v := env["JOBCORE_ROLE"]; v != "" {
		labels["jobcore.role"] = v
	}
	return labels
}

// ensureImage pulls opts.Image if it isn't already present locally,
// retrying transient pull failures a bounded number of times.
func (d *DockerRuntime) ensureImage(ctx context.Context, ref string) error {
	if _, _, err := d.client.ImageInspectWithRaw(ctx, ref); err == nil {
		return nil
	}

	var lastErr error
	for attempt := 0; attempt < imagePullRetries; attempt++ {
		reader, err := d.client.ImagePull(ctx, ref, types.ImagePullOptions{})
		if err == nil {
			io.Copy(io.Discard, reader)
			reader.Close()
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return fmt.Errorf("docker runtime: pull image %s: %w", ref, ctx.Err())
		case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
		}
	}
	return fmt.Errorf("docker runtime: pull image %s after %d attempts: %w", ref, imagePullRetries, lastErr)
}

func (h *DockerHandle) Wait(ctx context.Context) (ExitResult, error) {
	statusCh, errCh := h.client.ContainerWait(ctx, h.containerID, container.WaitConditionNotRunning)

	select {
	case err := <-errCh:
		return ExitResult{ExitCode: -1, Error: err}, err
	case status := <-statusCh:
		if status.Error != nil {
			return ExitResult{
					ExitCode: int(status.StatusCode),
					Error:    fmt.Errorf("%s", status.Error.Message),
				},
				nil
		}
		return ExitResult{ExitCode: int(status.StatusCode)}, nil
	case <-ctx.Done():
		return ExitResult{ExitCode: -1, Error: ctx.Err()}, ctx.Err()
	}
}

func (h *DockerHandle) Stop(ctx context.Context) error {
	timeOut := 5
	return h.client.ContainerStop(ctx, h.containerID, container.StopOptions{Timeout: &timeOut})
}

func (h *DockerHandle) StreamLogs(ctx context.Context) (io.ReadCloser, error) {
	return h.client.ContainerLogs(ctx, h.containerID, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
}
