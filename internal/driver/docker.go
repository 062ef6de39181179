package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/oriys/barq/internal/logging"
)

// DockerDriver implements ContainerDriver over the `docker` CLI via
// os/exec, the same invocation style as the Docker backend this module's
// lifecycle handling is descended from: build an argv slice, run it with
// exec.CommandContext, and classify the error.
type DockerDriver struct {
	// Network, when set, is attached to every container via --network.
	Network string
}

// NewDockerDriver verifies the docker CLI is reachable and returns a driver.
func NewDockerDriver() (*DockerDriver, error) {
	if err := exec.Command("docker", "version").Run(); err != nil {
		return nil, fmt.Errorf("docker not available: %w", err)
	}
	return &DockerDriver{}, nil
}

func (d *DockerDriver) mountArgs(mounts []Mount) []string {
	var args []string
	for _, m := range mounts {
		spec := fmt.Sprintf("%s:%s", m.HostPath, m.ContainerPath)
		if m.ReadOnly {
			spec += ":ro"
		}
		args = append(args, "-v", spec)
	}
	return args
}

func (d *DockerDriver) runCommand(ctx context.Context, timeout time.Duration, args ...string) (RunResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "docker", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := RunResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return result, ErrTimeout
		}
		return result, fmt.Errorf("docker %s: %w", args[0], err)
	}
	return result, nil
}

func (d *DockerDriver) RunOneshot(ctx context.Context, spec OneshotSpec) (RunResult, error) {
	args := []string{"run", "--rm"}
	args = append(args, d.mountArgs(spec.Mounts)...)
	if spec.Workdir != "" {
		args = append(args, "-w", spec.Workdir)
	}
	for _, e := range spec.Env {
		args = append(args, "-e", e)
	}
	if d.Network != "" {
		args = append(args, "--network", d.Network)
	}
	args = append(args, spec.Image)
	args = append(args, spec.Args...)

	timeout := spec.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return d.runCommand(ctx, timeout, args...)
}

func (d *DockerDriver) StartDetached(ctx context.Context, spec DetachedSpec) (string, error) {
	args := []string{"run", "-d"}
	if spec.Name != "" {
		args = append(args, "--name", spec.Name)
	}
	args = append(args, d.mountArgs(spec.Mounts)...)
	if spec.Workdir != "" {
		args = append(args, "-w", spec.Workdir)
	}
	for _, e := range spec.Env {
		args = append(args, "-e", e)
	}
	if d.Network != "" {
		args = append(args, "--network", d.Network)
	}
	args = append(args, spec.Image)
	args = append(args, spec.Args...)

	result, err := d.runCommand(ctx, 15*time.Second, args...)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("docker run -d: exit %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return strings.TrimSpace(result.Stdout), nil
}

func (d *DockerDriver) ExecIn(ctx context.Context, containerID string, argv []string, timeout time.Duration) (RunResult, error) {
	args := append([]string{"exec", containerID}, argv...)
	result, err := d.runCommand(ctx, timeout, args...)
	if err != nil {
		return result, err
	}
	if result.ExitCode != 0 && strings.Contains(result.Stderr, "No such container") {
		return result, ErrNotFound
	}
	return result, nil
}

func (d *DockerDriver) Logs(ctx context.Context, containerID string) (string, error) {
	result, err := d.runCommand(ctx, 5*time.Second, "logs", containerID)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 && strings.Contains(result.Stderr, "No such container") {
		return "", ErrNotFound
	}
	return result.Stdout, nil
}

func (d *DockerDriver) CopyIn(ctx context.Context, containerID, hostPath, containerPath string) error {
	result, err := d.runCommand(ctx, 10*time.Second, "cp", hostPath, containerID+":"+containerPath)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("docker cp in: %s", strings.TrimSpace(result.Stderr))
	}
	return nil
}

func (d *DockerDriver) CopyOut(ctx context.Context, containerID, containerPath, hostPath string) error {
	result, err := d.runCommand(ctx, 10*time.Second, "cp", containerID+":"+containerPath, hostPath)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("docker cp out: %s", strings.TrimSpace(result.Stderr))
	}
	return nil
}

// Remove forcibly tears down a container. Mirrors the teacher's stopContainer:
// stop with a short grace period, then force-remove; both are best-effort.
func (d *DockerDriver) Remove(ctx context.Context, containerID string) error {
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := d.runCommand(stopCtx, 0, "stop", "-t", "2", containerID); err != nil {
		logging.Op().Debug("docker stop failed, continuing to rm", "container_id", containerID, "error", err)
	}

	rmCtx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	result, err := d.runCommand(rmCtx, 0, "rm", "-f", containerID)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 && !strings.Contains(result.Stderr, "No such container") {
		return fmt.Errorf("docker rm: %s", strings.TrimSpace(result.Stderr))
	}
	return nil
}
