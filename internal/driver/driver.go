// Package driver wraps the external container engine behind a narrow typed
// surface (spec §4.1): run-oneshot, start-detached, exec-in, copy, logs, and
// remove. It is a thin wrapper over the Docker CLI invoked via os/exec, in
// the same style as the Docker backend this module's container lifecycle
// code is descended from; it never retains per-invocation state and every
// blocking call carries a timeout.
package driver

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by ExecIn and Logs when the container id is
// unknown to the engine. Remove treats a not-found container as success
// (spec §4.1: "idempotent; not-found is success").
var ErrNotFound = errors.New("driver: container not found")

// ErrTimeout is returned when a blocking call exceeds its deadline.
var ErrTimeout = errors.New("driver: operation timed out")

// RunResult is the outcome of a one-shot or exec-in container command.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Mount is a bind mount from a host path into the container.
type Mount struct {
	HostPath      string
	ContainerPath string
	ReadOnly      bool
}

// OneshotSpec describes a `docker run --rm` invocation.
type OneshotSpec struct {
	Image   string
	Mounts  []Mount
	Workdir string
	Env     []string
	Args    []string
	Timeout time.Duration
}

// DetachedSpec describes a `docker run -d` invocation.
type DetachedSpec struct {
	Image   string
	Mounts  []Mount
	Workdir string
	Env     []string
	Args    []string
	Name    string
}

// ContainerDriver is the Container Driver (C1): the only component in this
// module that shells out to the container engine.
type ContainerDriver interface {
	// RunOneshot runs a container to completion and collects its output.
	RunOneshot(ctx context.Context, spec OneshotSpec) (RunResult, error)

	// StartDetached starts a long-lived, named container and returns its
	// engine-assigned id.
	StartDetached(ctx context.Context, spec DetachedSpec) (containerID string, err error)

	// ExecIn runs argv inside an already-running container.
	ExecIn(ctx context.Context, containerID string, argv []string, timeout time.Duration) (RunResult, error)

	// Logs returns the accumulated stdout of a detached container, used to
	// poll for the warm-readiness sentinel.
	Logs(ctx context.Context, containerID string) (string, error)

	// CopyIn copies a host file into the container filesystem.
	CopyIn(ctx context.Context, containerID, hostPath, containerPath string) error

	// CopyOut copies a file out of the container filesystem to the host.
	CopyOut(ctx context.Context, containerID, containerPath, hostPath string) error

	// Remove forcibly tears down a container. Idempotent: removing an
	// already-gone container is not an error.
	Remove(ctx context.Context, containerID string) error
}
