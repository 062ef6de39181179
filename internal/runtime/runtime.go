// Package runtime implements the Runtime Adapter (C2): a polymorphic
// abstraction, one variant per supported language family, over
// {prepare, run_cold, supports_warm, warm_up, run_warm, cleanup_warm}
// (spec §4.2). Dispatch to a variant is by runtime-tag prefix; a Registry
// resolves the mapping the way cmd/agent/bootstraps.go's bootstrap table
// dispatches by language, generalized to the adapter interface here.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oriys/barq/internal/domain"
	"github.com/oriys/barq/internal/driver"
	"github.com/oriys/barq/internal/workspace"
)

// Adapter is the capability set every runtime family implements. Only
// warm-capable adapters need WarmUp/RunWarm/CleanupWarm do real work;
// others embed NoWarm to satisfy the interface with a no-op (spec §4.2:
// "only Py sets [supports_warm] true").
type Adapter interface {
	// Prepare writes the user's source to a runtime-specific filename in
	// the workspace and any sidecar descriptors the variant needs.
	// Idempotent.
	Prepare(ws *workspace.Workspace, code, entrypoint string) error

	// RunCold generates a bootstrap, invokes it as a one-shot container,
	// and returns the execution result.
	RunCold(ctx context.Context, drv driver.ContainerDriver, ws *workspace.Workspace, entrypoint string, event json.RawMessage) (domain.ExecutionResult, error)

	// SupportsWarm reports whether WarmUp/RunWarm/CleanupWarm are
	// meaningful for this variant.
	SupportsWarm() bool

	// WarmUp starts a long-lived container running the warm loop bootstrap
	// and waits for the ready sentinel. Returns ok=false (never an error
	// the caller must propagate) on any failure; spec §4.2.3 requires
	// warmup failures to be swallowed and reported as none.
	WarmUp(ctx context.Context, drv driver.ContainerDriver, funcID string, ws *workspace.Workspace, code, entrypoint string) (containerID string, ok bool)

	// RunWarm dispatches one event into an already-warm container via the
	// file-drop protocol and returns the result.
	RunWarm(ctx context.Context, drv driver.ContainerDriver, ws *workspace.Workspace, containerID string, event json.RawMessage) (domain.ExecutionResult, error)

	// CleanupWarm forcibly removes a warm container. Idempotent and
	// infallible from the caller's perspective (spec §4.2.5).
	CleanupWarm(ctx context.Context, drv driver.ContainerDriver, containerID string)
}

// NoWarm is embedded by cold-only adapters (Node, Go) to satisfy Adapter
// without duplicating the not-supported plumbing (spec §9: "an
// implementation-maturity artifact, not a design law" — any variant can
// grow warm support later by replacing this embed).
type NoWarm struct{}

func (NoWarm) SupportsWarm() bool { return false }

func (NoWarm) WarmUp(context.Context, driver.ContainerDriver, string, *workspace.Workspace, string, string) (string, bool) {
	return "", false
}

func (NoWarm) RunWarm(context.Context, driver.ContainerDriver, *workspace.Workspace, string, json.RawMessage) (domain.ExecutionResult, error) {
	return domain.ExecutionResult{}, fmt.Errorf("runtime: warm dispatch unsupported for this runtime family")
}

func (NoWarm) CleanupWarm(context.Context, driver.ContainerDriver, string) {}

// Registry resolves a domain.Runtime to its Adapter by family prefix.
type Registry struct {
	byFamily map[string]Adapter
}

// NewRegistry builds the registry with the three supported runtime
// families (spec §6: python*, node*, go*).
func NewRegistry(imagePrefix string) *Registry {
	return &Registry{
		byFamily: map[string]Adapter{
			"python": NewPythonAdapter(),
			"node":   NewNodeAdapter(),
			"go":     NewGoAdapter(),
		},
	}
}

// ErrUnsupportedRuntime is returned when no adapter handles the runtime's
// family prefix.
var ErrUnsupportedRuntime = fmt.Errorf("runtime: unsupported runtime tag")

// Resolve returns the Adapter for rt's family, or ErrUnsupportedRuntime.
func (r *Registry) Resolve(rt domain.Runtime) (Adapter, error) {
	if a, ok := r.byFamily[rt.Family()]; ok {
		return a, nil
	}
	return nil, ErrUnsupportedRuntime
}

// splitEntrypoint splits "module.symbol" on the last dot. A bare symbol
// uses the default module "handler" (spec §4.2.5 edge case).
func splitEntrypoint(entrypoint string) (module, symbol string) {
	idx := strings.LastIndex(entrypoint, ".")
	if idx < 0 {
		return "handler", entrypoint
	}
	return entrypoint[:idx], entrypoint[idx+1:]
}

const (
	defaultColdTimeout = 10 // seconds, spec §4.2.2 default
)
