package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oriys/barq/internal/domain"
	"github.com/oriys/barq/internal/driver"
	"github.com/oriys/barq/internal/workspace"
)

const goImage = "golang:1.22"

// GoAdapter is cold-only (spec §9). Unlike Python/Node, the user's code is
// the complete program; the event is passed via the EVENT environment
// variable rather than dispatched to a named entrypoint symbol, matching
// the original_source go_runtime.py contract.
type GoAdapter struct {
	NoWarm
}

func NewGoAdapter() *GoAdapter { return &GoAdapter{} }

func (a *GoAdapter) Prepare(ws *workspace.Workspace, code, entrypoint string) error {
	if err := ws.WriteSource("handler.go", code); err != nil {
		return fmt.Errorf("go: write handler.go: %w", err)
	}
	if err := ws.WriteDescriptor(workspace.Descriptor{Entrypoint: entrypoint, Runtime: "go", Handler: entrypoint}, "handler.go"); err != nil {
		return fmt.Errorf("go: write function.yaml: %w", err)
	}
	return nil
}

func (a *GoAdapter) RunCold(ctx context.Context, drv driver.ContainerDriver, ws *workspace.Workspace, _ string, event json.RawMessage) (domain.ExecutionResult, error) {
	if len(event) == 0 {
		event = json.RawMessage("null")
	}
	res, err := drv.RunOneshot(ctx, driver.OneshotSpec{
		Image:   goImage,
		Mounts:  []driver.Mount{{HostPath: ws.Dir, ContainerPath: "/go/src/handler"}},
		Workdir: "/go/src/handler",
		Env:     []string{"EVENT=" + string(event)},
		Args:    []string{"go", "run", "handler.go"},
		Timeout: defaultColdTimeout * time.Second,
	})
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	return coldResultFromRun(res), nil
}
