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

const nodeImage = "node:20-slim"

// NodeAdapter is cold-only (spec §9).
type NodeAdapter struct {
	NoWarm
}

func NewNodeAdapter() *NodeAdapter { return &NodeAdapter{} }

func (a *NodeAdapter) Prepare(ws *workspace.Workspace, code, entrypoint string) error {
	if err := ws.WriteSource("index.js", code); err != nil {
		return fmt.Errorf("node: write index.js: %w", err)
	}
	if err := ws.WriteDescriptor(workspace.Descriptor{Entrypoint: entrypoint, Runtime: "nodejs", Handler: entrypoint}, "index.js"); err != nil {
		return fmt.Errorf("node: write function.yaml: %w", err)
	}
	return nil
}

func (a *NodeAdapter) RunCold(ctx context.Context, drv driver.ContainerDriver, ws *workspace.Workspace, entrypoint string, event json.RawMessage) (domain.ExecutionResult, error) {
	_, symbol := splitEntrypoint(entrypoint)
	if len(event) == 0 {
		event = json.RawMessage("null")
	}
	bootstrap := fmt.Sprintf(`const event = %s;
const handlerModule = require("./index.js");
(async () => {
  try {
    const result = await handlerModule.%s(event);
    console.log(typeof result === "string" ? result : JSON.stringify(result));
  } catch (err) {
    console.error(err && err.stack ? err.stack : String(err));
    process.exit(1);
  }
})();
`, string(event), symbol)
	if err := ws.WriteBootstrap("run.js", bootstrap); err != nil {
		return domain.ExecutionResult{}, err
	}

	res, err := drv.RunOneshot(ctx, driver.OneshotSpec{
		Image:   nodeImage,
		Mounts:  []driver.Mount{{HostPath: ws.Dir, ContainerPath: "/app"}},
		Workdir: "/app",
		Args:    []string{"node", "run.js"},
		Timeout: defaultColdTimeout * time.Second,
	})
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	return coldResultFromRun(res), nil
}
