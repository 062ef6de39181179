package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oriys/barq/internal/domain"
	"github.com/oriys/barq/internal/driver"
	"github.com/oriys/barq/internal/workspace"
)

const pythonImage = "python:3.11-slim"

// PythonAdapter is the only warm-capable runtime family today (spec §9).
type PythonAdapter struct{}

func NewPythonAdapter() *PythonAdapter { return &PythonAdapter{} }

func (a *PythonAdapter) Prepare(ws *workspace.Workspace, code, entrypoint string) error {
	if err := ws.WriteSource("handler.py", code); err != nil {
		return fmt.Errorf("python: write handler.py: %w", err)
	}
	meta, _ := json.Marshal(map[string]string{"entrypoint": entrypoint})
	if err := ws.WriteMetadata(meta); err != nil {
		return fmt.Errorf("python: write metadata.json: %w", err)
	}
	if err := ws.WriteDescriptor(workspace.Descriptor{Entrypoint: entrypoint, Runtime: "python", Handler: entrypoint}, "handler.py"); err != nil {
		return fmt.Errorf("python: write function.yaml: %w", err)
	}
	return nil
}

func (a *PythonAdapter) RunCold(ctx context.Context, drv driver.ContainerDriver, ws *workspace.Workspace, entrypoint string, event json.RawMessage) (domain.ExecutionResult, error) {
	module, symbol := splitEntrypoint(entrypoint)
	literal, err := jsonToPyLiteral(event)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("python: event must be JSON-serializable: %w", err)
	}
	if err := ws.WriteBootstrap("event.py", "event = "+literal+"\n"); err != nil {
		return domain.ExecutionResult{}, err
	}
	bootstrap := fmt.Sprintf(
		"import event as _event_mod\nimport %s as _handler_mod\nresult = _handler_mod.%s(_event_mod.event)\nprint(result)\n",
		module, symbol,
	)
	if err := ws.WriteBootstrap("run.py", bootstrap); err != nil {
		return domain.ExecutionResult{}, err
	}

	res, err := drv.RunOneshot(ctx, driver.OneshotSpec{
		Image:   pythonImage,
		Mounts:  []driver.Mount{{HostPath: ws.Dir, ContainerPath: "/app"}},
		Workdir: "/app",
		Args:    []string{"python", "run.py"},
		Timeout: defaultColdTimeout * time.Second,
	})
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	return coldResultFromRun(res), nil
}

func (a *PythonAdapter) SupportsWarm() bool { return true }

func (a *PythonAdapter) WarmUp(ctx context.Context, drv driver.ContainerDriver, funcID string, ws *workspace.Workspace, code, entrypoint string) (string, bool) {
	if err := a.Prepare(ws, code, entrypoint); err != nil {
		return "", false
	}
	module, symbol := splitEntrypoint(entrypoint)
	warmLoop := fmt.Sprintf(`import json
import os
import sys
import time

import %s as _handler_mod

sys.stdout.write("%s\n")
sys.stdout.flush()

_input_path = "/app/event_input.json"
_output_path = "/app/event_output.json"

while True:
    if os.path.exists(_input_path):
        with open(_input_path) as f:
            event = json.load(f)
        os.remove(_input_path)
        try:
            result = _handler_mod.%s(event)
            status = "success"
        except Exception as exc:
            result = str(exc)
            status = "error"
        with open(_output_path, "w") as f:
            json.dump({"result": result, "status": status}, f)
    time.sleep(0.1)
`, module, readySentinel, symbol)
	if err := ws.WriteBootstrap("warm_run.py", warmLoop); err != nil {
		return "", false
	}

	name := fmt.Sprintf("barq-warm-python-%s-%s", funcID, uuid.NewString()[:8])
	containerID, err := drv.StartDetached(ctx, driver.DetachedSpec{
		Image:   pythonImage,
		Mounts:  []driver.Mount{{HostPath: ws.Dir, ContainerPath: "/app"}},
		Workdir: "/app",
		Args:    []string{"python", "warm_run.py"},
		Name:    name,
	})
	if err != nil {
		return "", false
	}

	if err := awaitReadySentinel(ctx, drv, containerID); err != nil {
		drv.Remove(ctx, containerID)
		return "", false
	}
	return containerID, true
}

func (a *PythonAdapter) RunWarm(ctx context.Context, drv driver.ContainerDriver, ws *workspace.Workspace, containerID string, event json.RawMessage) (domain.ExecutionResult, error) {
	return dispatchViaFileDrop(ctx, ws, event)
}

func (a *PythonAdapter) CleanupWarm(ctx context.Context, drv driver.ContainerDriver, containerID string) {
	drv.Remove(ctx, containerID)
}

// coldResultFromRun maps a one-shot driver result onto the cold-execution
// output contract: stdout on exit 0, stderr otherwise (spec §6).
func coldResultFromRun(res driver.RunResult) domain.ExecutionResult {
	if res.ExitCode == 0 {
		return domain.ExecutionResult{Result: strings.TrimRight(res.Stdout, "\n"), Success: true}
	}
	return domain.ExecutionResult{Success: false, Error: strings.TrimSpace(res.Stderr)}
}

// jsonToPyLiteral renders JSON bytes as a Python literal so the generated
// cold bootstrap can bind it directly without a JSON-decode step, matching
// the original_source Python runtime's `"event = " + str(event)` sibling
// file convention (the event being a dict str()'d, not JSON text).
func jsonToPyLiteral(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	return renderPyLiteral(v), nil
}

func renderPyLiteral(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case bool:
		if val {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case string:
		b, _ := json.Marshal(val)
		return string(b)
	case []interface{}:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = renderPyLiteral(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]interface{}:
		parts := make([]string, 0, len(val))
		for k, e := range val {
			kb, _ := json.Marshal(k)
			parts = append(parts, string(kb)+": "+renderPyLiteral(e))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "None"
	}
}
