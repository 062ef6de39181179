package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oriys/barq/internal/domain"
	"github.com/oriys/barq/internal/driver"
	"github.com/oriys/barq/internal/workspace"
)

// readySentinel is the single line a warm container prints exactly once
// after it has imported the user's entrypoint and entered its poll loop
// (spec §4.2.3, §6).
const readySentinel = "WARM_CONTAINER_READY"

// warmReadyPollInterval and warmReadyPollBound govern how long WarmUp waits
// for the ready sentinel before giving up (spec §4.2.3 default: 10s, 1s
// granularity).
const (
	warmReadyPollInterval = time.Second
	warmReadyPollBound    = 10
)

// dispatchPollInterval and dispatchPollBound govern RunWarm's wait for the
// response file (spec §4.2.4 default: 10s, 100ms granularity).
const (
	dispatchPollInterval = 100 * time.Millisecond
	dispatchPollBound    = 100
)

// envelope is the on-disk shape of /app/event_output.json (spec §6).
type envelope struct {
	Result json.RawMessage `json:"result"`
	Status string          `json:"status"`
}

// awaitReadySentinel polls driver.Logs for readySentinel up to
// warmReadyPollBound times. On success it returns nil; on timeout it
// returns a non-nil error and the caller must remove the container (spec
// §4.2.3).
func awaitReadySentinel(ctx context.Context, drv driver.ContainerDriver, containerID string) error {
	for i := 0; i < warmReadyPollBound; i++ {
		logs, err := drv.Logs(ctx, containerID)
		if err == nil && strings.Contains(logs, readySentinel) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(warmReadyPollInterval):
		}
	}
	return fmt.Errorf("runtime: warm readiness timed out after %ds", warmReadyPollBound)
}

// dispatchViaFileDrop writes event to the workspace's event_input.json and
// polls for event_output.json.
//
// The prototype this is modeled on wrote the request via
// `docker exec ... echo '<json>' > /app/event_input.json`, which corrupts
// the payload when it contains a single quote (spec §9, first open
// question). Because the workspace directory is already bind-mounted into
// the container at /app, writing the file directly on the host side (the
// same file, same path, same bytes) sidesteps the shell-escaping entirely
// without changing the on-the-wire contract — this is the "copy_in instead"
// fix the spec calls out, simplified one step further since no copy is
// needed when the mount already makes the path identical on both sides.
func dispatchViaFileDrop(ctx context.Context, ws *workspace.Workspace, event json.RawMessage) (domain.ExecutionResult, error) {
	if event == nil {
		event = json.RawMessage("null")
	}
	if err := os.WriteFile(ws.EventInputPath(), event, 0o644); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("runtime: write event_input.json: %w", err)
	}

	outPath := ws.EventOutputPath()
	for i := 0; i < dispatchPollBound; i++ {
		if data, err := os.ReadFile(outPath); err == nil {
			os.Remove(outPath)
			var env envelope
			if err := json.Unmarshal(data, &env); err != nil {
				return domain.ExecutionResult{}, fmt.Errorf("runtime: parse response envelope: %w", err)
			}
			result := domain.ExecutionResult{
				Result:  strings.Trim(string(env.Result), `"`),
				Success: env.Status == "success",
			}
			if !result.Success {
				result.Error = result.Result
			}
			return result, nil
		}
		select {
		case <-ctx.Done():
			return domain.ExecutionResult{}, ctx.Err()
		case <-time.After(dispatchPollInterval):
		}
	}
	// Timeout yields an error result but does not kill the container; the
	// caller (Invoker) decides its fate (spec §4.2.4).
	return domain.ExecutionResult{Success: false, Error: "warm dispatch timed out waiting for event_output.json"}, nil
}
