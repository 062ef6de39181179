package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WritePerInvocationLog writes a single timestamped JSON log file into dir,
// the per-invocation log file feature carried over from the prototype's
// function_service.invoke_function (SPEC_FULL.md supplemented feature #2).
// It is a debuggability convenience, gated by Config.Daemon.PerInvocationLogFiles;
// the append-only telemetry sink remains the source of truth.
func WritePerInvocationLog(dir string, entry *RequestLog) error {
	name := fmt.Sprintf("%s-%s.log", entry.Timestamp.Format("20060102T150405.000000000"), entry.ExecutionType)
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("logging: marshal per-invocation log: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}
