// Package workspace manages the per-function scratch directory (C5) that is
// bind-mounted as the container volume for every cold and warm execution of
// a function. It is created lazily on first Prepare and never cleared
// between invocations: warm containers depend on its files persisting while
// attached (spec §4.5).
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/oriys/barq/internal/pkg/crypto"
)

// Descriptor is the `function.yaml` sidecar written alongside the user's
// source file, carried over from the prototype's
// function_service.save_function (SPEC_FULL.md supplemented feature #1).
// It exists for operator debuggability; the engine itself reads entrypoint
// and runtime from the registry record, not from this file.
type Descriptor struct {
	Entrypoint string `yaml:"entrypoint"`
	Runtime    string `yaml:"runtime"`
	Handler    string `yaml:"handler"`
	CodeDigest string `yaml:"code_digest"`
}

// Workspace is the directory `<base>/<func_id>`.
type Workspace struct {
	FuncID string
	Dir    string
}

// Manager resolves and creates workspaces under a single base directory.
type Manager struct {
	BaseDir string
}

// NewManager returns a Manager rooted at baseDir, creating it if absent.
func NewManager(baseDir string) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: create base dir: %w", err)
	}
	return &Manager{BaseDir: baseDir}, nil
}

// For derives the workspace path for a function deterministically; it does
// not touch the filesystem. Use Ensure to create it.
func (m *Manager) For(funcID string) *Workspace {
	return &Workspace{FuncID: funcID, Dir: filepath.Join(m.BaseDir, funcID)}
}

// Ensure creates the workspace directory if it does not already exist.
func (m *Manager) Ensure(funcID string) (*Workspace, error) {
	ws := m.For(funcID)
	if err := os.MkdirAll(ws.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: create %s: %w", ws.Dir, err)
	}
	if err := os.MkdirAll(ws.LogsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("workspace: create logs dir: %w", err)
	}
	return ws, nil
}

// Path joins name onto the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// LogsDir is the per-invocation log directory (SPEC_FULL.md supplemented
// feature #2), carried over from function_service.invoke_function.
func (w *Workspace) LogsDir() string {
	return filepath.Join(w.Dir, "logs")
}

// EventInputPath and EventOutputPath are the fixed file-drop contract paths
// as seen from the host, mirroring /app/event_input.json and
// /app/event_output.json inside the container (spec §6).
func (w *Workspace) EventInputPath() string  { return w.Path("event_input.json") }
func (w *Workspace) EventOutputPath() string { return w.Path("event_output.json") }

// WriteSource writes the user's code to filename, overwriting any existing
// content. Idempotent per spec §4.2.1.
func (w *Workspace) WriteSource(filename, code string) error {
	return os.WriteFile(w.Path(filename), []byte(code), 0o644)
}

// WriteDescriptor writes the function.yaml sidecar. If d.CodeDigest is
// empty it is filled in from the already-written source file, so callers
// don't need to hash the code themselves.
func (w *Workspace) WriteDescriptor(d Descriptor, sourceFilename string) error {
	if d.CodeDigest == "" {
		if code, err := os.ReadFile(w.Path(sourceFilename)); err == nil {
			d.CodeDigest = crypto.HashString(string(code))
		}
	}
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("workspace: marshal descriptor: %w", err)
	}
	return os.WriteFile(w.Path("function.yaml"), data, 0o644)
}

// WriteMetadata writes a runtime-specific metadata.json sidecar. Python's
// adapter uses this to record the entrypoint (spec §4.2.1). The generated
// bootstraps embed the module and symbol directly and do not read this
// file.
func (w *Workspace) WriteMetadata(content []byte) error {
	return os.WriteFile(w.Path("metadata.json"), content, 0o644)
}

// WriteBootstrap writes a generated bootstrap script into the workspace.
func (w *Workspace) WriteBootstrap(filename, content string) error {
	return os.WriteFile(w.Path(filename), []byte(content), 0o644)
}
