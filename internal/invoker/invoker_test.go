package invoker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriys/barq/internal/domain"
	"github.com/oriys/barq/internal/driver"
	"github.com/oriys/barq/internal/logsink"
	"github.com/oriys/barq/internal/pool"
	"github.com/oriys/barq/internal/registry"
	"github.com/oriys/barq/internal/runtime"
	"github.com/oriys/barq/internal/workspace"
)

// fakeStore is an in-memory registry.MetadataStore fake.
type fakeStore struct {
	fns       map[string]*domain.Function
	telemetry []*domain.Telemetry
}

func newFakeStore(fns ...*domain.Function) *fakeStore {
	s := &fakeStore{fns: map[string]*domain.Function{}}
	for _, fn := range fns {
		s.fns[fn.ID] = fn
	}
	return s
}

func (s *fakeStore) Close() error                     { return nil }
func (s *fakeStore) Ping(context.Context) error        { return nil }
func (s *fakeStore) SaveFunction(_ context.Context, fn *domain.Function) error {
	s.fns[fn.ID] = fn
	return nil
}
func (s *fakeStore) GetFunction(_ context.Context, id string) (*domain.Function, error) {
	fn, ok := s.fns[id]
	if !ok {
		return nil, registry.ErrFunctionNotFound
	}
	return fn, nil
}
func (s *fakeStore) DeleteFunction(_ context.Context, id string) error {
	delete(s.fns, id)
	return nil
}
func (s *fakeStore) ListFunctions(context.Context) ([]*domain.Function, error) { return nil, nil }
func (s *fakeStore) SaveTelemetry(_ context.Context, t *domain.Telemetry) error {
	s.telemetry = append(s.telemetry, t)
	return nil
}
func (s *fakeStore) SaveTelemetryBatch(_ context.Context, ts []*domain.Telemetry) error {
	s.telemetry = append(s.telemetry, ts...)
	return nil
}
func (s *fakeStore) ListTelemetry(context.Context, string, int) ([]*domain.Telemetry, error) {
	return nil, nil
}

// fakeAdapter lets each test script its cold/warm behavior.
type fakeAdapter struct {
	runCold    func(event json.RawMessage) (domain.ExecutionResult, error)
	runWarm    func(event json.RawMessage) (domain.ExecutionResult, error)
	warmOK     bool
	warmCalled bool
}

func (a *fakeAdapter) Prepare(*workspace.Workspace, string, string) error { return nil }

func (a *fakeAdapter) RunCold(_ context.Context, _ driver.ContainerDriver, _ *workspace.Workspace, _ string, event json.RawMessage) (domain.ExecutionResult, error) {
	return a.runCold(event)
}

func (a *fakeAdapter) SupportsWarm() bool { return a.runWarm != nil || a.warmOK }

func (a *fakeAdapter) WarmUp(context.Context, driver.ContainerDriver, string, *workspace.Workspace, string, string) (string, bool) {
	a.warmCalled = true
	if a.warmOK {
		return "warm-container-1", true
	}
	return "", false
}

func (a *fakeAdapter) RunWarm(_ context.Context, _ driver.ContainerDriver, _ *workspace.Workspace, _ string, event json.RawMessage) (domain.ExecutionResult, error) {
	return a.runWarm(event)
}

func (a *fakeAdapter) CleanupWarm(context.Context, driver.ContainerDriver, string) {}

type fakeResolver struct{ adapter runtime.Adapter }

func (r *fakeResolver) Resolve(domain.Runtime) (runtime.Adapter, error) { return r.adapter, nil }

type noopDriver struct{}

func (noopDriver) RunOneshot(context.Context, driver.OneshotSpec) (driver.RunResult, error) {
	return driver.RunResult{}, nil
}
func (noopDriver) StartDetached(context.Context, driver.DetachedSpec) (string, error) { return "", nil }
func (noopDriver) ExecIn(context.Context, string, []string, time.Duration) (driver.RunResult, error) {
	return driver.RunResult{}, nil
}
func (noopDriver) Logs(context.Context, string) (string, error)       { return "", nil }
func (noopDriver) CopyIn(context.Context, string, string, string) error  { return nil }
func (noopDriver) CopyOut(context.Context, string, string, string) error { return nil }
func (noopDriver) Remove(context.Context, string) error                 { return nil }

func newTestInvoker(t *testing.T, fn *domain.Function, adapter runtime.Adapter) (*Invoker, *fakeStore, *pool.Pool) {
	t.Helper()
	store := newFakeStore(fn)
	drv := noopDriver{}
	p := pool.New(drv, 10, time.Minute)
	t.Cleanup(func() { p.Shutdown(context.Background()) })
	wsDir := t.TempDir()
	wsMgr, err := workspace.NewManager(wsDir)
	require.NoError(t, err)
	resolver := &fakeResolver{adapter: adapter}
	inv := New(store, p, resolver, wsMgr, drv, logsink.NewRegistryStore(store))
	return inv, store, p
}

func TestInvokeColdPathSuccess(t *testing.T) {
	fn := &domain.Function{ID: "f1", Runtime: domain.RuntimePython310, Entrypoint: "main"}
	adapter := &fakeAdapter{
		runCold: func(event json.RawMessage) (domain.ExecutionResult, error) {
			return domain.ExecutionResult{Success: true, Result: "42"}, nil
		},
	}
	inv, store, _ := newTestInvoker(t, fn, adapter)

	resp, err := inv.Invoke(context.Background(), "f1", json.RawMessage(`{"x":41}`))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, domain.ExecutionCold, resp.Performance.ExecutionType)
	assert.Equal(t, json.RawMessage("42"), resp.Output)
	assert.Len(t, store.telemetry, 1)
}

func TestInvokeFunctionNotFound(t *testing.T) {
	inv, _, _ := newTestInvoker(t, &domain.Function{ID: "other"}, &fakeAdapter{})
	_, err := inv.Invoke(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFunctionNotFound)
}

func TestInvokeWarmPathReused(t *testing.T) {
	fn := &domain.Function{ID: "f1", Runtime: domain.RuntimePython310, Entrypoint: "main"}
	adapter := &fakeAdapter{
		warmOK: true,
		runWarm: func(event json.RawMessage) (domain.ExecutionResult, error) {
			return domain.ExecutionResult{Success: true, Result: "1"}, nil
		},
	}
	inv, _, p := newTestInvoker(t, fn, adapter)
	p.Insert(context.Background(), "f1", fn.Runtime, "warm-container-1")

	resp, err := inv.Invoke(context.Background(), "f1", json.RawMessage(`{"x":0}`))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, domain.ExecutionReused, resp.Performance.ExecutionType)

	stats := p.Stats()
	assert.Equal(t, 1, stats.Free, "returned container should be free again")
}

func TestInvokeWarmPathFallsBackToCold(t *testing.T) {
	fn := &domain.Function{ID: "f1", Runtime: domain.RuntimePython310, Entrypoint: "main"}
	// warmOK stays false so the opportunistic warm-up after the cold
	// success cannot re-insert a container before the pool is inspected.
	adapter := &fakeAdapter{
		runWarm: func(json.RawMessage) (domain.ExecutionResult, error) {
			return domain.ExecutionResult{}, assert.AnError
		},
		runCold: func(json.RawMessage) (domain.ExecutionResult, error) {
			return domain.ExecutionResult{Success: true, Result: "fallback"}, nil
		},
	}
	inv, _, p := newTestInvoker(t, fn, adapter)
	p.Insert(context.Background(), "f1", fn.Runtime, "warm-container-1")

	resp, err := inv.Invoke(context.Background(), "f1", nil)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, domain.ExecutionCold, resp.Performance.ExecutionType)

	stats := p.Stats()
	assert.Equal(t, 0, stats.Total, "failed warm container should be evicted")
}

func TestInvokeColdPathFailureReturnsErrorEnvelope(t *testing.T) {
	fn := &domain.Function{ID: "f1", Runtime: domain.RuntimeNode20, Entrypoint: "handler"}
	adapter := &fakeAdapter{
		runCold: func(json.RawMessage) (domain.ExecutionResult, error) {
			return domain.ExecutionResult{Success: false, Error: "boom"}, nil
		},
	}
	inv, store, _ := newTestInvoker(t, fn, adapter)

	resp, err := inv.Invoke(context.Background(), "f1", nil)
	require.NoError(t, err, "cold-path failure is an error envelope, not a returned error")
	assert.False(t, resp.Success)
	assert.Equal(t, "boom", resp.Error)
	require.Len(t, store.telemetry, 1)
	assert.False(t, store.telemetry[0].Success)
}
