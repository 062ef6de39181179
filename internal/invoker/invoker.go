// Package invoker implements the Invoker (C4): the single entry point that
// ties the registry, the warm pool, the runtime adapters, and the
// workspace manager together into spec.md §4.4's invoke algorithm.
//
// # Pipeline
//
//  1. Metadata fetch from the registry. A miss is surfaced to the caller
//     as ErrFunctionNotFound.
//  2. Borrow attempt against the warm pool.
//  3. Warm path: run_warm on the resolved adapter; success returns the
//     container to the pool tagged "reused", failure evicts it and falls
//     through to cold.
//  4. Cold path: prepare + run_cold, timed as coldstart_ms; on success an
//     opportunistic, fire-and-forget warm-up is kicked off for warm-capable
//     runtimes.
//  5. Telemetry is handed to the log sink regardless of outcome; sink
//     failures are logged, never surfaced.
//
// # Concurrency
//
// Invoke is safe for concurrent use, including concurrent calls for the
// same function. The pool's own mutex is the only synchronization point;
// the Invoker holds no state across invocations beyond what it reads from
// its collaborators.
package invoker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oriys/barq/internal/domain"
	"github.com/oriys/barq/internal/driver"
	"github.com/oriys/barq/internal/logging"
	"github.com/oriys/barq/internal/logsink"
	"github.com/oriys/barq/internal/metrics"
	"github.com/oriys/barq/internal/observability"
	"github.com/oriys/barq/internal/pool"
	"github.com/oriys/barq/internal/registry"
	"github.com/oriys/barq/internal/runtime"
	"github.com/oriys/barq/internal/workspace"
)

// ErrFunctionNotFound is returned when the registry has no record for the
// requested function id (spec §4.4 step 1, §7).
var ErrFunctionNotFound = registry.ErrFunctionNotFound

// ErrRuntimeUnsupported is returned when the function's runtime tag has no
// matching adapter (spec §4.4 step 2, §7).
var ErrRuntimeUnsupported = runtime.ErrUnsupportedRuntime

// Resolver resolves a runtime tag to its adapter. *runtime.Registry
// satisfies this; tests supply a fake.
type Resolver interface {
	Resolve(rt domain.Runtime) (runtime.Adapter, error)
}

// Invoker is the C4 component. The zero value is not usable; construct via
// New.
type Invoker struct {
	registry  registry.MetadataStore
	pool      *pool.Pool
	runtimes  Resolver
	workspace *workspace.Manager
	drv       driver.ContainerDriver
	sink      logsink.LogSink

	coldTimeout           time.Duration
	perInvocationLogFiles bool
}

// New builds an Invoker wired to its collaborators.
func New(reg registry.MetadataStore, p *pool.Pool, runtimes Resolver, ws *workspace.Manager, drv driver.ContainerDriver, sink logsink.LogSink) *Invoker {
	if sink == nil {
		sink = logsink.NewNoopSink()
	}
	return &Invoker{
		registry:    reg,
		pool:        p,
		runtimes:    runtimes,
		workspace:   ws,
		drv:         drv,
		sink:        sink,
		coldTimeout: 10 * time.Second,
	}
}

// SetPerInvocationLogFiles toggles the optional per-invocation .log file
// write into the function's workspace logs/ directory (SPEC_FULL.md
// supplemented feature #2), default off.
func (inv *Invoker) SetPerInvocationLogFiles(enabled bool) {
	inv.perInvocationLogFiles = enabled
}

// Invoke runs a function end to end and returns an InvokeResponse even on a
// failed cold execution (spec §4.4, §7). A non-nil error is returned only
// when no execution could be attempted: a registry miss or registry
// failure, an unsupported runtime, or a failure to create or prepare the
// workspace.
func (inv *Invoker) Invoke(ctx context.Context, funcID string, event json.RawMessage) (*domain.InvokeResponse, error) {
	totalStart := time.Now()

	ctx, span := observability.StartSpan(ctx, "invoker.invoke", observability.AttrFunctionID.String(funcID))
	defer span.End()

	fn, err := inv.registry.GetFunction(ctx, funcID)
	if err != nil {
		if errors.Is(err, registry.ErrFunctionNotFound) {
			observability.SetSpanError(span, err)
			return nil, fmt.Errorf("invoker: %w", ErrFunctionNotFound)
		}
		observability.SetSpanError(span, err)
		return nil, fmt.Errorf("invoker: fetch function metadata: %w", err)
	}
	span.SetAttributes(observability.AttrRuntime.String(string(fn.Runtime)))

	adapter, err := inv.runtimes.Resolve(fn.Runtime)
	if err != nil {
		observability.SetSpanError(span, err)
		return nil, fmt.Errorf("invoker: %w", err)
	}

	ws, err := inv.workspace.Ensure(fn.ID)
	if err != nil {
		observability.SetSpanError(span, err)
		return nil, fmt.Errorf("invoker: ensure workspace: %w", err)
	}

	var (
		result        domain.ExecutionResult
		executionType = domain.ExecutionCold
		coldstartMs   int64
		containerID   string
	)

	if id, ok := inv.pool.Borrow(fn.ID); ok {
		warmStart := time.Now()
		result, err = adapter.RunWarm(ctx, inv.drv, ws, id, event)
		warmMs := time.Since(warmStart).Milliseconds()
		metrics.RecordWarmDispatch(warmMs)

		if err == nil && result.Success {
			inv.pool.Return(id)
			executionType = domain.ExecutionReused
			containerID = id
		} else {
			logging.Op().Warn("invoker: warm dispatch failed, falling back to cold", "func_id", fn.ID, "container_id", id, "err", err)
			adapter.CleanupWarm(ctx, inv.drv, id)
			inv.pool.Remove(ctx, id)
			result = domain.ExecutionResult{}
		}
	}

	if executionType != domain.ExecutionReused {
		if err := adapter.Prepare(ws, fn.Code, fn.Entrypoint); err != nil {
			observability.SetSpanError(span, err)
			return nil, fmt.Errorf("invoker: prepare workspace: %w", err)
		}

		coldStart := time.Now()
		result, err = adapter.RunCold(ctx, inv.drv, ws, fn.Entrypoint, event)
		coldstartMs = time.Since(coldStart).Milliseconds()
		metrics.RecordColdstart(coldstartMs)
		if err != nil {
			result = domain.ExecutionResult{Success: false, Error: err.Error()}
		}
		executionType = domain.ExecutionCold

		if result.Success && adapter.SupportsWarm() {
			go inv.warmUpAsync(fn, ws)
		}
	}

	totalMs := time.Since(totalStart).Milliseconds()
	metrics.RecordInvocation(string(fn.Runtime), string(executionType), result.Success, totalMs)

	var output json.RawMessage
	if result.Success {
		output = marshalOutput(result.Result)
	}

	telemetry := domain.Telemetry{
		FuncID:        fn.ID,
		Timestamp:     time.Now(),
		ExecutionType: executionType,
		ColdstartMs:   coldstartMs,
		TotalMs:       totalMs,
		ContainerID:   containerID,
		Output:        result.Result,
		Success:       result.Success,
		Event:         event,
	}
	inv.logTelemetry(ctx, &telemetry, ws, result.Error)

	span.SetAttributes(
		observability.AttrExecutionType.String(string(executionType)),
		observability.AttrDurationMs.Int64(totalMs),
		observability.AttrContainerID.String(containerID),
	)
	if !result.Success {
		observability.SetSpanError(span, errors.New(result.Error))
	} else {
		observability.SetSpanOK(span)
	}

	return &domain.InvokeResponse{
		Output:      output,
		Success:     result.Success,
		Error:       result.Error,
		Performance: telemetry,
	}, nil
}

// marshalOutput wraps a raw function result string as a JSON string value
// unless it is already a JSON document, matching the cold-execution output
// contract (spec §6: stdout stringified).
func marshalOutput(s string) json.RawMessage {
	var js json.RawMessage
	if json.Unmarshal([]byte(s), &js) == nil {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return b
}

// warmUpAsync performs the opportunistic warm-up fire-and-forget per spec
// §4.4 step 4c. Failures are logged and never surfaced.
func (inv *Invoker) warmUpAsync(fn *domain.Function, ws *workspace.Workspace) {
	adapter, err := inv.runtimes.Resolve(fn.Runtime)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	containerID, ok := adapter.WarmUp(ctx, inv.drv, fn.ID, ws, fn.Code, fn.Entrypoint)
	if !ok {
		logging.Op().Debug("invoker: opportunistic warm-up failed", "func_id", fn.ID)
		return
	}
	inv.pool.Insert(ctx, fn.ID, fn.Runtime, containerID)
}

func (inv *Invoker) logTelemetry(ctx context.Context, t *domain.Telemetry, ws *workspace.Workspace, errMsg string) {
	traceID, spanID := observability.GetTraceID(ctx), observability.GetSpanID(ctx)
	opLog := logging.OpWithTrace(traceID, spanID)

	if err := inv.sink.Save(ctx, t); err != nil {
		opLog.Warn("invoker: telemetry sink write failed", "func_id", t.FuncID, "err", err)
	}

	entry := &logging.RequestLog{
		Timestamp:     t.Timestamp,
		TraceID:       traceID,
		SpanID:        spanID,
		FunctionID:    t.FuncID,
		ExecutionType: string(t.ExecutionType),
		DurationMs:    t.TotalMs,
		Success:       t.Success,
		Error:         errMsg,
		InputSize:     len(t.Event),
		OutputSize:    len(t.Output),
	}
	logging.Default().Log(entry)

	if inv.perInvocationLogFiles && ws != nil {
		if err := logging.WritePerInvocationLog(ws.LogsDir(), entry); err != nil {
			opLog.Warn("invoker: per-invocation log file write failed", "func_id", t.FuncID, "err", err)
		}
	}
}

// Shutdown tears down the warm pool and drains nothing else; the Invoker
// itself holds no other background resources.
func (inv *Invoker) Shutdown(ctx context.Context) {
	inv.pool.Shutdown(ctx)
}
