// Package logsink defines an abstraction for invocation telemetry
// persistence (spec.md §4.4 step 5: "hand the execution-result envelope
// and timings to the external log sink"). The default sink writes through
// to the registry's PostgreSQL-backed invocation_telemetry table; the
// interface leaves room for routing to an external analytics system
// without touching the Invoker.
package logsink

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/oriys/barq/internal/domain"
)

// LogSink abstracts the destination for invocation telemetry.
// Implementations must be safe for concurrent use. A sink failure is
// logged by the caller but never surfaced to the invocation's own return
// value (spec §4.4 step 5).
type LogSink interface {
	Save(ctx context.Context, t *domain.Telemetry) error
	SaveBatch(ctx context.Context, ts []*domain.Telemetry) error
	Close() error
}

// store is the narrow slice of registry.MetadataStore this package
// depends on, so it does not need to import registry directly and create
// an import cycle with it.
type store interface {
	SaveTelemetry(ctx context.Context, t *domain.Telemetry) error
	SaveTelemetryBatch(ctx context.Context, ts []*domain.Telemetry) error
}

// RegistryStore writes telemetry straight through to the registry.
type RegistryStore struct {
	store store
}

// NewRegistryStore creates a LogSink backed by the given registry store.
func NewRegistryStore(s store) *RegistryStore {
	return &RegistryStore{store: s}
}

func (s *RegistryStore) Save(ctx context.Context, t *domain.Telemetry) error {
	return s.store.SaveTelemetry(ctx, t)
}

func (s *RegistryStore) SaveBatch(ctx context.Context, ts []*domain.Telemetry) error {
	return s.store.SaveTelemetryBatch(ctx, ts)
}

func (s *RegistryStore) Close() error { return nil }

// MultiSink fans out telemetry writes to multiple sinks, e.g. the registry
// plus an external analytics system during a migration period.
type MultiSink struct {
	sinks []LogSink
}

// NewMultiSink creates a LogSink that writes to all provided sinks. The
// first error encountered from any sink is returned.
func NewMultiSink(primary LogSink, secondary ...LogSink) *MultiSink {
	sinks := make([]LogSink, 0, 1+len(secondary))
	sinks = append(sinks, primary)
	sinks = append(sinks, secondary...)
	return &MultiSink{sinks: sinks}
}

// Save fans out to every sink concurrently and returns the first error
// encountered, after all sinks have been given a chance to write.
func (m *MultiSink) Save(ctx context.Context, t *domain.Telemetry) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range m.sinks {
		sink := sink
		g.Go(func() error { return sink.Save(gctx, t) })
	}
	return g.Wait()
}

func (m *MultiSink) SaveBatch(ctx context.Context, ts []*domain.Telemetry) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range m.sinks {
		sink := sink
		g.Go(func() error { return sink.SaveBatch(gctx, ts) })
	}
	return g.Wait()
}

func (m *MultiSink) Close() error {
	var firstErr error
	for _, sink := range m.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NoopSink discards all telemetry. Useful for tests or when persistence is
// handled entirely by an external observability pipeline.
type NoopSink struct{}

func NewNoopSink() *NoopSink { return &NoopSink{} }

func (n *NoopSink) Save(context.Context, *domain.Telemetry) error       { return nil }
func (n *NoopSink) SaveBatch(context.Context, []*domain.Telemetry) error { return nil }
func (n *NoopSink) Close() error                                        { return nil }
