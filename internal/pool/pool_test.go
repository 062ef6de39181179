package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriys/barq/internal/domain"
	"github.com/oriys/barq/internal/driver"
)

// driverStub satisfies driver.ContainerDriver with no-op bodies beyond
// Remove, which is all the pool exercises directly.
type driverStub struct {
	mu      sync.Mutex
	removed []string
}

func (d *driverStub) RunOneshot(context.Context, driver.OneshotSpec) (driver.RunResult, error) {
	return driver.RunResult{}, nil
}

func (d *driverStub) StartDetached(context.Context, driver.DetachedSpec) (string, error) {
	return "", nil
}

func (d *driverStub) ExecIn(context.Context, string, []string, time.Duration) (driver.RunResult, error) {
	return driver.RunResult{}, nil
}

func (d *driverStub) Logs(context.Context, string) (string, error) { return "", nil }

func (d *driverStub) CopyIn(context.Context, string, string, string) error  { return nil }
func (d *driverStub) CopyOut(context.Context, string, string, string) error { return nil }

func (d *driverStub) Remove(_ context.Context, containerID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removed = append(d.removed, containerID)
	return nil
}

func (d *driverStub) removedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.removed)
}

func newPoolForTest(max int, ttl time.Duration) (*Pool, *driverStub) {
	d := &driverStub{}
	return New(d, max, ttl), d
}

func TestBorrowReturnRoundTrip(t *testing.T) {
	p, _ := newPoolForTest(10, time.Minute)
	defer p.Shutdown(context.Background())

	p.Insert(context.Background(), "fn-1", domain.RuntimePython311, "c1")

	id, ok := p.Borrow("fn-1")
	require.True(t, ok)
	assert.Equal(t, "c1", id)

	_, ok = p.Borrow("fn-1")
	assert.False(t, ok, "second borrow should find no free container")

	assert.True(t, p.Return("c1"))

	id, ok = p.Borrow("fn-1")
	require.True(t, ok)
	assert.Equal(t, "c1", id)
}

func TestBorrowUnknownFunction(t *testing.T) {
	p, _ := newPoolForTest(10, time.Minute)
	defer p.Shutdown(context.Background())

	_, ok := p.Borrow("missing")
	assert.False(t, ok)
}

func TestReturnUnknownContainer(t *testing.T) {
	p, _ := newPoolForTest(10, time.Minute)
	defer p.Shutdown(context.Background())

	assert.False(t, p.Return("ghost"))
}

func TestInsertEvictsOldestIdleAtCapacity(t *testing.T) {
	p, d := newPoolForTest(2, time.Minute)
	defer p.Shutdown(context.Background())

	p.Insert(context.Background(), "fn-1", domain.RuntimePython311, "c1")
	time.Sleep(2 * time.Millisecond)
	p.Insert(context.Background(), "fn-1", domain.RuntimePython311, "c2")
	time.Sleep(2 * time.Millisecond)
	p.Insert(context.Background(), "fn-1", domain.RuntimePython311, "c3")

	stats := p.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Eventually(t, func() bool { return d.removedCount() == 1 }, time.Second, time.Millisecond)
}

func TestInsertSkipsEvictionWhenAllInUse(t *testing.T) {
	p, _ := newPoolForTest(1, time.Minute)
	defer p.Shutdown(context.Background())

	p.Insert(context.Background(), "fn-1", domain.RuntimePython311, "c1")
	_, ok := p.Borrow("fn-1")
	require.True(t, ok)

	p.Insert(context.Background(), "fn-1", domain.RuntimePython311, "c2")

	stats := p.Stats()
	assert.Equal(t, 2, stats.Total, "cap is soft under contention: insert proceeds without eviction")
}

func TestRemoveIsIdempotent(t *testing.T) {
	p, d := newPoolForTest(10, time.Minute)
	defer p.Shutdown(context.Background())

	p.Insert(context.Background(), "fn-1", domain.RuntimePython311, "c1")
	p.Remove(context.Background(), "c1")
	p.Remove(context.Background(), "c1")

	assert.Equal(t, 1, d.removedCount())
	_, ok := p.Borrow("fn-1")
	assert.False(t, ok)
}

func TestReapRemovesStaleIdleContainers(t *testing.T) {
	p, d := newPoolForTest(10, 10*time.Millisecond)
	defer p.Shutdown(context.Background())

	p.Insert(context.Background(), "fn-1", domain.RuntimePython311, "c1")
	time.Sleep(20 * time.Millisecond)

	p.reapOnce()

	assert.Equal(t, 1, d.removedCount())
	stats := p.Stats()
	assert.Equal(t, 0, stats.Total)
}

func TestReapNeverRemovesInUseContainer(t *testing.T) {
	p, d := newPoolForTest(10, 10*time.Millisecond)
	defer p.Shutdown(context.Background())

	p.Insert(context.Background(), "fn-1", domain.RuntimePython311, "c1")
	_, ok := p.Borrow("fn-1")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	p.reapOnce()

	assert.Equal(t, 0, d.removedCount())
}

func TestShutdownRemovesEverythingAndStopsReaper(t *testing.T) {
	p, d := newPoolForTest(10, time.Minute)

	p.Insert(context.Background(), "fn-1", domain.RuntimePython311, "c1")
	p.Insert(context.Background(), "fn-2", domain.RuntimePython311, "c2")

	p.Shutdown(context.Background())

	assert.Equal(t, 2, d.removedCount())
	stats := p.Stats()
	assert.Equal(t, 0, stats.Total)
}
