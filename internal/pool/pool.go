// Package pool implements the Warm Pool (C3): a single shared,
// concurrency-safe index of pre-initialized containers reused across
// invocations of the same function.
//
// # Topology
//
// The pool keeps a primary index (container_id -> *domain.WarmContainer)
// and a secondary index (func_id -> ordered []container_id, insertion
// order, duplicates forbidden) as described by spec §4.3. A single mutex
// serializes every mutation of both indices; the backing container removal
// issued by Remove is allowed to happen outside the lock since it is a
// slow external call, but the indices are always updated first so the pool
// can never hand out an id that is already gone.
//
// # Failure behaviour
//
// Borrow returns ("", false) when the function has no free warm container;
// this is not an error, it signals the Invoker to fall through to the cold
// path. Return reports false when the id is unknown (the container may
// have been evicted while in use); the caller is then responsible for
// tearing down the container itself.
package pool

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/oriys/barq/internal/domain"
	"github.com/oriys/barq/internal/driver"
	"github.com/oriys/barq/internal/logging"
	"github.com/oriys/barq/internal/metrics"
)

const (
	DefaultMaxContainers = 10
	DefaultTTL           = 300 * time.Second
	reapInterval         = 30 * time.Second
)

// entry is the pool's internal bookkeeping record in the primary index,
// wrapping the externally-visible domain.WarmContainer. Oldest-idle
// eviction scans the primary index directly.
type entry struct {
	rec *domain.WarmContainer
}

// Pool is the warm-container index described by spec §4.3.
type Pool struct {
	drv driver.ContainerDriver

	maxContainers int
	ttl           time.Duration

	mu      sync.Mutex
	byID    map[string]*entry
	byFunc  map[string]*list.List // func_id -> *list.List of container_id (string)
	closing bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New builds a Pool bound to drv. maxContainers <= 0 and ttl <= 0 fall back
// to the spec defaults.
func New(drv driver.ContainerDriver, maxContainers int, ttl time.Duration) *Pool {
	if maxContainers <= 0 {
		maxContainers = DefaultMaxContainers
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	p := &Pool{
		drv:           drv,
		maxContainers: maxContainers,
		ttl:           ttl,
		byID:          make(map[string]*entry),
		byFunc:        make(map[string]*list.List),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	go p.reapLoop()
	return p
}

// Borrow scans the secondary list for func_id and returns the first free
// container, marking it in-use. Returns ("", false) if none is free.
func (p *Pool) Borrow(funcID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids, ok := p.byFunc[funcID]
	if !ok {
		return "", false
	}
	for el := ids.Front(); el != nil; el = el.Next() {
		id := el.Value.(string)
		e, ok := p.byID[id]
		if !ok || e.rec.InUse {
			continue
		}
		e.rec.InUse = true
		e.rec.UseCount++
		e.rec.LastUsed = time.Now()
		p.reportSizeLocked()
		return id, true
	}
	return "", false
}

// Return clears in-use and refreshes last-used. Reports false if the id is
// unknown (e.g. evicted while in use).
func (p *Pool) Return(containerID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.byID[containerID]
	if !ok {
		return false
	}
	e.rec.InUse = false
	e.rec.LastUsed = time.Now()
	p.reportSizeLocked()
	return true
}

// Insert adds a newly warmed-up container to both indices, evicting the
// oldest idle entry first if the pool is at capacity.
func (p *Pool) Insert(ctx context.Context, funcID string, rt domain.Runtime, containerID string) {
	var toEvict string

	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		p.drv.Remove(ctx, containerID)
		return
	}
	if len(p.byID) >= p.maxContainers {
		toEvict = p.oldestIdleLocked()
	}
	if toEvict != "" {
		p.removeLocked(toEvict)
	}

	now := time.Now()
	rec := &domain.WarmContainer{
		ContainerID: containerID,
		FuncID:      funcID,
		Runtime:     rt,
		CreatedAt:   now,
		LastUsed:    now,
		InUse:       false,
	}
	p.byID[containerID] = &entry{rec: rec}
	ids, ok := p.byFunc[funcID]
	if !ok {
		ids = list.New()
		p.byFunc[funcID] = ids
	}
	ids.PushBack(containerID)
	p.reportSizeLocked()
	p.mu.Unlock()

	if toEvict != "" {
		metrics.RecordEviction("capacity")
		p.drv.Remove(ctx, toEvict)
	}
}

// Remove drops containerID from both indices and tears down the backing
// container outside the lock. Idempotent.
func (p *Pool) Remove(ctx context.Context, containerID string) {
	p.mu.Lock()
	existed := p.removeLocked(containerID)
	p.reportSizeLocked()
	p.mu.Unlock()

	if existed {
		if err := p.drv.Remove(ctx, containerID); err != nil {
			logging.Op().Debug("pool: remove backing container failed", "container_id", containerID, "err", err)
		}
	}
}

// removeLocked drops containerID from both indices. Caller holds p.mu.
func (p *Pool) removeLocked(containerID string) bool {
	e, ok := p.byID[containerID]
	if !ok {
		return false
	}
	delete(p.byID, containerID)
	if ids, ok := p.byFunc[e.rec.FuncID]; ok {
		for el := ids.Front(); el != nil; el = el.Next() {
			if el.Value.(string) == containerID {
				ids.Remove(el)
				break
			}
		}
		if ids.Len() == 0 {
			delete(p.byFunc, e.rec.FuncID)
		}
	}
	return true
}

// oldestIdleLocked returns the container id with the smallest last_used
// among free containers, or "" if every container is in use (the cap is
// soft under contention, spec §9).
func (p *Pool) oldestIdleLocked() string {
	var (
		oldestID string
		oldestAt time.Time
	)
	for id, e := range p.byID {
		if e.rec.InUse {
			continue
		}
		if oldestID == "" || e.rec.LastUsed.Before(oldestAt) {
			oldestID = id
			oldestAt = e.rec.LastUsed
		}
	}
	return oldestID
}

// FunctionStats is the per-function breakdown of a Stats snapshot (spec §6;
// original_source warm_pool_manager.py get_stats "containers_by_function").
type FunctionStats struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	InUse     int `json:"in_use"`
}

// Stats summarizes the pool for the metrics surface and the stats API.
type Stats struct {
	Total      int                      `json:"total"`
	Free       int                      `json:"free"`
	Max        int                      `json:"max"`
	ByFunction map[string]FunctionStats `json:"by_function"`
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statsLocked()
}

func (p *Pool) statsLocked() Stats {
	free := 0
	byFunc := make(map[string]FunctionStats, len(p.byFunc))
	for funcID, ids := range p.byFunc {
		var fs FunctionStats
		for el := ids.Front(); el != nil; el = el.Next() {
			id := el.Value.(string)
			e, ok := p.byID[id]
			if !ok {
				continue
			}
			fs.Total++
			if e.rec.InUse {
				fs.InUse++
			} else {
				fs.Available++
			}
		}
		byFunc[funcID] = fs
	}
	for _, e := range p.byID {
		if !e.rec.InUse {
			free++
		}
	}
	return Stats{Total: len(p.byID), Free: free, Max: p.maxContainers, ByFunction: byFunc}
}

func (p *Pool) reportSizeLocked() {
	s := p.statsLocked()
	metrics.SetPoolSize(s.Total, s.Free, s.Max)
	for funcID, fs := range s.ByFunction {
		metrics.SetPoolSizeByFunction(funcID, fs.Total, fs.Available, fs.InUse)
	}
}

// reapLoop is the TTL reaper (spec §4.3): wakes every 30s, snapshots idle
// containers older than ttl under the lock, and removes them outside it.
func (p *Pool) reapLoop() {
	defer close(p.doneCh)
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapOnce()
		}
	}
}

func (p *Pool) reapOnce() {
	now := time.Now()
	var stale []string

	p.mu.Lock()
	for id, e := range p.byID {
		if !e.rec.InUse && now.Sub(e.rec.LastUsed) > p.ttl {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		p.removeLocked(id)
	}
	p.reportSizeLocked()
	p.mu.Unlock()

	for _, id := range stale {
		metrics.RecordReaperRemoval()
		if err := p.drv.Remove(context.Background(), id); err != nil {
			logging.Op().Debug("pool: reaper remove failed", "container_id", id, "err", err)
		}
	}
}

// Shutdown stops the reaper and tears down every remaining container. New
// inserts after Shutdown are rejected by removing the container instead of
// adding it to the indices.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return
	}
	p.closing = true
	ids := make([]string, 0, len(p.byID))
	for id := range p.byID {
		ids = append(ids, id)
	}
	p.byID = make(map[string]*entry)
	p.byFunc = make(map[string]*list.List)
	p.mu.Unlock()

	close(p.stopCh)
	<-p.doneCh

	for _, id := range ids {
		if err := p.drv.Remove(ctx, id); err != nil {
			logging.Op().Debug("pool: shutdown remove failed", "container_id", id, "err", err)
		}
	}
}
