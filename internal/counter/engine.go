// Package counter implements the write-coalescing visit counter engine: a
// write buffer that absorbs increments in-process, a periodic flusher that
// drains it to the shard pool in batches, and a read path backed by a
// short-lived in-memory cache.
package counter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/skushagra-sst/visit-counter/internal/metrics"
	"github.com/skushagra-sst/visit-counter/pkg/logger"
)

// ErrShuttingDown is returned for visits recorded after the engine has begun
// its final flush.
var ErrShuttingDown = errors.New("counter engine is shutting down")

// ServedInMemory is the provenance label for reads answered from the cache.
const ServedInMemory = "in_memory"

// Store is the sharded counter storage the engine flushes to and reads from.
type Store interface {
	// Increment atomically adds delta to the counter named by key.
	Increment(ctx context.Context, key string, delta int64) error

	// Get reads the counter for key; a missing counter reads as 0. The
	// second return value identifies the shard that served the read.
	Get(ctx context.Context, key string) (int64, string, error)

	// Host maps a shard identifier to its host label.
	Host(shardID string) string
}

// Config holds configuration for the Engine.
type Config struct {
	FlushInterval time.Duration // period of the background flusher
	CacheTTL      time.Duration // freshness window for read cache entries
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		FlushInterval: 30 * time.Second,
		CacheTTL:      30 * time.Second,
	}
}

// cacheEntry is the last-known persisted+flushed total for a key, with the
// time it was last refreshed from a shard. count excludes the current
// buffer.
type cacheEntry struct {
	count int64
	stamp time.Time
}

// Engine absorbs visit increments with no I/O on the write path and serves
// reads as cached-or-fresh count plus whatever is still buffered. All
// methods are safe for concurrent use.
type Engine struct {
	store Store
	cfg   Config
	log   *logger.Logger

	bufMu  sync.Mutex
	buffer map[string]int64

	cacheMu sync.Mutex
	cache   map[string]cacheEntry

	// flushGroup coalesces overlapping Flush calls into a single in-flight
	// flush, which also totally orders flushes with respect to each other.
	flushGroup singleflight.Group

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stopped   atomic.Bool
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewEngine creates an Engine flushing to store. Call Start to launch the
// periodic flusher.
func NewEngine(cfg Config, store Store, log *logger.Logger) *Engine {
	def := DefaultConfig()
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}

	return &Engine{
		store:    store,
		cfg:      cfg,
		log:      log,
		buffer:   make(map[string]int64),
		cache:    make(map[string]cacheEntry),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// RecordVisit adds one visit for the page to the write buffer. It never
// blocks on I/O.
func (e *Engine) RecordVisit(pageID string) error {
	if e.stopped.Load() {
		return ErrShuttingDown
	}

	e.bufMu.Lock()
	e.buffer[pageID]++
	e.bufMu.Unlock()

	metrics.RecordVisitBuffered()
	return nil
}

// Visits returns the current count for the page and the provenance of the
// answer: ServedInMemory when the cache entry is still fresh, the owning
// shard's host after a refresh.
func (e *Engine) Visits(ctx context.Context, pageID string) (int64, string, error) {
	e.cacheMu.Lock()
	ent, ok := e.cache[pageID]
	e.cacheMu.Unlock()

	if ok && time.Since(ent.stamp) <= e.cfg.CacheTTL {
		metrics.RecordReadCacheHit()
		return ent.count + e.buffered(pageID), ServedInMemory, nil
	}

	metrics.RecordReadCacheMiss()

	// Drain pending deltas so the shard read below reflects everything this
	// engine has accepted so far.
	e.Flush(ctx)

	fresh, shardID, err := e.store.Get(ctx, pageID)
	if err != nil {
		return 0, "", err
	}

	e.cacheMu.Lock()
	e.cache[pageID] = cacheEntry{count: fresh, stamp: time.Now()}
	e.cacheMu.Unlock()

	// Deltas that arrived during the flush or the shard read live in the
	// new buffer and are still unaccounted for.
	return fresh + e.buffered(pageID), e.store.Host(shardID), nil
}

// buffered returns the pending delta for a key.
func (e *Engine) buffered(pageID string) int64 {
	e.bufMu.Lock()
	defer e.bufMu.Unlock()
	return e.buffer[pageID]
}

// Pending returns a snapshot of the unflushed deltas.
func (e *Engine) Pending() map[string]int64 {
	e.bufMu.Lock()
	defer e.bufMu.Unlock()

	snap := make(map[string]int64, len(e.buffer))
	for k, v := range e.buffer {
		snap[k] = v
	}
	return snap
}

// Flush drains the buffer to the shard pool. The swap of the buffer is the
// linearization point: visits recorded after it land in the next flush.
// Overlapping calls coalesce into the flush already in flight.
func (e *Engine) Flush(ctx context.Context) {
	e.flushGroup.Do("flush", func() (interface{}, error) {
		e.flushOnce(ctx)
		return nil, nil
	})
}

func (e *Engine) flushOnce(ctx context.Context) {
	e.bufMu.Lock()
	if len(e.buffer) == 0 {
		e.bufMu.Unlock()
		return
	}
	snapshot := e.buffer
	e.buffer = make(map[string]int64)
	e.bufMu.Unlock()

	start := time.Now()
	for key, delta := range snapshot {
		// Advance the local cache before the shard call so readers never
		// observe the count dip while the increment is in flight.
		e.advanceCache(key, delta)

		if err := e.store.Increment(ctx, key, delta); err != nil {
			// The buffer is already drained; the delta is lost from the
			// engine's side. Best-effort durability, surfaced via logs and
			// the failed-increment counter.
			e.log.Error("flush increment failed",
				"key", key,
				"delta", delta,
				"error", err.Error(),
			)
			metrics.RecordFailedIncrement()
		}
	}
	metrics.RecordFlush(time.Since(start))
}

// advanceCache adds delta to the cache entry for key, creating it at zero
// and stamped now first. An existing entry's stamp is left alone: advancing
// reflects a flush, not a refresh from the shard.
func (e *Engine) advanceCache(key string, delta int64) {
	e.cacheMu.Lock()
	ent, ok := e.cache[key]
	if !ok {
		ent = cacheEntry{count: 0, stamp: time.Now()}
	}
	ent.count += delta
	e.cache[key] = ent
	e.cacheMu.Unlock()
}

// Start launches the periodic flusher.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		e.started.Store(true)
		go e.run()
	})
}

// Stop halts the periodic flusher, refuses further visits, and performs one
// final flush so every accepted delta has been issued to its shard. Safe to
// call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		if e.started.Load() {
			close(e.stopChan)
			<-e.doneChan
		}

		// Refuse new visits before draining so nothing slips in behind the
		// final flush.
		e.stopped.Store(true)
		e.log.Info("performing final flush before shutdown")
		e.Flush(context.Background())
	})
}

// run is the periodic flush loop.
func (e *Engine) run() {
	defer close(e.doneChan)

	ticker := time.NewTicker(e.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.log.Debug("periodic buffer flush triggered")
			e.Flush(context.Background())
		case <-e.stopChan:
			return
		}
	}
}
