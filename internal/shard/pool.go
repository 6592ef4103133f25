// Package shard owns the per-shard counter store clients and routes each
// page key to the store responsible for it.
package shard

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skushagra-sst/visit-counter/internal/hashring"
	"github.com/skushagra-sst/visit-counter/internal/metrics"
	"github.com/skushagra-sst/visit-counter/pkg/logger"
)

// DefaultTimeout bounds a single shard call when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// ErrNoShards is returned when no shard could be initialized at startup.
var ErrNoShards = errors.New("no reachable shards")

// Pool routes counter operations to backend stores via consistent hashing.
// One client per shard; clients are safe for concurrent use.
type Pool struct {
	ring    *hashring.Ring
	clients map[string]*redis.Client
	timeout time.Duration
	log     *logger.Logger
}

// NewPool connects to every shard URL and builds the routing ring. A shard
// that cannot be reached is logged and dropped from both the pool and the
// ring, so Resolve never hands out a shard the pool cannot serve. At least
// one shard must be reachable.
func NewPool(ctx context.Context, shards []string, virtualNodes int, timeout time.Duration, log *logger.Logger) (*Pool, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	p := &Pool{
		ring:    hashring.New(shards, virtualNodes),
		clients: make(map[string]*redis.Client, len(shards)),
		timeout: timeout,
		log:     log,
	}

	for _, s := range shards {
		client, err := p.connect(ctx, s)
		if err != nil {
			p.log.Warn("shard unavailable, removing from ring",
				"shard", s,
				"error", err.Error(),
			)
			p.ring.RemoveShard(s)
			continue
		}
		p.clients[s] = client
	}

	if len(p.clients) == 0 {
		return nil, ErrNoShards
	}
	return p, nil
}

// connect builds and verifies a client for one shard URL.
func (p *Pool) connect(ctx context.Context, shardURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(shardURL)
	if err != nil {
		return nil, fmt.Errorf("invalid shard URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	return client, nil
}

// Increment adds delta to the counter named by key on its owning shard.
// Errors are surfaced unretried; the caller decides what to do with the
// delta.
func (p *Pool) Increment(ctx context.Context, key string, delta int64) error {
	shardID, client, err := p.route(key)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err = client.IncrBy(callCtx, key, delta).Err()
	metrics.RecordShardOp("incrby", time.Since(start))

	if err != nil {
		return fmt.Errorf("shard %s: INCRBY %s: %w", shardID, key, err)
	}
	return nil
}

// Get reads the counter for key from its owning shard. A missing counter
// reads as 0. The second return value identifies the shard that served the
// read.
func (p *Pool) Get(ctx context.Context, key string) (int64, string, error) {
	shardID, client, err := p.route(key)
	if err != nil {
		return 0, "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	val, err := client.Get(callCtx, key).Int64()
	metrics.RecordShardOp("get", time.Since(start))

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, shardID, nil
		}
		return 0, "", fmt.Errorf("shard %s: GET %s: %w", shardID, key, err)
	}
	return val, shardID, nil
}

// route resolves key to its shard and client.
func (p *Pool) route(key string) (string, *redis.Client, error) {
	shardID, err := p.ring.Resolve(key)
	if err != nil {
		return "", nil, err
	}
	client, ok := p.clients[shardID]
	if !ok {
		// Ring and pool are pruned together at startup, so this only
		// happens if they were mutated out of band.
		return "", nil, fmt.Errorf("no client for shard %s", shardID)
	}
	return shardID, client, nil
}

// Host extracts the host portion of a shard identifier for provenance
// labels, e.g. "redis://counter-1:6379/0" -> "counter-1". An unparseable
// identifier is returned as-is.
func (p *Pool) Host(shardID string) string {
	u, err := url.Parse(shardID)
	if err != nil || u.Hostname() == "" {
		return shardID
	}
	return u.Hostname()
}

// ShardCount returns the number of shards with live clients.
func (p *Pool) ShardCount() int {
	return len(p.clients)
}

// Ping verifies connectivity to every shard in the pool.
func (p *Pool) Ping(ctx context.Context) error {
	for id, client := range p.clients {
		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := client.Ping(callCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("shard %s: ping: %w", id, err)
		}
	}
	return nil
}

// Close closes every shard client.
func (p *Pool) Close() error {
	var errs []error
	for id, client := range p.clients {
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("shard %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
