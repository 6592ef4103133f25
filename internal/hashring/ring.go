// Package hashring implements a consistent hash ring with virtual nodes.
package hashring

import (
	"crypto/md5"
	"encoding/binary"
	"errors"
	"sort"
	"strconv"
)

// ErrEmptyRing is returned when a lookup is attempted against a ring with no
// entries.
var ErrEmptyRing = errors.New("hash ring is empty")

// DefaultVirtualNodes is the ring position count per shard when none is
// configured.
const DefaultVirtualNodes = 100

// hash128 is a 128-bit ring position. Comparison is numeric, big-endian.
type hash128 struct {
	hi, lo uint64
}

func (h hash128) less(o hash128) bool {
	if h.hi != o.hi {
		return h.hi < o.hi
	}
	return h.lo < o.lo
}

// sum128 hashes a string to its ring position. MD5 here is a distribution
// function, not a security boundary; the 128-bit layout matches the on-ring
// placement existing deployments were built with.
func sum128(s string) hash128 {
	d := md5.Sum([]byte(s))
	return hash128{
		hi: binary.BigEndian.Uint64(d[:8]),
		lo: binary.BigEndian.Uint64(d[8:]),
	}
}

type entry struct {
	hash  hash128
	shard string
}

// Ring maps keys to shard identifiers via consistent hashing. Each shard
// contributes virtualNodes entries keyed by "<shard>#<i>", which smooths the
// key distribution across shards.
//
// A Ring is not safe for concurrent mutation; build it fully before sharing
// it across goroutines. Lookups are read-only.
type Ring struct {
	virtualNodes int
	entries      []entry
}

// New builds a ring over the given shard identifiers. A non-positive
// virtualNodes falls back to DefaultVirtualNodes.
func New(shards []string, virtualNodes int) *Ring {
	if virtualNodes <= 0 {
		virtualNodes = DefaultVirtualNodes
	}

	r := &Ring{virtualNodes: virtualNodes}
	for _, s := range shards {
		r.AddShard(s)
	}
	return r
}

// AddShard inserts all virtual entries for the shard. Adding an identifier
// that is already present duplicates its entries; callers are expected to
// add each shard once.
func (r *Ring) AddShard(id string) {
	for i := 0; i < r.virtualNodes; i++ {
		h := sum128(id + "#" + strconv.Itoa(i))
		r.insert(entry{hash: h, shard: id})
	}
}

// insert places e in hash order. On an exact hash collision the newer entry
// replaces the older one, so the last writer owns that position.
func (r *Ring) insert(e entry) {
	idx := sort.Search(len(r.entries), func(i int) bool {
		return !r.entries[i].hash.less(e.hash)
	})
	if idx < len(r.entries) && r.entries[idx].hash == e.hash {
		r.entries[idx].shard = e.shard
		return
	}
	r.entries = append(r.entries, entry{})
	copy(r.entries[idx+1:], r.entries[idx:])
	r.entries[idx] = e
}

// RemoveShard deletes every entry owned by the shard. Removing an absent
// shard is a no-op.
func (r *Ring) RemoveShard(id string) {
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.shard != id {
			kept = append(kept, e)
		}
	}
	r.entries = kept
}

// Resolve returns the shard responsible for the key: the first entry whose
// hash is strictly greater than the key's hash, wrapping to the start of the
// ring when the key hashes past the last entry.
func (r *Ring) Resolve(key string) (string, error) {
	if len(r.entries) == 0 {
		return "", ErrEmptyRing
	}

	h := sum128(key)
	idx := sort.Search(len(r.entries), func(i int) bool {
		return h.less(r.entries[i].hash)
	})
	if idx == len(r.entries) {
		idx = 0
	}
	return r.entries[idx].shard, nil
}

// Len returns the number of ring entries.
func (r *Ring) Len() int {
	return len(r.entries)
}
