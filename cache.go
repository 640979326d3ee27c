/*
File: cache.go
Description: Two-tier Verdict Cache, memory tier. A sharded LRU+TTL store
             keyed by Domain Fingerprint. Access promotes to MRU. A
             background sweep purges expired entries every sweep_interval.
*/

package main

import (
	"container/list"
	"hash/maphash"
	"sync"
	"sync/atomic"
	"time"
)

const memCacheShards = 16

type memCacheEntry struct {
	key        string
	verdict    Verdict
	insertedAt time.Time
}

type memCacheShard struct {
	sync.RWMutex
	items    map[string]*list.Element
	lruList  *list.List
	capacity int
}

// VerdictCache is the two-tier cache described in spec §4.3. It composes
// a memory tier (this file) with an optional disk tier (cache_disk.go).
type VerdictCache struct {
	shards [memCacheShards]*memCacheShard
	seed   maphash.Seed
	ttl    time.Duration

	disk *DiskCache

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

func NewVerdictCache(capacity int, ttl time.Duration, disk *DiskCache) *VerdictCache {
	c := &VerdictCache{seed: maphash.MakeSeed(), ttl: ttl, disk: disk}
	shardCap := capacity / memCacheShards
	if shardCap < 1 {
		shardCap = 1
	}
	for i := 0; i < memCacheShards; i++ {
		c.shards[i] = &memCacheShard{
			items:    make(map[string]*list.Element),
			lruList:  list.New(),
			capacity: shardCap,
		}
	}
	return c
}

func (c *VerdictCache) getShard(key string) *memCacheShard {
	var h maphash.Hash
	h.SetSeed(c.seed)
	h.WriteString(key)
	return c.shards[h.Sum64()&(memCacheShards-1)]
}

// Lookup implements the read path: memory hit returns immediately; memory
// miss falls through to disk; a disk hit repopulates memory.
func (c *VerdictCache) Lookup(domain string) (Verdict, bool) {
	shard := c.getShard(domain)
	shard.Lock()
	if el, ok := shard.items[domain]; ok {
		entry := el.Value.(*memCacheEntry)
		if time.Since(entry.insertedAt) < c.ttl {
			shard.lruList.MoveToFront(el)
			shard.Unlock()
			c.hits.Add(1)
			return entry.verdict, true
		}
		shard.lruList.Remove(el)
		delete(shard.items, domain)
	}
	shard.Unlock()

	if c.disk != nil {
		if v, ok := c.disk.Lookup(domain); ok {
			c.storeMemory(domain, v)
			c.hits.Add(1)
			return v, true
		}
	}
	c.misses.Add(1)
	return Verdict{}, false
}

// Store implements the write path: synchronous to memory, asynchronous
// (best-effort) to disk. Monotonic overwrite is enforced by the caller
// (Orchestrator) per the cache-freshness invariant in spec §3.
func (c *VerdictCache) Store(domain string, v Verdict) {
	c.storeMemory(domain, v)
	if c.disk != nil {
		c.disk.StoreAsync(domain, v)
	}
}

func (c *VerdictCache) storeMemory(domain string, v Verdict) {
	shard := c.getShard(domain)
	shard.Lock()
	defer shard.Unlock()

	if el, ok := shard.items[domain]; ok {
		shard.lruList.MoveToFront(el)
		entry := el.Value.(*memCacheEntry)
		entry.verdict = v
		entry.insertedAt = time.Now()
		return
	}

	if shard.lruList.Len() >= shard.capacity {
		if oldest := shard.lruList.Back(); oldest != nil {
			shard.lruList.Remove(oldest)
			delete(shard.items, oldest.Value.(*memCacheEntry).key)
			c.evictions.Add(1)
		}
	}

	entry := &memCacheEntry{key: domain, verdict: v, insertedAt: time.Now()}
	el := shard.lruList.PushFront(entry)
	shard.items[domain] = el
}

// PurgeExpired sweeps every shard and drops entries past TTL. Intended to
// run on a periodic ticker (default 60s).
func (c *VerdictCache) PurgeExpired() int {
	purged := 0
	now := time.Now()
	for _, shard := range c.shards {
		shard.Lock()
		for e := shard.lruList.Back(); e != nil; {
			entry := e.Value.(*memCacheEntry)
			prev := e.Prev()
			if now.Sub(entry.insertedAt) >= c.ttl {
				shard.lruList.Remove(e)
				delete(shard.items, entry.key)
				purged++
			}
			e = prev
		}
		shard.Unlock()
	}
	return purged
}

func (c *VerdictCache) RunSweeper(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := c.PurgeExpired(); n > 0 {
				LogDebug("[CACHE] purged %d expired memory entries", n)
			}
		case <-done:
			return
		}
	}
}

type CacheStats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

func (c *VerdictCache) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
