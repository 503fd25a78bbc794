package server

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// digestCache holds wrapped digests per owner. Each owner has a generation that
// invalidate bumps; a digest computed under an older generation is not stored.
type digestCache struct {
	mu          sync.Mutex
	cache       *gocache.Cache
	generations map[string]uint64
}

func newDigestCache(ttl time.Duration) *digestCache {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &digestCache{
		cache:       gocache.New(ttl, 2*ttl),
		generations: map[string]uint64{},
	}
}

func (d *digestCache) get(uid string) (any, bool) {
	return d.cache.Get(uid)
}

func (d *digestCache) generation(uid string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generations[uid]
}

func (d *digestCache) invalidate(uid string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generations[uid]++
	d.cache.Delete(uid)
}

// store caches value only if no invalidation happened since generation was read.
func (d *digestCache) store(uid string, generation uint64, value any) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.generations[uid] != generation {
		return false
	}
	d.cache.Set(uid, value, gocache.DefaultExpiration)
	return true
}
