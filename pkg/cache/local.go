package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// LocalCache is an in-process TTL cache.
type LocalCache struct {
	cache *gocache.Cache
}

func NewLocalCache(defaultExpiration, cleanupInterval time.Duration) *LocalCache {
	return &LocalCache{
		cache: gocache.New(defaultExpiration, cleanupInterval),
	}
}

func (l *LocalCache) Get(key string) (interface{}, bool) {
	return l.cache.Get(key)
}

// Set stores value with the cache's default expiration.
func (l *LocalCache) Set(key string, value interface{}) {
	l.cache.Set(key, value, gocache.DefaultExpiration)
}

func (l *LocalCache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	l.cache.Set(key, value, ttl)
}

func (l *LocalCache) Delete(key string) {
	l.cache.Delete(key)
}

func (l *LocalCache) ItemCount() int {
	return l.cache.ItemCount()
}
