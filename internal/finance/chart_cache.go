package finance

import (
	"sync"
	"time"
)

const chartCacheTTL = 60 * time.Second

type chartCacheEntry struct {
	createdAt time.Time
	image     []byte
}

var (
	chartCache   = map[string]chartCacheEntry{}
	chartCacheMu sync.Mutex
)

func cacheGet(key string) ([]byte, bool) {
	chartCacheMu.Lock()
	defer chartCacheMu.Unlock()
	entry, ok := chartCache[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.createdAt.Add(chartCacheTTL)) {
		delete(chartCache, key)
		return nil, false
	}
	img := make([]byte, len(entry.image))
	copy(img, entry.image)
	return img, true
}

func cacheSet(key string, img []byte) {
	chartCacheMu.Lock()
	chartCache[key] = chartCacheEntry{createdAt: time.Now(), image: img}
	chartCacheMu.Unlock()
}
