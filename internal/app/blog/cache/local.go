package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// LocalCache 基于 ristretto 的本地内存缓存，value 是序列化后的文章。
type LocalCache struct {
	cache    *ristretto.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

// NewLocalCache 创建本地缓存
// maxItems: 最大缓存条目数
// maxCost: 最大内存占用（字节）
func NewLocalCache(maxItems int64, maxCost int64) (*LocalCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10, // 建议为 maxItems 的 10 倍
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &LocalCache{
		cache:    cache,
		ttl:      time.Minute, // 文章可编辑，本地 TTL 要短，多实例之间才能尽快一致
		emptyTTL: 10 * time.Second,
	}, nil
}

func (l *LocalCache) Get(shortID string) (string, bool) {
	if v, ok := l.cache.Get(shortID); ok {
		return v.(string), true
	}
	return "", false
}

// Set 按字节数计 cost，长文章占得多。
func (l *LocalCache) Set(shortID, raw string) {
	l.cache.SetWithTTL(shortID, raw, int64(len(raw)), l.ttl)
}

func (l *LocalCache) SetNotFound(shortID string) {
	l.cache.SetWithTTL(shortID, notFoundSentinel, 1, l.emptyTTL)
}

// Wait 等待写缓冲落地，ristretto 的 Set 是异步的。
func (l *LocalCache) Wait() {
	l.cache.Wait()
}

func (l *LocalCache) Del(shortID string) {
	l.cache.Del(shortID)
}

func (l *LocalCache) Close() {
	l.cache.Close()
}
