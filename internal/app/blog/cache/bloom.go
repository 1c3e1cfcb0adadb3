package cache

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// BloomFilter 记录所有已分配的 short id。
// MightExist 返回 false 时一定不存在，可以跳过数据库。
type BloomFilter struct {
	filter *bloom.BloomFilter
	mu     sync.RWMutex
}

// NewBloomFilter 创建布隆过滤器
// expectedItems: 预期元素数量
// falsePositiveRate: 误判率（例如 0.01）
func NewBloomFilter(expectedItems uint, falsePositiveRate float64) *BloomFilter {
	return &BloomFilter{
		filter: bloom.NewWithEstimates(expectedItems, falsePositiveRate),
	}
}

func (b *BloomFilter) Add(shortID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filter.AddString(shortID)
}

func (b *BloomFilter) MightExist(shortID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.filter.TestString(shortID)
}

// Count 返回已添加元素数量的估算值
func (b *BloomFilter) Count() uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.filter.ApproximatedSize()
}
