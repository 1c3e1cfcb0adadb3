package stats

import (
	"sync"
	"time"
)

// 阅读事件
type ViewEvent struct {
	ShortID   string    `json:"short_id"`
	ViewedAt  time.Time `json:"viewed_at"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Referer   string    `json:"referer"`
}

// Collector 收集器接口，请求路径上调用，不能阻塞
type Collector interface {
	Collect(event ViewEvent)
	Close()
}

// ChannelCollector 基于 channel 的进程内收集器，缓冲满了直接丢弃
type ChannelCollector struct {
	mu     sync.RWMutex
	ch     chan ViewEvent
	closed bool
}

func NewChannelCollector(bufferSize int) *ChannelCollector {
	return &ChannelCollector{
		ch: make(chan ViewEvent, bufferSize),
	}
}

func (c *ChannelCollector) Collect(event ViewEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- event:
	default:
		// 通道满了，丢弃
	}
}

func (c *ChannelCollector) Events() <-chan ViewEvent {
	return c.ch
}

// Close 可以重复调用
func (c *ChannelCollector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// NopCollector 关闭统计时使用
type NopCollector struct{}

func (NopCollector) Collect(ViewEvent) {}
func (NopCollector) Close()            {}
