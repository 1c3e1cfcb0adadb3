package stats

import (
	"context"
	"time"
)

// Consumer 消费进程内 ChannelCollector 的阅读事件
type Consumer struct {
	writer    ViewWriter
	collector *ChannelCollector
	batchSize int
	interval  time.Duration
}

func NewConsumer(writer ViewWriter, collector *ChannelCollector) *Consumer {
	return &Consumer{
		writer:    writer,
		collector: collector,
		batchSize: 100,         //批量写入大小
		interval:  time.Second, //最大等待时间
	}
}

// Run 阻塞，直到 ctx 结束或 collector 关闭
func (c *Consumer) Run(ctx context.Context) {
	runBatches(ctx, "view stats", c.collector.Events(), c.writer, c.batchSize, c.interval)
}
