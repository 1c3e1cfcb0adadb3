package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const kafkaGroupID = "post-views-consumer"

type KafkaConsumer struct {
	reader    *kafka.Reader
	writer    ViewWriter
	batchSize int
	interval  time.Duration
}

func NewKafkaConsumer(brokers []string, topic string, writer ViewWriter) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  kafkaGroupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		writer:    writer,
		batchSize: 100,
		interval:  time.Second,
	}
}

func (k *KafkaConsumer) Run(ctx context.Context) {
	events := make(chan ViewEvent, k.batchSize)

	// 读取协程，ctx 结束后关闭 events
	go func() {
		defer close(events)
		for {
			msg, err := k.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("kafka read failed", "err", err)
				continue
			}
			event, ok := decodeViewEvent(msg.Value)
			if !ok {
				continue
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	runBatches(ctx, "kafka view stats", events, k.writer, k.batchSize, k.interval)
}

func decodeViewEvent(data []byte) (ViewEvent, bool) {
	var event ViewEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Error("unmarshal view event failed", "err", err)
		return ViewEvent{}, false
	}
	if event.ShortID == "" {
		slog.Warn("view event without short id dropped")
		return ViewEvent{}, false
	}
	return event, true
}

func (k *KafkaConsumer) Close() {
	if err := k.reader.Close(); err != nil {
		slog.Error("kafka reader close failed", "err", err)
	}
}
