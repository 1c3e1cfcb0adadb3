package stats

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

type recordingWriter struct {
	mu      sync.Mutex
	batches [][]ViewEvent
	err     error
}

func (w *recordingWriter) WriteViews(_ context.Context, batch []ViewEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := make([]ViewEvent, len(batch))
	copy(cp, batch)
	w.batches = append(w.batches, cp)
	return w.err
}

func (w *recordingWriter) total() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, b := range w.batches {
		n += len(b)
	}
	return n
}

func TestChannelCollector_DropsWhenFull(t *testing.T) {
	c := NewChannelCollector(2)
	for i := 0; i < 5; i++ {
		c.Collect(ViewEvent{ShortID: "abc12345"})
	}
	if got := len(c.Events()); got != 2 {
		t.Fatalf("buffered=%d, want 2", got)
	}
}

func TestChannelCollector_CollectAfterClose(t *testing.T) {
	c := NewChannelCollector(1)
	c.Close()
	c.Close()
	c.Collect(ViewEvent{ShortID: "abc12345"}) // 不能 panic
	if _, ok := <-c.Events(); ok {
		t.Fatal("events channel should be closed")
	}
}

func TestConsumer_FlushesOnBatchSizeAndClose(t *testing.T) {
	c := NewChannelCollector(16)
	w := &recordingWriter{}
	consumer := NewConsumer(w, c)
	consumer.batchSize = 3
	consumer.interval = time.Hour

	done := make(chan struct{})
	go func() {
		consumer.Run(context.Background())
		close(done)
	}()

	for i := 0; i < 4; i++ {
		c.Collect(ViewEvent{ShortID: "abc12345", ViewedAt: time.Now()})
	}
	c.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after collector close")
	}
	if w.total() != 4 {
		t.Fatalf("written=%d, want 4", w.total())
	}
	if len(w.batches) != 2 || len(w.batches[0]) != 3 {
		t.Fatalf("unexpected batches: %d", len(w.batches))
	}
}

func TestConsumer_FlushesOnTick(t *testing.T) {
	c := NewChannelCollector(16)
	w := &recordingWriter{}
	consumer := NewConsumer(w, c)
	consumer.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go consumer.Run(ctx)

	c.Collect(ViewEvent{ShortID: "abc12345"})
	deadline := time.Now().Add(2 * time.Second)
	for w.total() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("ticker flush never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConsumer_WriterErrorDoesNotStopLoop(t *testing.T) {
	c := NewChannelCollector(16)
	w := &recordingWriter{err: errors.New("db down")}
	consumer := NewConsumer(w, c)
	consumer.batchSize = 1
	consumer.interval = time.Hour

	done := make(chan struct{})
	go func() {
		consumer.Run(context.Background())
		close(done)
	}()
	c.Collect(ViewEvent{ShortID: "a"})
	c.Collect(ViewEvent{ShortID: "b"})
	c.Close()
	<-done
	if len(w.batches) != 2 {
		t.Fatalf("batches=%d, want 2", len(w.batches))
	}
}

func TestCountByShortID(t *testing.T) {
	ids, counts := countByShortID([]ViewEvent{
		{ShortID: "b"}, {ShortID: "a"}, {ShortID: "b"}, {ShortID: "b"},
	})
	if !reflect.DeepEqual(ids, []string{"b", "a"}) || !reflect.DeepEqual(counts, []int64{3, 1}) {
		t.Fatalf("ids=%v counts=%v", ids, counts)
	}
}

func TestDecodeViewEvent(t *testing.T) {
	if _, ok := decodeViewEvent([]byte("{")); ok {
		t.Fatal("bad json accepted")
	}
	if _, ok := decodeViewEvent([]byte(`{"ip":"1.2.3.4"}`)); ok {
		t.Fatal("event without short id accepted")
	}
	e, ok := decodeViewEvent([]byte(`{"short_id":"abc12345","viewed_at":"2024-03-01T10:00:00Z"}`))
	if !ok || e.ShortID != "abc12345" || e.ViewedAt.Year() != 2024 {
		t.Fatalf("decoded %+v ok=%v", e, ok)
	}
}
