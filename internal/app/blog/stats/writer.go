package stats

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ViewWriter 把一批阅读事件落库
type ViewWriter interface {
	WriteViews(ctx context.Context, batch []ViewEvent) error
}

// PGViewWriter 写 post_views 明细并累加 posts.view_count
type PGViewWriter struct {
	db *pgxpool.Pool
}

func NewPGViewWriter(db *pgxpool.Pool) *PGViewWriter {
	return &PGViewWriter{db: db}
}

func (w *PGViewWriter) WriteViews(ctx context.Context, batch []ViewEvent) error {
	if len(batch) == 0 {
		return nil
	}
	ids, counts := countByShortID(batch)

	tx, err := w.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(context.Background())

	// 明细用 COPY 批量写
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"post_views"},
		[]string{"short_id", "viewed_at", "ip", "user_agent", "referer"},
		pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
			e := batch[i]
			return []any{e.ShortID, e.ViewedAt, e.IP, e.UserAgent, e.Referer}, nil
		}),
	); err != nil {
		return err
	}

	// 计数每个 short id 只更新一次
	if _, err := tx.Exec(ctx,
		`UPDATE posts SET view_count = posts.view_count + c.n
		 FROM (SELECT unnest($1::text[]) AS short_id, unnest($2::bigint[]) AS n) c
		 WHERE posts.short_id = c.short_id`,
		ids, counts); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// countByShortID 按首次出现顺序聚合
func countByShortID(batch []ViewEvent) ([]string, []int64) {
	idx := make(map[string]int, len(batch))
	ids := make([]string, 0, len(batch))
	counts := make([]int64, 0, len(batch))
	for _, e := range batch {
		i, ok := idx[e.ShortID]
		if !ok {
			i = len(ids)
			idx[e.ShortID] = i
			ids = append(ids, e.ShortID)
			counts = append(counts, 0)
		}
		counts[i]++
	}
	return ids, counts
}

// runBatches 从 events 读事件，攒够 batchSize 或每隔 interval 写一次。
// events 关闭或 ctx 结束时写出剩余事件后返回。
func runBatches(ctx context.Context, name string, events <-chan ViewEvent, w ViewWriter, batchSize int, interval time.Duration) {
	batch := make([]ViewEvent, 0, batchSize)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// ctx 可能已经取消，剩余事件用独立的超时写完
		wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.WriteViews(wctx, batch); err != nil {
			slog.Error(name+": flush failed", "err", err, "count", len(batch))
		} else {
			slog.Debug(name+": flushed", "count", len(batch))
		}
		batch = batch[:0] //清空切片，但保留容量不变
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case event, ok := <-events:
			if !ok {
				flush()
				return
			}
			batch = append(batch, event)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
