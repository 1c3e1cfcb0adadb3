package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"blog.local/internal/app/blog"
	"github.com/redis/go-redis/v9"
)

func newLocal(t *testing.T) *LocalCache {
	t.Helper()
	local, err := NewLocalCache(1000, 1<<20)
	if err != nil {
		t.Fatalf("NewLocalCache: %v", err)
	}
	t.Cleanup(local.Close)
	return local
}

func samplePost() *blog.Post {
	return &blog.Post{
		ID:      "6f1c2d7e-7a51-4b52-9b0e-2a7e5c1d9f00",
		ShortID: "Kx8pQ2mZ",
		Title:   "Hello world post",
		Slug:    "hello-world-post",
		Tags:    []string{"go"},
	}
}

func TestPostCache_LocalOnly(t *testing.T) {
	local := newLocal(t)
	c := NewPostCache(nil, local)
	ctx := context.Background()

	if _, hit, err := c.Get(ctx, "Kx8pQ2mZ"); hit || err != nil {
		t.Fatalf("empty cache: hit=%v err=%v", hit, err)
	}

	if err := c.Set(ctx, samplePost()); err != nil {
		t.Fatalf("Set: %v", err)
	}
	local.Wait()
	got, hit, err := c.Get(ctx, "Kx8pQ2mZ")
	if err != nil || !hit || got == nil {
		t.Fatalf("Get after Set: post=%v hit=%v err=%v", got, hit, err)
	}
	if got.Slug != "hello-world-post" || got.ID != samplePost().ID {
		t.Fatalf("Get: got %+v", got)
	}

	if err := c.Delete(ctx, "Kx8pQ2mZ"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "Kx8pQ2mZ"); hit {
		t.Fatal("expected miss after Delete")
	}
}

func TestPostCache_NegativeEntry(t *testing.T) {
	local := newLocal(t)
	c := NewPostCache(nil, local)
	ctx := context.Background()

	if err := c.SetNotFound(ctx, "missing1"); err != nil {
		t.Fatalf("SetNotFound: %v", err)
	}
	local.Wait()
	post, hit, err := c.Get(ctx, "missing1")
	if err != nil || !hit || post != nil {
		t.Fatalf("negative entry: post=%v hit=%v err=%v", post, hit, err)
	}
}

// 需要本地 redis，连不上就跳过
func TestPostCache_RedisRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping test: redis unavailable: %v", err)
	}

	c := NewPostCache(client, nil)
	p := samplePost()
	p.ShortID = "rt" + time.Now().Format("150405")
	t.Cleanup(func() { c.Delete(context.Background(), p.ShortID) })

	if err := c.Set(ctx, p); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, hit, err := c.Get(ctx, p.ShortID)
	if err != nil || !hit || got.Slug != p.Slug {
		t.Fatalf("Get: post=%+v hit=%v err=%v", got, hit, err)
	}
}

func TestBloomFilter(t *testing.T) {
	b := NewBloomFilter(1000, 0.01)
	if b.MightExist("abc12345") {
		t.Fatal("empty filter should not contain anything")
	}
	b.Add("abc12345")
	if !b.MightExist("abc12345") {
		t.Fatal("added id must be reported as present")
	}
	if b.Count() == 0 {
		t.Fatal("count should be > 0")
	}
}

// redis 写失败时，Replace 不能让任何一份缓存继续被读到
func TestPostCache_ReplaceDropsEntryWhenRedisWriteFails(t *testing.T) {
	local := newLocal(t)
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	c := NewPostCache(client, local)
	ctx := context.Background()

	old := samplePost()
	local.Set(old.ShortID, `{"short_id":"Kx8pQ2mZ","slug":"old-title"}`)
	local.Wait()

	renamed := samplePost()
	renamed.Slug = "renamed-post-title"
	if err := c.Replace(ctx, renamed); err == nil {
		t.Fatal("expected error when neither write nor delete reaches redis")
	}
	local.Wait()

	if _, ok := local.Get(old.ShortID); ok {
		t.Fatal("L1 entry must be dropped after a failed write")
	}
	post, hit, _ := c.Get(ctx, old.ShortID)
	if hit || post != nil {
		t.Fatalf("expected no cached post, got hit=%v post=%+v", hit, post)
	}
}

// 需要本地 redis：写入因超时失败后，旧值必须被删除
func TestPostCache_ReplaceDeletesStaleRedisEntry(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	pingCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		t.Skipf("Skipping test: redis unavailable: %v", err)
	}

	c := NewPostCache(client, nil)
	old := samplePost()
	old.ShortID = "st" + time.Now().Format("150405")
	old.Slug = "old-title"
	t.Cleanup(func() { c.Delete(context.Background(), old.ShortID) })
	if err := c.Set(context.Background(), old); err != nil {
		t.Fatalf("seed: %v", err)
	}

	renamed := *old
	renamed.Slug = "renamed-post-title"
	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	if err := c.Replace(expired, &renamed); err != nil {
		t.Fatalf("Replace should fall back to delete, got %v", err)
	}

	post, hit, err := c.Get(context.Background(), old.ShortID)
	if err != nil || hit {
		t.Fatalf("stale entry still readable: post=%+v hit=%v err=%v", post, hit, err)
	}
}
