package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"blog.local/internal/app/blog"
	"blog.local/internal/platform/metrics"
	"github.com/redis/go-redis/v9"
)

const notFoundSentinel = "__nil__"

const keyPrefix = "post:"

// 写失败后删除旧值的超时，不跟随请求 ctx
const invalidateTimeout = 200 * time.Millisecond

// PostCache 两级缓存：L1 ristretto，L2 redis。值是 Post 的 JSON。
//
// Get 的三种结果：
// - (post, true, nil)：命中
// - (nil, true, nil)：命中负缓存，确定不存在
// - (nil, false, nil)：未命中
type PostCache struct {
	client   *redis.Client
	local    *LocalCache
	ttl      time.Duration
	emptyTTL time.Duration
}

func NewPostCache(client *redis.Client, local *LocalCache) *PostCache {
	return &PostCache{
		client:   client,
		local:    local,
		ttl:      time.Hour,
		emptyTTL: 30 * time.Second,
	}
}

func (c *PostCache) Get(ctx context.Context, shortID string) (*blog.Post, bool, error) {
	// L1
	if c.local != nil {
		if raw, ok := c.local.Get(shortID); ok {
			if raw == notFoundSentinel {
				metrics.CacheOperations.WithLabelValues("l1", "hit_negative").Inc()
				return nil, true, nil
			}
			if post, err := decode(raw); err == nil {
				metrics.CacheOperations.WithLabelValues("l1", "hit").Inc()
				return post, true, nil
			}
			c.local.Del(shortID)
		}
	}

	// L2
	if c.client == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, keyPrefix+shortID).Result()
	if err == redis.Nil {
		metrics.CacheOperations.WithLabelValues("l2", "miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if raw == notFoundSentinel {
		metrics.CacheOperations.WithLabelValues("l2", "hit_negative").Inc()
		if c.local != nil {
			c.local.SetNotFound(shortID)
		}
		return nil, true, nil
	}
	post, err := decode(raw)
	if err != nil {
		// 坏数据当未命中处理，由上层回源覆盖
		slog.Warn("post cache: bad entry", "short_id", shortID, "err", err)
		return nil, false, nil
	}
	metrics.CacheOperations.WithLabelValues("l2", "hit").Inc()

	// 回填 L1
	if c.local != nil {
		c.local.Set(shortID, raw)
	}
	return post, true, nil
}

func (c *PostCache) Set(ctx context.Context, post *blog.Post) error {
	data, err := json.Marshal(post)
	if err != nil {
		return err
	}
	if c.local != nil {
		c.local.Set(post.ShortID, string(data))
	}
	if c.client == nil {
		return nil
	}
	return c.client.Set(ctx, keyPrefix+post.ShortID, data, c.ttl).Err()
}

func (c *PostCache) Delete(ctx context.Context, shortID string) error {
	if c.local != nil {
		c.local.Del(shortID)
	}
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, keyPrefix+shortID).Err()
}

// SetNotFound 写负缓存，避免不存在的 short id 反复打到数据库。
func (c *PostCache) SetNotFound(ctx context.Context, shortID string) error {
	if c.local != nil {
		c.local.SetNotFound(shortID)
	}
	if c.client == nil {
		return nil
	}
	return c.client.Set(ctx, keyPrefix+shortID, notFoundSentinel, c.emptyTTL).Err()
}

// Replace 在文章被修改后写入新值。写 redis 失败时改为删除，
// 旧 post 不能留在 L2 里直到 TTL 过期。只有删除也失败时才返回错误。
func (c *PostCache) Replace(ctx context.Context, post *blog.Post) error {
	if err := c.Set(ctx, post); err != nil {
		return c.invalidate(ctx, post.ShortID, err)
	}
	return nil
}

// ReplaceWithNotFound 是文章删除后的 Replace，写入负缓存。
func (c *PostCache) ReplaceWithNotFound(ctx context.Context, shortID string) error {
	if err := c.SetNotFound(ctx, shortID); err != nil {
		return c.invalidate(ctx, shortID, err)
	}
	return nil
}

func (c *PostCache) invalidate(ctx context.Context, shortID string, cause error) error {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()
	if err := c.Delete(dctx, shortID); err != nil {
		metrics.CacheOperations.WithLabelValues("l2", "stale").Inc()
		slog.Error("post cache: stale entry may survive until ttl", "short_id", shortID, "set_err", cause, "del_err", err)
		return errors.Join(cause, err)
	}
	slog.Warn("post cache: write failed, entry dropped", "short_id", shortID, "err", cause)
	return nil
}

func (c *PostCache) Close() {
	if c.local != nil {
		c.local.Close()
		slog.Info("本地缓存已关闭")
	}
}

func decode(raw string) (*blog.Post, error) {
	var post blog.Post
	if err := json.Unmarshal([]byte(raw), &post); err != nil {
		return nil, err
	}
	return &post, nil
}
