package repo

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"blog.local/internal/app/blog"
	"blog.local/internal/app/blog/cache"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrPostNotFound = blog.ErrPostNotFound

// 预热布隆过滤器时正在提交的事务，seq 可能小于当时的最大值却还没落库。
// 低于高水位这么多以内的 seq 不走布隆过滤器。
const bloomSeqMargin = 64

const postColumns = `id, COALESCE(short_id,''), title, slug, author, summary, content, featured_image, tags, view_count, published_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*blog.Post, error) {
	var p blog.Post
	if err := row.Scan(&p.ID, &p.ShortID, &p.Title, &p.Slug, &p.Author, &p.Summary, &p.Content,
		&p.FeaturedImage, &p.Tags, &p.ViewCount, &p.PublishedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return &p, nil
}

type PostsRepo struct {
	db    *pgxpool.Pool
	cache *cache.PostCache
	bloom *cache.BloomFilter
	// 预热时的最大 seq，0 表示布隆过滤器不可用
	bloomHighWater atomic.Int64
}

// NewPostsRepo cache、bloom 都可以为 nil。
func NewPostsRepo(db *pgxpool.Pool, cache *cache.PostCache, bloom *cache.BloomFilter) *PostsRepo {
	return &PostsRepo{
		db:    db,
		cache: cache,
		bloom: bloom,
	}
}

// WarmBloom 把所有 short id 装进布隆过滤器，启动时调用一次。
// 预热之后创建的文章 seq 一定更大，查询时不会被过滤器误拦。
func (s *PostsRepo) WarmBloom(ctx context.Context) (int, error) {
	if s.bloom == nil {
		return 0, nil
	}
	dbctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := s.db.Query(dbctx, "SELECT seq, short_id FROM posts WHERE short_id IS NOT NULL")
	if err != nil {
		slog.Error(err.Error())
		return 0, err
	}
	defer rows.Close()

	var n int
	var maxSeq int64
	for rows.Next() {
		var seq int64
		var shortID string
		if err := rows.Scan(&seq, &shortID); err != nil {
			slog.Error(err.Error())
			return n, err
		}
		s.bloom.Add(shortID)
		if seq > maxSeq {
			maxSeq = seq
		}
		n++
	}
	if err := rows.Err(); err != nil {
		slog.Error(err.Error())
		return n, err
	}
	s.bloomHighWater.Store(maxSeq - bloomSeqMargin)
	return n, nil
}

// definitelyAbsent 为 true 时可以不查库直接判定不存在。
func (s *PostsRepo) definitelyAbsent(shortID string) bool {
	seq, ok := blog.ShortIDSeq(shortID)
	if !ok {
		// 不是本服务生成的 short id
		return true
	}
	if s.bloom == nil {
		return false
	}
	hw := s.bloomHighWater.Load()
	return hw > 0 && int64(seq) <= hw && !s.bloom.MightExist(shortID)
}

// FindByShortID 按 short id 点查：缓存 -> 布隆过滤器 -> 数据库。
func (s *PostsRepo) FindByShortID(ctx context.Context, shortID string) (*blog.Post, error) {
	if s.cache != nil {
		post, hit, err := s.cache.Get(ctx, shortID)
		if err != nil {
			slog.Warn("post cache get failed", "short_id", shortID, "err", err)
		} else if hit {
			if post == nil {
				return nil, ErrPostNotFound // 负缓存
			}
			return post, nil
		}
	}

	if s.definitelyAbsent(shortID) {
		return nil, ErrPostNotFound
	}

	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()
	post, err := scanPost(s.db.QueryRow(dbctx, "SELECT "+postColumns+" FROM posts WHERE short_id=$1", shortID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if s.cache != nil {
				s.cache.SetNotFound(ctx, shortID)
			}
			return nil, ErrPostNotFound
		}
		slog.Error(err.Error())
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, post)
	}
	return post, nil
}

func (s *PostsRepo) FindByID(ctx context.Context, id string) (*blog.Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrPostNotFound
	}
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()
	post, err := scanPost(s.db.QueryRow(dbctx, "SELECT "+postColumns+" FROM posts WHERE id=$1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		slog.Error(err.Error())
		return nil, err
	}
	return post, nil
}

// List 按发布时间倒序返回最多 limit 篇文章
func (s *PostsRepo) List(ctx context.Context, limit int) ([]*blog.Post, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := s.db.Query(dbctx, "SELECT "+postColumns+" FROM posts WHERE short_id IS NOT NULL ORDER BY published_at DESC LIMIT $1", limit)
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	defer rows.Close()

	posts := make([]*blog.Post, 0, limit)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Error(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	return posts, nil
}

func (s *PostsRepo) Count(ctx context.Context) (int64, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()
	var n int64
	if err := s.db.QueryRow(dbctx, "SELECT COUNT(*) FROM posts").Scan(&n); err != nil {
		slog.Error(err.Error())
		return 0, err
	}
	return n, nil
}

/*
创建文章：
1. 插入一行，id 为 uuid，拿到自增 seq
2. seq 编码成 short id 回写
两步在同一个事务里，外部永远看不到没有 short id 的文章
*/
func (s *PostsRepo) Create(ctx context.Context, in blog.PostInput) (*blog.Post, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := s.db.Begin(dbctx)
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	defer tx.Rollback(dbctx) // 提交后 rollback 无效，可忽略

	var seq int64
	if err := tx.QueryRow(dbctx,
		`INSERT INTO posts (id, title, slug, author, summary, content, featured_image, tags)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING seq`,
		uuid.NewString(), in.Title, in.Slug, in.Author, in.Summary, in.Content, in.FeaturedImage, nonNilTags(in.Tags),
	).Scan(&seq); err != nil {
		slog.Error(err.Error())
		return nil, err
	}

	shortID, err := blog.NewShortID(uint64(seq))
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}

	post, err := scanPost(tx.QueryRow(dbctx, "UPDATE posts SET short_id=$1 WHERE seq=$2 RETURNING "+postColumns, shortID, seq))
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}

	if err := tx.Commit(dbctx); err != nil {
		slog.Error(err.Error())
		return nil, err
	}

	if s.bloom != nil {
		s.bloom.Add(shortID)
	}
	// 覆盖可能存在的负缓存
	if s.cache != nil {
		cacheCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		s.cache.Replace(cacheCtx, post)
	}
	return post, nil
}

// Update 覆盖可写字段。short id 和 id 不变，slug 可能变。
func (s *PostsRepo) Update(ctx context.Context, id string, in blog.PostInput) (*blog.Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrPostNotFound
	}
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	post, err := scanPost(s.db.QueryRow(dbctx,
		`UPDATE posts SET title=$1, slug=$2, author=$3, summary=$4, content=$5, featured_image=$6, tags=$7, updated_at=now()
		 WHERE id=$8 RETURNING `+postColumns,
		in.Title, in.Slug, in.Author, in.Summary, in.Content, in.FeaturedImage, nonNilTags(in.Tags), id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		slog.Error(err.Error())
		return nil, err
	}

	// 写缓存失败时 Replace 会删掉旧值，否则旧 slug 会让新 URL 跳回旧 URL
	if s.cache != nil {
		cacheCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		s.cache.Replace(cacheCtx, post)
	}
	return post, nil
}

// Delete 删除文章并返回被删除的行，调用方据此清理封面图。
func (s *PostsRepo) Delete(ctx context.Context, id string) (*blog.Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrPostNotFound
	}
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	post, err := scanPost(s.db.QueryRow(dbctx, "DELETE FROM posts WHERE id=$1 RETURNING "+postColumns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		slog.Error(err.Error())
		return nil, err
	}

	if s.cache != nil {
		cacheCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		s.cache.ReplaceWithNotFound(cacheCtx, post.ShortID)
	}
	return post, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
