package blog

import (
	"context"
	"errors"
	"time"
)

// ErrPostNotFound 表示按 short id / id 查不到文章。
// repo 层返回它，Resolver 把它折叠成 OutcomeNotFound。
var ErrPostNotFound = errors.New("post not found")

// Post 是文章的领域对象。
//
// 说明：
// - ID：UUID，创建时分配，不可变
// - ShortID：短标识，拼进 URL token，用于点查，不可变
// - Slug：由标题生成，标题修改后可能变化
type Post struct {
	ID            string    `json:"id"`
	ShortID       string    `json:"short_id"`
	Title         string    `json:"title"`
	Slug          string    `json:"slug"`
	Author        string    `json:"author"`
	Summary       string    `json:"summary"`
	Content       string    `json:"content"`
	FeaturedImage string    `json:"featured_image,omitempty"`
	Tags          []string  `json:"tags"`
	ViewCount     int64     `json:"view_count"`
	PublishedAt   time.Time `json:"published_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Token 返回文章当前的 URL token（slug-shortid）。
func (p *Post) Token() string {
	return BuildToken(p.Slug, p.ShortID)
}

// PostInput 是创建/更新文章时经过校验的可写字段。
type PostInput struct {
	Title         string
	Slug          string
	Author        string
	Summary       string
	Content       string
	FeaturedImage string
	Tags          []string
}

// PostFinder 是 Resolver 唯一依赖的查询能力：按 short id 点查。
//
// 约定：查不到时返回 ErrPostNotFound；其它错误原样返回。
type PostFinder interface {
	FindByShortID(ctx context.Context, shortID string) (*Post, error)
}
