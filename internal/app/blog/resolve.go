package blog

import (
	"context"
	"errors"
)

// Outcome 是一次 token 解析的终态。
type Outcome int

const (
	OutcomeNotFound Outcome = iota
	OutcomeServe
	OutcomeRedirect
)

func (o Outcome) String() string {
	switch o {
	case OutcomeServe:
		return "serve"
	case OutcomeRedirect:
		return "redirect"
	default:
		return "not_found"
	}
}

// ResolveOptions 控制 slug 不一致时的行为。
//
// 阅读页需要跳转到规范 URL；编辑页不能在编辑途中被跳走，所以关掉。
type ResolveOptions struct {
	RedirectOnMismatch bool
}

// Resolution 是 Resolve 的结果：
// - OutcomeServe：Post 有值
// - OutcomeRedirect：Token 是规范 token，Post 也会带上
// - OutcomeNotFound：其余字段为空
type Resolution struct {
	Outcome Outcome
	Post    *Post
	Token   string
}

// Resolver 把 URL token 解析成文章或跳转/404 决定。
// 本身无状态，可并发使用。
type Resolver struct {
	Finder PostFinder
}

func NewResolver(finder PostFinder) *Resolver {
	return &Resolver{Finder: finder}
}

// Resolve 每次调用最多查询一次 Finder，不重试。
//
// token 不合法或 Finder 返回 ErrPostNotFound 时得到 OutcomeNotFound；
// Finder 的其它错误原样返回，由调用方决定如何呈现。
func (r *Resolver) Resolve(ctx context.Context, token string, opts ResolveOptions) (Resolution, error) {
	parsed, err := ParseToken(token)
	if err != nil {
		return Resolution{Outcome: OutcomeNotFound}, nil
	}

	post, err := r.Finder.FindByShortID(ctx, parsed.ShortID)
	if err != nil {
		if errors.Is(err, ErrPostNotFound) {
			return Resolution{Outcome: OutcomeNotFound}, nil
		}
		return Resolution{}, err
	}
	if post == nil {
		return Resolution{Outcome: OutcomeNotFound}, nil
	}

	if opts.RedirectOnMismatch && post.Slug != parsed.Slug {
		return Resolution{
			Outcome: OutcomeRedirect,
			Post:    post,
			Token:   BuildToken(post.Slug, parsed.ShortID),
		}, nil
	}
	return Resolution{Outcome: OutcomeServe, Post: post, Token: token}, nil
}
