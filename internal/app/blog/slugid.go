package blog

import (
	"errors"
	"strings"
)

// ErrMalformedToken 表示 URL token 中没有分隔符。
var ErrMalformedToken = errors.New("malformed slug token")

const tokenSeparator = "-"

// SlugToken 是 URL token 解析后的两部分。
type SlugToken struct {
	Slug    string
	ShortID string
}

// BuildToken 把 slug 和 short id 拼成一个 URL path segment：slug-shortid。
//
// 不做转义。slug 里可以有 "-"，short id 里不能有，
// 所以 ParseToken 按最后一个 "-" 切分总能还原出原来的两部分。
func BuildToken(slug, shortID string) string {
	return slug + tokenSeparator + shortID
}

// ParseToken 按最后一个 "-" 切分 token。
//
// "slug-" 会得到空的 ShortID，这在编解码层面是合法的，交给上层查询失败处理。
func ParseToken(token string) (SlugToken, error) {
	i := strings.LastIndex(token, tokenSeparator)
	if i < 0 {
		return SlugToken{}, ErrMalformedToken
	}
	return SlugToken{
		Slug:    token[:i],
		ShortID: token[i+len(tokenSeparator):],
	}, nil
}
