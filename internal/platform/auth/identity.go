package auth

import "context"

// Identity 是当前请求登录的作者
type Identity struct {
	UserID string
	Role   string
	Name   string // 显示名，写文章时作为默认作者
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func GetIdentity(ctx context.Context) (Identity, bool) {
	v := ctx.Value(identityKey{})
	id, ok := v.(Identity)
	return id, ok
}
