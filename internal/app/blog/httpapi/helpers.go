package httpapi

import (
	"strings"

	"blog.local/gee"
	"blog.local/internal/platform/auth"
)

// layout 是所有页面共用的头部数据
type layout struct {
	PageTitle string
	User      *auth.Identity
	// CanWrite 控制是否显示 新建/编辑/删除 入口
	CanWrite    bool
	AuthEnabled bool
}

func (p *pages) layout(ctx *gee.Context, title string) layout {
	l := layout{PageTitle: title, AuthEnabled: p.deps.AuthEnabled}
	if id, ok := auth.GetIdentity(ctx.Req.Context()); ok {
		l.User = &id
	}
	l.CanWrite = !p.deps.AuthEnabled || l.User != nil
	return l
}

// safeNext 只允许站内相对路径，防止登录后被带去外站
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
