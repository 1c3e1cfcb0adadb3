package httpapi

import (
	"context"
	"strings"
	"time"

	"blog.local/gee"
	"blog.local/internal/app/blog"
	"blog.local/internal/app/blog/repo"
	"blog.local/internal/app/blog/stats"
	"blog.local/internal/platform/auth"
	"blog.local/internal/platform/blobstore"
	"blog.local/internal/platform/httpmiddleware"
	"blog.local/internal/platform/ratelimit"
)

// PostStore 是 handler 需要的文章存储能力，repo.PostsRepo 实现它
type PostStore interface {
	blog.PostFinder
	List(ctx context.Context, limit int) ([]*blog.Post, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, in blog.PostInput) (*blog.Post, error)
	Update(ctx context.Context, id string, in blog.PostInput) (*blog.Post, error)
	Delete(ctx context.Context, id string) (*blog.Post, error)
}

// Authenticator 校验作者账号，repo.UsersRepo 实现它
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (repo.User, error)
}

// Deps 是 blog 路由的全部依赖，由 cmd/api 组装
type Deps struct {
	Posts PostStore
	Users Authenticator
	// Blobs 为 nil 时不能上传封面图
	Blobs     blobstore.Store
	Collector stats.Collector
	Limiter   *ratelimit.Limiter
	Tokens    auth.TokenService

	// AuthEnabled 为 false 时任何人都能写文章
	AuthEnabled    bool
	SecureCookies  bool
	MaxUploadBytes int64
	PageSize       int
}

func (d Deps) withDefaults() Deps {
	if d.Collector == nil {
		d.Collector = stats.NopCollector{}
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 4 << 20
	}
	if d.PageSize <= 0 {
		d.PageSize = 50
	}
	return d
}

// RegisterPageRoutes 挂载服务端渲染的页面，同时加载模板并接管 404。
//
// 写操作（创建/编辑/删除）在开启登录时要求作者身份，未登录跳转 /login。
func RegisterPageRoutes(r *gee.Engine, d Deps) {
	d = d.withDefaults()
	h := &pages{deps: d, resolver: blog.NewResolver(d.Posts), now: time.Now}

	r.SetHTMLTemplate(mustTemplates())
	r.NoRoute(h.notFoundRoute)
	r.OnPanic(h.panicRoute)

	identify := []gee.HandlerFunc{}
	write := []gee.HandlerFunc{}
	if d.AuthEnabled {
		identify = append(identify, httpmiddleware.AuthOptional(d.Tokens))
		write = append(write, httpmiddleware.AuthPage(d.Tokens, "/login"), httpmiddleware.RequireRole(repo.RoleAuthor, repo.RoleAdmin))
	}

	r.GET("/", chain(identify, h.home)...)
	r.GET("/posts/create", chain(write, h.createForm)...)
	r.POST("/posts/create", chain(write, httpmiddleware.RateLimit(d.Limiter, "create", 10, time.Minute), h.create)...)
	// 阅读 100次/分钟
	r.GET("/posts/:slugId", chain(identify, httpmiddleware.RateLimit(d.Limiter, "view", 100, time.Minute), h.show)...)
	r.GET("/posts/:slugId/edit", chain(write, h.editForm)...)
	r.POST("/posts/:slugId/edit", chain(write, h.update)...)
	r.POST("/posts/:slugId/delete", chain(write, h.delete)...)

	if d.AuthEnabled {
		r.GET("/login", h.loginForm)
		//登录 5次/分钟
		r.POST("/login", httpmiddleware.RateLimit(d.Limiter, "login", 5, time.Minute), h.login)
		r.POST("/logout", h.logout)
	}
}

// RegisterAPIRoutes 在 /api/v1 分组下挂载 JSON 接口
func RegisterAPIRoutes(api *gee.RouterGroup, d Deps) {
	d = d.withDefaults()
	h := &jsonAPI{deps: d, resolver: blog.NewResolver(d.Posts)}

	api.GET("/posts", h.list)
	api.GET("/posts/count", h.count)
	api.GET("/posts/:slugId", httpmiddleware.RateLimit(d.Limiter, "api", 120, time.Minute), h.get)

	write := []gee.HandlerFunc{}
	if d.AuthEnabled {
		write = append(write, httpmiddleware.AuthRequired(d.Tokens), httpmiddleware.RequireRole(repo.RoleAuthor, repo.RoleAdmin))
	}
	api.POST("/posts", chain(write, httpmiddleware.RateLimit(d.Limiter, "create", 10, time.Minute), h.create)...)
	api.DELETE("/posts/:slugId", chain(write, h.delete)...)
}

func chain(pre []gee.HandlerFunc, handlers ...gee.HandlerFunc) []gee.HandlerFunc {
	out := make([]gee.HandlerFunc, 0, len(pre)+len(handlers))
	out = append(out, pre...)
	return append(out, handlers...)
}

// isAPIPath 404 时决定返回 JSON 还是页面
func isAPIPath(p string) bool {
	return strings.HasPrefix(p, "/api/")
}

func postPath(token string) string {
	return "/posts/" + token
}
