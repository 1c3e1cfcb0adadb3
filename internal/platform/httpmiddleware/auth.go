package httpmiddleware

import (
	"net/http"
	"net/url"
	"strings"

	"blog.local/gee"
	"blog.local/internal/platform/auth"
)

// SessionCookie 页面登录后 JWT 存在这个 HttpOnly cookie 里
const SessionCookie = "blog_session"

// parseBearer 解析 Authorization header 中的 Bearer token
// 返回 token 字符串，如果格式不正确返回空字符串
func parseBearer(header string) string {
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return ""
	}
	return fields[1]
}

// tokenFromRequest 先看 Authorization，再看 session cookie
func tokenFromRequest(req *http.Request) string {
	if h := req.Header.Get("Authorization"); h != "" {
		return parseBearer(h)
	}
	if ck, err := req.Cookie(SessionCookie); err == nil {
		return ck.Value
	}
	return ""
}

// identify 校验成功时把身份写进请求 context
func identify(ctx *gee.Context, ts auth.TokenService) bool {
	token := tokenFromRequest(ctx.Req)
	if token == "" {
		return false
	}
	claims, err := ts.Verify(token)
	if err != nil {
		return false
	}
	ctx.Req = ctx.Req.WithContext(auth.WithIdentity(ctx.Req.Context(), claims.Identity()))
	return true
}

// AuthRequired 要求请求必须携带有效的 JWT，失败返回 JSON 401
func AuthRequired(ts auth.TokenService) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		if !identify(ctx, ts) {
			ctx.AbortWithError(http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx.Next()
	}
}

// AuthOptional 可选认证，有有效 token 则解析，否则直接放行
func AuthOptional(ts auth.TokenService) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		identify(ctx, ts)
		ctx.Next()
	}
}

// AuthPage 页面版本：未登录时 303 到登录页，登录后回到原地址
func AuthPage(ts auth.TokenService, loginPath string) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		if !identify(ctx, ts) {
			ctx.Redirect(http.StatusSeeOther, loginPath+"?next="+url.QueryEscape(ctx.Req.URL.RequestURI()))
			return
		}
		ctx.Next()
	}
}

// RequireRole 要求用户具有其中一个角色
func RequireRole(roles ...string) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		id, ok := auth.GetIdentity(ctx.Req.Context())
		if !ok {
			ctx.AbortWithError(http.StatusUnauthorized, "unauthorized")
			return
		}
		for _, r := range roles {
			if id.Role == r {
				ctx.Next()
				return
			}
		}
		ctx.AbortWithError(http.StatusForbidden, "forbidden")
	}
}
