package httpmiddleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"blog.local/gee"
	"blog.local/internal/platform/metrics"
	"blog.local/internal/platform/ratelimit"
)

// trustedProxies 只有来自这些网段的请求才读转发头：同机反代、RFC1918、IPv6 ULA
var trustedProxies = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("fc00::/7"),
}

// ClientIP 返回真实客户端 IP，用于限流 key 和阅读统计。
// 直连请求一律用 RemoteAddr，转发头可以伪造。
func ClientIP(req *http.Request) string {
	remoteHost, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		remoteHost = req.RemoteAddr
	}
	remote, err := netip.ParseAddr(remoteHost)
	if err != nil || !isTrustedProxy(remote) {
		return remoteHost
	}

	// 顺序：CF-Connecting-IP，X-Forwarded-For 第一个，X-Real-IP
	candidates := []string{req.Header.Get("CF-Connecting-IP")}
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		candidates = append(candidates, first)
	}
	candidates = append(candidates, req.Header.Get("X-Real-IP"))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if _, err := netip.ParseAddr(c); err == nil {
			return c
		}
	}
	return remoteHost
}

func isTrustedProxy(ip netip.Addr) bool {
	ip = ip.Unmap()
	for _, p := range trustedProxies {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

// RateLimit 按 IP 限流，prefix 区分不同接口。limiter 为 nil 时不限流，Redis 故障时放行。
func RateLimit(limiter *ratelimit.Limiter, prefix string, limit int, window time.Duration) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		if limiter == nil {
			ctx.Next()
			return
		}
		key := "rl:" + prefix + ":" + ClientIP(ctx.Req)

		rlCtx, cancel := context.WithTimeout(ctx.Req.Context(), 50*time.Millisecond)
		defer cancel()
		allowed, retryAfter, err := limiter.Allow(rlCtx, key, limit, window)
		if err != nil {
			slog.Error("rate limit check failed", "err", err)
			ctx.Next()
			return
		}
		if !allowed {
			metrics.RateLimited.WithLabelValues(prefix).Inc()
			if retryAfter > 0 {
				// Retry-After 单位是秒，向上取整
				secs := int64((retryAfter + time.Second - 1) / time.Second)
				ctx.SetHeader("Retry-After", strconv.FormatInt(secs, 10))
			}
			ctx.AbortWithError(http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		ctx.Next()
	}
}
