package httpmiddleware

import (
	"strconv"
	"time"

	"blog.local/gee"
	"blog.local/internal/platform/metrics"
)

// unmatchedRoute 是 404/405 请求的路由标签，乱扫的 path 都归到这一个值
const unmatchedRoute = "UNMATCHED"

// routeLabel 返回命中的路由模板，文章页统一记成 /posts/:slugId
func routeLabel(ctx *gee.Context) string {
	if ctx.RoutePattern == "" {
		return unmatchedRoute
	}
	return ctx.RoutePattern
}

// Metrics 按路由模板记录请求数、耗时和并发数
func Metrics() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		start := time.Now()
		metrics.HTTPInflightRequests.Inc()
		defer metrics.HTTPInflightRequests.Dec()
		route := routeLabel(ctx)
		defer func() {
			status := strconv.Itoa(ctx.Writer.Status())
			metrics.HTTPRequestsTotal.WithLabelValues(ctx.Method, route, status).Inc()
			metrics.HTTPRequestDurationSeconds.WithLabelValues(ctx.Method, route).Observe(time.Since(start).Seconds())
		}()
		ctx.Next()
	}
}
