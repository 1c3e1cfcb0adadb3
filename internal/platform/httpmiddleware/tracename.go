package httpmiddleware

import (
	"blog.local/gee"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TraceName 用路由模板给 otelhttp 创建的 span 命名，避免 /posts/{token} 产生无限多的 span 名
func TraceName() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		route := routeLabel(ctx)
		span := trace.SpanFromContext(ctx.Req.Context())
		span.SetName(ctx.Method + " " + route)
		span.SetAttributes(attribute.String("http.route", route))
		ctx.Next()
	}
}
