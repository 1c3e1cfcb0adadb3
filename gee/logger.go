package gee

import (
	"log/slog"
	"time"
)

// Logger 是最简单的访问日志，正式服务用 middleware.AccessLog
func Logger() HandlerFunc {
	return func(ctx *Context) {
		t := time.Now()
		ctx.Next()
		slog.Info("request",
			"status", ctx.Writer.Status(),
			"uri", ctx.Req.RequestURI,
			"latency_us", time.Since(t).Microseconds(),
			"bytes", ctx.Writer.Size())
	}
}
