package gee

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
)

// trace 拼出 panic 现场的调用栈，跳过 runtime 和 Recovery 自身
func trace(message string) string {
	var pcs [32]uintptr
	n := runtime.Callers(3, pcs[:])

	var str strings.Builder
	str.WriteString(message + "\nTraceback:")
	for _, pc := range pcs[:n] {
		fn := runtime.FuncForPC(pc)
		file, line := fn.FileLine(pc)
		fmt.Fprintf(&str, "\n\t%s:%d", file, line)
	}
	return str.String()
}

// Recovery 捕获 panic。响应还没写出时交给 Engine.OnPanic 注册的 handler，
// 没注册就返回 JSON 500。
func Recovery() HandlerFunc {
	return func(ctx *Context) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			if err == http.ErrAbortHandler {
				panic(err)
			}
			slog.Error("panic recovered",
				"request_id", ctx.Req.Header.Get("X-Request-ID"),
				"method", ctx.Method,
				"path", ctx.Path,
				"panic", err,
				"stack", trace(fmt.Sprintf("%v", err)),
			)
			if ctx.Writer.Written() {
				ctx.Abort()
				return
			}
			if ctx.engine != nil && ctx.engine.onPanic != nil {
				ctx.Abort()
				ctx.engine.onPanic(ctx)
				return
			}
			ctx.AbortWithError(http.StatusInternalServerError, "Internal Server Error")
		}()
		ctx.Next()
	}
}
