package httpapi

import (
	"embed"
	"io/fs"
	"net/http"

	"blog.local/gee"
)

//go:embed static/*
var staticFS embed.FS

// RegisterWebRoutes 挂载内嵌的静态资源（样式、图标）
func RegisterWebRoutes(r *gee.Engine) {
	staticRoot, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("failed to get static subdirectory: " + err.Error())
	}

	static := r.Group("/static")
	static.Use(func(ctx *gee.Context) {
		ctx.SetHeader("Cache-Control", "public, max-age=3600")
		ctx.Next()
	})
	static.StaticFS("/", staticRoot)

	r.GET("/favicon.svg", func(ctx *gee.Context) {
		data, err := fs.ReadFile(staticRoot, "favicon.svg")
		if err != nil {
			ctx.Status(http.StatusNoContent)
			return
		}
		ctx.SetHeader("Content-Type", "image/svg+xml")
		ctx.Data(http.StatusOK, data)
	})

	// 避免 favicon.ico 刷 404 日志
	r.GET("/favicon.ico", func(ctx *gee.Context) {
		ctx.Status(http.StatusNoContent)
	})
}
