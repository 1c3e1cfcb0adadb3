package httpapi

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"strings"
	"sync"
	"time"

	"blog.local/internal/app/blog"
	"blog.local/internal/platform/blobstore"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	mdOnce sync.Once
	md     goldmark.Markdown
)

// markdown 不开启 html.WithUnsafe，正文里的原始 HTML 会被过滤
func getMarkdown() goldmark.Markdown {
	mdOnce.Do(func() {
		md = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		)
	})
	return md
}

func renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := getMarkdown().Convert([]byte(src), &buf); err != nil {
		slog.Warn("markdown render failed", "err", err)
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

var templateFuncs = template.FuncMap{
	"formatDate": blog.FormatDate,
	"timeAgo": func(t time.Time) string {
		return blog.FormatRelative(t, time.Now())
	},
	"postURL": func(p *blog.Post) string {
		return postPath(p.Token())
	},
	"editURL": func(p *blog.Post) string {
		return postPath(p.Token()) + "/edit"
	},
	"deleteURL": func(p *blog.Post) string {
		return postPath(p.Token()) + "/delete"
	},
	"imageName": blobstore.FilenameFromURL,
	"join":      strings.Join,
	"fieldErrors": func(fe blog.FieldErrors, field string) []string {
		return fe[field]
	},
}

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
}

func mustTemplates() *template.Template {
	return template.Must(parseTemplates())
}
