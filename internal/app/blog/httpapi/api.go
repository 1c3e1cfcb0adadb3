package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"blog.local/gee"
	"blog.local/internal/app/blog"
	"blog.local/internal/platform/blobstore"
	"blog.local/internal/platform/metrics"
)

type jsonAPI struct {
	deps     Deps
	resolver *blog.Resolver
}

type PostResponse struct {
	*blog.Post
	Token string `json:"token"`
	URL   string `json:"url"`
}

func newPostResponse(p *blog.Post) PostResponse {
	return PostResponse{Post: p, Token: p.Token(), URL: postPath(p.Token())}
}

type CreatePostRequest struct {
	Title   string   `json:"title"`
	Slug    string   `json:"slug,omitempty"`
	Author  string   `json:"author"`
	Summary string   `json:"summary"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

type ValidationErrorResponse struct {
	Message string           `json:"message"`
	Errors  blog.FieldErrors `json:"errors"`
}

func (a *jsonAPI) list(ctx *gee.Context) {
	limit := a.deps.PageSize
	if l := ctx.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 || n > 500 {
			ctx.AbortWithError(http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	posts, err := a.deps.Posts.List(ctx.Req.Context(), limit)
	if err != nil {
		slog.Error("list posts failed", "err", err)
		ctx.AbortWithError(http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, newPostResponse(p))
	}
	ctx.JSON(http.StatusOK, out)
}

func (a *jsonAPI) count(ctx *gee.Context) {
	n, err := a.deps.Posts.Count(ctx.Req.Context())
	if err != nil {
		ctx.AbortWithError(http.StatusInternalServerError, "internal error")
		return
	}
	ctx.JSON(http.StatusOK, gee.H{"count": n})
}

// resolve 与页面版本一致，错误以 JSON 返回
func (a *jsonAPI) resolve(ctx *gee.Context, redirect bool) *blog.Resolution {
	res, err := a.resolver.Resolve(ctx.Req.Context(), ctx.Param("slugId"), blog.ResolveOptions{RedirectOnMismatch: redirect})
	if err != nil {
		metrics.PostResolutions.WithLabelValues("error").Inc()
		slog.Error("resolve post failed", "token", ctx.Param("slugId"), "err", err)
		ctx.AbortWithError(http.StatusInternalServerError, "internal error")
		return nil
	}
	metrics.PostResolutions.WithLabelValues(res.Outcome.String()).Inc()
	if res.Outcome == blog.OutcomeNotFound {
		ctx.AbortWithError(http.StatusNotFound, blog.ErrPostNotFound.Error())
		return nil
	}
	return &res
}

func (a *jsonAPI) get(ctx *gee.Context) {
	res := a.resolve(ctx, true)
	if res == nil {
		return
	}
	if res.Outcome == blog.OutcomeRedirect {
		ctx.SetHeader("Location", path.Join(path.Dir(ctx.Path), res.Token))
		ctx.JSON(http.StatusTemporaryRedirect, gee.H{"token": res.Token})
		return
	}
	ctx.JSON(http.StatusOK, newPostResponse(res.Post))
}

func (a *jsonAPI) create(ctx *gee.Context) {
	var req CreatePostRequest
	if err := ctx.BindJSON(&req); err != nil {
		return
	}
	input, fieldErrs := blog.ValidatePostForm(blog.PostForm{
		Title:   req.Title,
		Slug:    req.Slug,
		Author:  req.Author,
		Summary: req.Summary,
		Content: req.Content,
		Tags:    strings.Join(req.Tags, ","),
	})
	if !fieldErrs.Empty() {
		ctx.JSON(http.StatusUnprocessableEntity, ValidationErrorResponse{Message: blog.MsgCreateInvalid, Errors: fieldErrs})
		return
	}
	post, err := a.deps.Posts.Create(ctx.Req.Context(), input)
	if err != nil {
		slog.Error("create post failed", "err", err)
		ctx.AbortWithError(http.StatusInternalServerError, blog.MsgCreateFailed)
		return
	}
	ctx.SetHeader("Location", postPath(post.Token()))
	ctx.JSON(http.StatusCreated, newPostResponse(post))
}

func (a *jsonAPI) delete(ctx *gee.Context) {
	res := a.resolve(ctx, false)
	if res == nil {
		return
	}
	deleted, err := a.deps.Posts.Delete(ctx.Req.Context(), res.Post.ID)
	if err != nil {
		if errors.Is(err, blog.ErrPostNotFound) {
			ctx.AbortWithError(http.StatusNotFound, err.Error())
			return
		}
		slog.Error("delete post failed", "id", res.Post.ID, "err", err)
		ctx.AbortWithError(http.StatusInternalServerError, blog.MsgDeleteFailed)
		return
	}
	if deleted.FeaturedImage != "" && a.deps.Blobs != nil {
		if err := a.deps.Blobs.Delete(ctx.Req.Context(), deleted.FeaturedImage); err != nil && !errors.Is(err, blobstore.ErrForeignURL) {
			slog.Warn("discard featured image failed", "url", deleted.FeaturedImage, "err", err)
		}
	}
	ctx.Status(http.StatusNoContent)
}
