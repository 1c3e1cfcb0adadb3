package httpapi

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"blog.local/gee"
	"blog.local/internal/app/blog"
	"blog.local/internal/app/blog/stats"
	"blog.local/internal/platform/auth"
	"blog.local/internal/platform/httpmiddleware"
	"blog.local/internal/platform/metrics"
)

type pages struct {
	deps     Deps
	resolver *blog.Resolver
	now      func() time.Time
}

type homeView struct {
	layout
	Posts []*blog.Post
}

type postView struct {
	layout
	Post    *blog.Post
	Content template.HTML
}

type formView struct {
	layout
	// Action 是表单提交地址
	Action string
	Edit   bool
	Post   *blog.Post
	Form   blog.PostForm
	State  blog.FormState
	Image  string
}

type notFoundView struct {
	layout
	Message string
}

type errorView struct {
	layout
	Message string
}

func (p *pages) home(ctx *gee.Context) {
	posts, err := p.deps.Posts.List(ctx.Req.Context(), p.deps.PageSize)
	if err != nil {
		slog.Error("list posts failed", "err", err)
		p.renderError(ctx, http.StatusInternalServerError, "Failed to load posts.")
		return
	}
	ctx.HTML(http.StatusOK, "home.html", homeView{layout: p.layout(ctx, "Blog"), Posts: posts})
}

// resolve 解析 :slugId，处理 404/500，返回 nil 时响应已写出
func (p *pages) resolve(ctx *gee.Context, redirect bool) *blog.Resolution {
	res, err := p.resolver.Resolve(ctx.Req.Context(), ctx.Param("slugId"), blog.ResolveOptions{RedirectOnMismatch: redirect})
	if err != nil {
		metrics.PostResolutions.WithLabelValues("error").Inc()
		slog.Error("resolve post failed", "token", ctx.Param("slugId"), "err", err)
		p.renderError(ctx, http.StatusInternalServerError, "Failed to load post.")
		return nil
	}
	metrics.PostResolutions.WithLabelValues(res.Outcome.String()).Inc()
	if res.Outcome == blog.OutcomeNotFound {
		p.renderNotFound(ctx)
		return nil
	}
	return &res
}

func (p *pages) show(ctx *gee.Context) {
	res := p.resolve(ctx, true)
	if res == nil {
		return
	}
	if res.Outcome == blog.OutcomeRedirect {
		// slug 还会再变，不能让浏览器缓存跳转
		ctx.Redirect(http.StatusTemporaryRedirect, postPath(res.Token))
		return
	}

	metrics.PostViews.Inc()
	//异步记录阅读
	p.deps.Collector.Collect(stats.ViewEvent{
		ShortID:   res.Post.ShortID,
		ViewedAt:  p.now(),
		IP:        httpmiddleware.ClientIP(ctx.Req),
		UserAgent: ctx.Req.UserAgent(),
		Referer:   ctx.Req.Referer(),
	})

	ctx.HTML(http.StatusOK, "post.html", postView{
		layout:  p.layout(ctx, res.Post.Title),
		Post:    res.Post,
		Content: renderMarkdown(res.Post.Content),
	})
}

func (p *pages) createForm(ctx *gee.Context) {
	v := formView{layout: p.layout(ctx, "New post"), Action: "/posts/create"}
	if v.User != nil {
		v.Form.Author = v.User.Name
	}
	ctx.HTML(http.StatusOK, "form.html", v)
}

func (p *pages) create(ctx *gee.Context) {
	v := formView{layout: p.layout(ctx, "New post"), Action: "/posts/create"}

	upload, err := p.parseForm(ctx)
	if err != nil {
		v.State.Message = blog.ImageErrorMessage(err, p.deps.MaxUploadBytes)
		ctx.HTML(http.StatusUnprocessableEntity, "form.html", v)
		return
	}
	defer upload.close()
	v.Form = readPostForm(ctx)

	input, fieldErrs := blog.ValidatePostForm(v.Form)
	if !fieldErrs.Empty() {
		v.State = blog.FormState{Errors: fieldErrs, Message: blog.MsgCreateInvalid}
		ctx.HTML(http.StatusUnprocessableEntity, "form.html", v)
		return
	}

	if upload.present() {
		url, msg := p.storeImage(ctx, upload, "")
		if msg != "" {
			v.State.Message = msg
			ctx.HTML(http.StatusUnprocessableEntity, "form.html", v)
			return
		}
		input.FeaturedImage = url
	}

	post, err := p.deps.Posts.Create(ctx.Req.Context(), input)
	if err != nil {
		slog.Error("create post failed", "err", err)
		p.discardImage(ctx, input.FeaturedImage)
		v.State.Message = blog.MsgCreateFailed
		ctx.HTML(http.StatusInternalServerError, "form.html", v)
		return
	}
	slog.Info("post created", "id", post.ID, "short_id", post.ShortID, "user_id", userID(ctx))
	ctx.Redirect(http.StatusSeeOther, postPath(post.Token()))
}

func (p *pages) editForm(ctx *gee.Context) {
	res := p.resolve(ctx, false)
	if res == nil {
		return
	}
	post := res.Post
	ctx.HTML(http.StatusOK, "form.html", formView{
		layout: p.layout(ctx, "Edit: "+post.Title),
		Action: postPath(ctx.Param("slugId")) + "/edit",
		Edit:   true,
		Post:   post,
		Form:   formFromPost(post),
		Image:  post.FeaturedImage,
	})
}

/*
更新文章，封面图的处理顺序：
1. 勾选删除或上传了新图时，先删除旧图
2. 再上传新图
3. 最后更新数据库
三步之间没有事务，任何一步失败都在表单上提示
*/
func (p *pages) update(ctx *gee.Context) {
	res := p.resolve(ctx, false)
	if res == nil {
		return
	}
	post := res.Post
	v := formView{
		layout: p.layout(ctx, "Edit: "+post.Title),
		Action: postPath(ctx.Param("slugId")) + "/edit",
		Edit:   true,
		Post:   post,
		Image:  post.FeaturedImage,
	}

	upload, err := p.parseForm(ctx)
	if err != nil {
		v.Form = formFromPost(post)
		v.State.Message = blog.ImageErrorMessage(err, p.deps.MaxUploadBytes)
		ctx.HTML(http.StatusUnprocessableEntity, "form.html", v)
		return
	}
	defer upload.close()
	v.Form = readPostForm(ctx)

	input, fieldErrs := blog.ValidatePostForm(v.Form)
	if !fieldErrs.Empty() {
		v.State = blog.FormState{Errors: fieldErrs, Message: blog.MsgUpdateInvalid}
		ctx.HTML(http.StatusUnprocessableEntity, "form.html", v)
		return
	}

	// 旧图以数据库为准，不信任表单里的隐藏字段
	input.FeaturedImage = post.FeaturedImage
	removeOld := ctx.PostForm("delete_featured_image") == "true" || upload.present()
	if removeOld && post.FeaturedImage != "" {
		if msg := p.removeImage(ctx, post.FeaturedImage); msg != "" {
			v.State.Message = msg
			ctx.HTML(http.StatusInternalServerError, "form.html", v)
			return
		}
		input.FeaturedImage = ""
		v.Image = ""
	}
	if upload.present() {
		url, msg := p.storeImage(ctx, upload, post.ShortID)
		if msg != "" {
			v.State.Message = msg
			ctx.HTML(http.StatusUnprocessableEntity, "form.html", v)
			return
		}
		input.FeaturedImage = url
	}

	updated, err := p.deps.Posts.Update(ctx.Req.Context(), post.ID, input)
	if err != nil {
		if errors.Is(err, blog.ErrPostNotFound) {
			p.renderNotFound(ctx)
			return
		}
		slog.Error("update post failed", "id", post.ID, "err", err)
		v.State.Message = blog.MsgUpdateFailed
		ctx.HTML(http.StatusInternalServerError, "form.html", v)
		return
	}
	ctx.Redirect(http.StatusSeeOther, postPath(updated.Token()))
}

func (p *pages) delete(ctx *gee.Context) {
	res := p.resolve(ctx, false)
	if res == nil {
		return
	}
	deleted, err := p.deps.Posts.Delete(ctx.Req.Context(), res.Post.ID)
	if err != nil {
		if errors.Is(err, blog.ErrPostNotFound) {
			p.renderNotFound(ctx)
			return
		}
		slog.Error("delete post failed", "id", res.Post.ID, "err", err)
		p.renderError(ctx, http.StatusInternalServerError, blog.MsgDeleteFailed)
		return
	}
	// 行已经删掉，封面图删不掉只记日志
	p.discardImage(ctx, deleted.FeaturedImage)
	slog.Info("post deleted", "id", deleted.ID, "short_id", deleted.ShortID, "user_id", userID(ctx))
	ctx.Redirect(http.StatusSeeOther, "/")
}

func (p *pages) notFoundRoute(ctx *gee.Context) {
	if isAPIPath(ctx.Path) {
		ctx.AbortWithError(http.StatusNotFound, "not found")
		return
	}
	p.renderNotFound(ctx)
}

// panicRoute Recovery 兜底：API 返回 JSON，页面渲染错误页
func (p *pages) panicRoute(ctx *gee.Context) {
	if isAPIPath(ctx.Path) {
		ctx.AbortWithError(http.StatusInternalServerError, "Internal Server Error")
		return
	}
	p.renderError(ctx, http.StatusInternalServerError, "Something went wrong.")
}

func (p *pages) renderNotFound(ctx *gee.Context) {
	ctx.HTML(http.StatusNotFound, "notfound.html", notFoundView{
		layout:  p.layout(ctx, "Not found"),
		Message: "Could not find the requested post.",
	})
	ctx.Abort()
}

func (p *pages) renderError(ctx *gee.Context, code int, msg string) {
	ctx.HTML(code, "error.html", errorView{layout: p.layout(ctx, strconv.Itoa(code)), Message: msg})
	ctx.Abort()
}

// userID 当前登录作者，没有时返回空
func userID(ctx *gee.Context) string {
	if id, ok := auth.GetIdentity(ctx.Req.Context()); ok {
		return id.UserID
	}
	return ""
}
