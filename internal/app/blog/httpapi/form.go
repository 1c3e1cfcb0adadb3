package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"blog.local/gee"
	"blog.local/internal/app/blog"
	"blog.local/internal/platform/blobstore"
)

// 表单文本字段的额外余量，加上图片上限就是请求体上限
const formOverhead = 1 << 20

// multipart 在内存里最多保留这么多，超出部分落临时文件
const formMemory = 8 << 20

// imageUpload 表单里的封面图，没有上传时 file 为 nil
type imageUpload struct {
	file   multipart.File
	header *multipart.FileHeader
}

func (u *imageUpload) present() bool {
	return u != nil && u.file != nil
}

func (u *imageUpload) close() {
	if u.present() {
		u.file.Close()
	}
}

// parseForm 解析 urlencoded 或 multipart 表单。请求体超限时返回 blog.ErrImageTooLarge。
func (p *pages) parseForm(ctx *gee.Context) (*imageUpload, error) {
	ctx.Req.Body = http.MaxBytesReader(ctx.Writer, ctx.Req.Body, p.deps.MaxUploadBytes+formOverhead)

	var err error
	if strings.HasPrefix(ctx.Req.Header.Get("Content-Type"), "multipart/form-data") {
		err = ctx.Req.ParseMultipartForm(formMemory)
	} else {
		err = ctx.Req.ParseForm()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, blog.ErrImageTooLarge
		}
		return nil, err
	}

	file, header, err := ctx.FormFile("featured_image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return &imageUpload{}, nil
		}
		return nil, err
	}
	// 没选文件时浏览器也会提交一个空的 file part
	if header.Size == 0 {
		file.Close()
		return &imageUpload{}, nil
	}
	return &imageUpload{file: file, header: header}, nil
}

func readPostForm(ctx *gee.Context) blog.PostForm {
	return blog.PostForm{
		Title:   ctx.PostForm("title"),
		Slug:    ctx.PostForm("slug"),
		Author:  ctx.PostForm("author"),
		Summary: ctx.PostForm("summary"),
		Content: ctx.PostForm("content"),
		Tags:    ctx.PostForm("tags"),
	}
}

func formFromPost(post *blog.Post) blog.PostForm {
	return blog.PostForm{
		Title:   post.Title,
		Slug:    post.Slug,
		Author:  post.Author,
		Summary: post.Summary,
		Content: post.Content,
		Tags:    strings.Join(post.Tags, ", "),
	}
}

// storeImage 校验并上传封面图，失败时返回给用户看的提示
func (p *pages) storeImage(ctx *gee.Context, up *imageUpload, shortID string) (string, string) {
	if p.deps.Blobs == nil {
		return "", blog.MsgUploadsDisabled
	}
	if up.header.Size > p.deps.MaxUploadBytes {
		return "", blog.ImageErrorMessage(blog.ErrImageTooLarge, p.deps.MaxUploadBytes)
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(up.file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		slog.Error("read upload failed", "err", err)
		return "", blog.ImageErrorMessage(err, p.deps.MaxUploadBytes)
	}
	contentType, err := blog.DetectImageType(head[:n])
	if err != nil {
		return "", blog.ImageErrorMessage(err, p.deps.MaxUploadBytes)
	}
	if _, err := up.file.Seek(0, io.SeekStart); err != nil {
		slog.Error("rewind upload failed", "err", err)
		return "", blog.ImageErrorMessage(err, p.deps.MaxUploadBytes)
	}

	key := blog.ImageObjectKey(shortID, up.header.Filename, contentType, p.now())
	url, err := p.deps.Blobs.Put(ctx.Req.Context(), key, up.file, up.header.Size, contentType)
	if err != nil {
		slog.Error("upload featured image failed", "key", key, "err", err)
		return "", blog.ImageErrorMessage(err, p.deps.MaxUploadBytes)
	}
	return url, ""
}

// removeImage 编辑时删除旧图，失败返回提示
func (p *pages) removeImage(ctx *gee.Context, url string) string {
	if p.deps.Blobs == nil {
		slog.Warn("blob store disabled, dropping image reference only", "url", url)
		return ""
	}
	if err := p.deps.Blobs.Delete(ctx.Req.Context(), url); err != nil {
		if errors.Is(err, blobstore.ErrForeignURL) {
			return ""
		}
		slog.Error("delete featured image failed", "url", url, "err", err)
		return blog.MsgImageDeleteFailed
	}
	return ""
}

// discardImage 尽力删除，只记日志
func (p *pages) discardImage(ctx *gee.Context, url string) {
	if url == "" || p.deps.Blobs == nil {
		return
	}
	if err := p.deps.Blobs.Delete(ctx.Req.Context(), url); err != nil && !errors.Is(err, blobstore.ErrForeignURL) {
		slog.Warn("discard featured image failed", "url", url, "err", err)
	}
}
