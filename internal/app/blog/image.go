package blog

import (
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

var (
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrImageTooLarge    = errors.New("image too large")
)

const msgImageUnsupported = "Only JPEG and PNG images are supported."

const (
	MsgImageDeleteFailed = "Failed to delete the existing image."
	MsgUploadsDisabled   = "Image uploads are disabled."
)

var imageExts = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// DetectImageType 根据文件头嗅探类型，只接受 jpeg/png。不信任客户端给的 Content-Type。
func DetectImageType(head []byte) (string, error) {
	ct := http.DetectContentType(head)
	if _, ok := imageExts[ct]; !ok {
		return "", ErrUnsupportedImage
	}
	return ct, nil
}

// ImageErrorMessage 把上传错误翻译成表单提示。
func ImageErrorMessage(err error, limit int64) string {
	switch {
	case errors.Is(err, ErrImageTooLarge):
		return "The image must be at most " + humanize.IBytes(uint64(limit)) + "."
	case errors.Is(err, ErrUnsupportedImage):
		return msgImageUnsupported
	default:
		return "Failed to upload image."
	}
}

// ImageObjectKey 生成 posts/{shortID}/{base62(ns)}-{name}{ext}。
// 新建文章时还没有 short id，用 "new"。
func ImageObjectKey(shortID, filename, contentType string, now time.Time) string {
	if shortID == "" {
		shortID = "new"
	}
	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	name := GenerateSlug(base)
	if name == "" {
		name = "image"
	}
	return "posts/" + shortID + "/" + EncodeBase62(uint64(now.UnixNano())) + "-" + name + imageExts[contentType]
}
