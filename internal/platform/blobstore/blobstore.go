package blobstore

import (
	"context"
	"errors"
	"io"
	"net/url"
	"path"
	"strings"
)

// ErrForeignURL 表示要删除的 URL 不属于当前存储（例如外链图片），调用方可以忽略。
var ErrForeignURL = errors.New("blob url does not belong to this store")

// Store 是封面图的对象存储。Put 返回可公开访问的 URL，Delete 接收同一个 URL。
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

// KeyFromURL 从公开 URL 里取出对象 key。
func KeyFromURL(publicBaseURL, raw string) (string, error) {
	base := strings.TrimRight(publicBaseURL, "/") + "/"
	if !strings.HasPrefix(raw, base) {
		return "", ErrForeignURL
	}
	key := strings.TrimPrefix(raw, base)
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	key, err := url.PathUnescape(key)
	if err != nil || key == "" {
		return "", ErrForeignURL
	}
	return key, nil
}

// FilenameFromURL 取 URL 最后一段作为展示用文件名，解析失败返回空串。
func FilenameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return ""
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return ""
	}
	return name
}

func publicURL(publicBaseURL, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(publicBaseURL, "/") + "/" + strings.Join(segments, "/")
}
