package middleware

import (
	"github.com/google/uuid"

	"blog.local/gee"
)

const requestIDHeader = "X-Request-ID"

// 客户端带来的 request id 超长或含不可见字符时丢弃，避免污染日志
const maxRequestIDLen = 64

// ReqID 保证每个请求都有 X-Request-ID，并回写到响应头
func ReqID() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		id := ctx.Req.Header.Get(requestIDHeader)
		if !validRequestID(id) {
			id = GenerateReqID()
			ctx.Req.Header.Set(requestIDHeader, id)
		}
		ctx.SetHeader(requestIDHeader, id)

		ctx.Next()
	}
}

func GenerateReqID() string {
	return uuid.NewString()
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
