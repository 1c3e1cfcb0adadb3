package gee

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// MaxJSONBody 是 ShouldBindJSON 接受的最大请求体
const MaxJSONBody = 1 << 20

// ShouldBindJSON 只解析一个 JSON 值，拒绝未知字段和超长 body
func (c *Context) ShouldBindJSON(dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(c.Writer, c.Req.Body, MaxJSONBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return errors.New("body must contain only one JSON value")
	}
	return nil
}

// BindJSON 解析失败时直接写 400（超长为 413）并中止
func (c *Context) BindJSON(dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithError(http.StatusRequestEntityTooLarge, "Request body too large")
			return err
		}
		c.AbortWithError(http.StatusBadRequest, "Invalid json")
		return err
	}
	return nil
}
