package gee

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
)

type H map[string]any

// abortIndex must be large enough to exceed any real handler index, but not so
// large that nested Next() loops can overflow when multiple stack frames
// increment c.index after Abort().
const abortIndex = math.MaxInt32

type Context struct {
	Writer *ResponseWriter
	Req    *http.Request
	//请求消息
	Path         string
	Method       string
	Params       map[string]string
	RoutePattern string
	//中间件
	handlers []HandlerFunc
	index    int
	//engine
	engine *Engine
}

func (c *Context) Param(key string) string {
	return c.Params[key]
}

func newContext(w http.ResponseWriter, req *http.Request) *Context {
	return &Context{
		Writer: NewResponseWriter(w),
		Req:    req,
		Path:   req.URL.Path,
		Method: req.Method,
		index:  -1,
	}
}

func (c *Context) Next() {
	c.index++
	s := len(c.handlers)
	for ; c.index < s && !c.IsAborted(); c.index++ {
		c.handlers[c.index](c)
	}
}

// PostForm 取表单字段（urlencoded 或 multipart），不存在时为空串
func (c *Context) PostForm(key string) string {
	return c.Req.FormValue(key)
}

// Query 取 URL 查询参数的第一个值
func (c *Context) Query(key string) string {
	return c.Req.URL.Query().Get(key)
}

func (c *Context) Status(code int) {
	c.Writer.WriteHeader(code)
}

func (c *Context) SetHeader(key string, value string) {
	c.Writer.SetHeader(key, value)
}

func (c *Context) String(code int, format string, values ...any) {
	c.SetHeader("Content-Type", "text/plain; charset=utf-8")
	c.Status(code)
	fmt.Fprintf(c.Writer, format, values...)
}

// JSON 直接编码到响应流；状态码已经写出，编码失败只能记日志
func (c *Context) JSON(code int, obj any) {
	c.SetHeader("Content-Type", "application/json")
	c.Status(code)
	if err := json.NewEncoder(c.Writer).Encode(obj); err != nil {
		slog.Error("json encode failed", "path", c.Path, "err", err)
	}
}

func (c *Context) Data(code int, data []byte) {
	c.Status(code)
	c.Writer.Write(data)
}

// HTML 先渲染到 buffer，模板出错时还能返回 500 而不是半截页面
func (c *Context) HTML(code int, name string, data any) {
	if c.engine == nil || c.engine.htmlTemplates == nil {
		c.Fail(http.StatusInternalServerError, "html templates not loaded")
		return
	}
	var buf bytes.Buffer
	if err := c.engine.htmlTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		c.Fail(http.StatusInternalServerError, err.Error())
		return
	}
	c.SetHeader("Content-Type", "text/html; charset=utf-8")
	c.Status(code)
	c.Writer.Write(buf.Bytes())
}

// Redirect 写 Location 并结束请求。POST 之后用 303，永久迁移用 301。
func (c *Context) Redirect(code int, location string) {
	c.SetHeader("Location", location)
	c.AbortWithStatus(code)
}

func (c *Context) Cookie(name string) (string, error) {
	ck, err := c.Req.Cookie(name)
	if err != nil {
		return "", err
	}
	return ck.Value, nil
}

func (c *Context) SetCookie(ck *http.Cookie) {
	http.SetCookie(c.Writer, ck)
}

// FormFile 返回 multipart 表单里的第一个文件，没有上传时返回 http.ErrMissingFile
func (c *Context) FormFile(name string) (multipart.File, *multipart.FileHeader, error) {
	return c.Req.FormFile(name)
}

func (c *Context) Fail(code int, format string) {
	c.String(code, "%s", format)
	c.Abort()
}

func (c *Context) Abort() {
	c.index = abortIndex
}
func (c *Context) IsAborted() bool {
	return c.index >= abortIndex
}

func (c *Context) AbortWithStatus(code int) {
	c.Status(code)
	c.Abort()
}

func (c *Context) AbortWithStatusJSON(code int, obj any) {
	c.Abort()

	if c.Writer.Written() {
		return
	}

	bytes, err := json.Marshal(obj)
	if err != nil {
		code = http.StatusInternalServerError
		bytes = []byte(`{"code":500,"message":"Internal Server Error"}`)

	}
	c.SetHeader("Content-Type", "application/json")
	c.Status(code)
	c.Writer.Write(bytes)
}

func (c *Context) AbortWithError(code int, message string) {
	errorRep := NewErrorResponse(c, code, message)
	c.AbortWithStatusJSON(code, errorRep)
}
