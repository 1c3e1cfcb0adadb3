package gee

import (
	"net/http"
	"sort"
	"strings"
)

type HandlerFunc func(*Context)

// roots 按方法分树，handlers 的 key 是 "GET-/posts/:slugId"
type router struct {
	roots    map[string]*node
	handlers map[string][]HandlerFunc
}

func newRouter() *router {
	return &router{
		handlers: make(map[string][]HandlerFunc),
		roots:    make(map[string]*node),
	}
}

// parsePattern 切分路径，遇到 * 之后的部分全部归入通配
func parsePattern(pattern string) []string {
	parts := make([]string, 0, 4)
	for _, item := range strings.Split(pattern, "/") {
		if item == "" {
			continue
		}
		parts = append(parts, item)
		if item[0] == '*' {
			break
		}
	}
	return parts
}

func routeKey(method, pattern string) string {
	return method + "-" + pattern
}

func (r *router) addRoute(method string, pattern string, handlers ...HandlerFunc) {
	if len(handlers) == 0 {
		panic("gee: addRoute requires at least one handler")
	}
	root, ok := r.roots[method]
	if !ok {
		root = &node{}
		r.roots[method] = root
	}
	root.insert(pattern, parsePattern(pattern), 0)
	r.handlers[routeKey(method, pattern)] = append([]HandlerFunc(nil), handlers...)
}

func (r *router) getRoute(method string, path string) (*node, map[string]string) {
	root, ok := r.roots[method]
	if !ok {
		return nil, nil
	}
	searchParts := parsePattern(path)
	n := root.search(searchParts, 0)
	if n == nil {
		return nil, nil
	}

	params := make(map[string]string)
	for index, part := range n.parts {
		switch part[0] {
		case ':':
			params[part[1:]] = searchParts[index]
		case '*':
			if len(part) > 1 {
				params[part[1:]] = strings.Join(searchParts[index:], "/")
			}
		}
		if part[0] == '*' {
			break
		}
	}
	return n, params
}

// lookup 找不到 HEAD 路由时退回 GET，net/http 会丢弃 HEAD 的响应体
func (r *router) lookup(method, path string) (string, *node, map[string]string) {
	n, params := r.getRoute(method, path)
	if n == nil && method == http.MethodHead {
		method = http.MethodGet
		n, params = r.getRoute(method, path)
	}
	return method, n, params
}

func (r *router) handle(c *Context) {
	method, n, params := r.lookup(c.Method, c.Path)
	if n != nil {
		c.Params = params
		c.RoutePattern = n.pattern
		c.handlers = append(c.handlers, r.handlers[routeKey(method, n.pattern)]...)
	} else {
		allow := r.AllowedMethod(c.Path)
		if len(allow) == 0 {
			c.handlers = append(c.handlers, c.engine.noRoute...)
		} else {
			c.SetHeader("Allow", strings.Join(allow, ","))
			c.handlers = append(c.handlers, c.engine.noMethod...)
		}
	}
	c.Next()
}

func (r *router) AllowedMethod(path string) (allow []string) {
	for method := range r.roots {
		if n, _ := r.getRoute(method, path); n != nil {
			allow = append(allow, method)
		}
	}
	sort.Strings(allow)
	return allow
}
