package gee

import "strings"

type node struct {
	pattern  string   // 完整路由，只在叶子节点上有值，如 /posts/:slugId
	parts    []string // pattern 切分后的结果，取参数时不用再切一次
	part     string   // 当前层的片段，如 :slugId
	children []*node
	isWild   bool // part 以 : 或 * 开头
}

/*
匹配 /posts/hello-world-abc12345/edit 时：
第一层 posts 精确匹配，
第二层 hello-world-abc12345 没有同名静态节点，落到 :slugId，
第三层 edit 精确匹配。
/posts/create 这种静态路由总是先于 :slugId 尝试。
*/
func (n *node) matchChild(part string) *node {
	for _, child := range n.children {
		if child.part == part {
			return child
		}
	}
	return nil
}

// matchChildren 先静态后通配，保证静态路由优先
func (n *node) matchChildren(part string) []*node {
	nodes := make([]*node, 0, len(n.children))
	for _, child := range n.children {
		if !child.isWild && child.part == part {
			nodes = append(nodes, child)
		}
	}
	for _, child := range n.children {
		if child.isWild {
			nodes = append(nodes, child)
		}
	}
	return nodes
}

// wildChild 同一层最多一个通配节点，名字不同的 :a 和 :b 会互相遮挡
func (n *node) wildChild() *node {
	for _, child := range n.children {
		if child.isWild {
			return child
		}
	}
	return nil
}

func (n *node) insert(pattern string, parts []string, height int) {
	if len(parts) == height {
		if n.pattern != "" && n.pattern != pattern {
			panic("gee: route " + pattern + " conflicts with " + n.pattern)
		}
		n.pattern = pattern
		n.parts = parts
		return
	}
	part := parts[height]
	child := n.matchChild(part)
	if child == nil {
		wild := part[0] == ':' || part[0] == '*'
		if wild {
			if other := n.wildChild(); other != nil {
				panic("gee: wildcard " + part + " in " + pattern + " conflicts with " + other.part)
			}
		}
		child = &node{part: part, isWild: wild}
		n.children = append(n.children, child)
	}
	child.insert(pattern, parts, height+1)
}

func (n *node) search(parts []string, height int) *node {
	if len(parts) == height || strings.HasPrefix(n.part, "*") {
		if n.pattern == "" {
			return nil
		}
		return n
	}

	for _, child := range n.matchChildren(parts[height]) {
		if result := child.search(parts, height+1); result != nil {
			return result
		}
	}
	return nil
}
