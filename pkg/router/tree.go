package router

import "strings"

// RouteNode is a node in the segment trie.
type RouteNode[H any] struct {
	// segment is the literal text this node matches; empty for parameter nodes
	segment string

	// isParam indicates this is a parameter segment ({id})
	isParam bool

	// paramName is the parameter name (without braces) of the first pattern
	// that created this slot
	paramName string

	// handler is valid only when hasHandler is set
	handler    H
	hasHandler bool

	// pattern is the full pattern that registered handler
	pattern string

	// paramNames are the parameter names of pattern, in path order
	paramNames []string

	// children are literal segment children, keyed by exact text
	children map[string]*RouteNode[H]

	// paramChild is the single parameter child
	paramChild *RouteNode[H]
}

// newRouteNode creates a new route node.
func newRouteNode[H any](segment string) *RouteNode[H] {
	return &RouteNode[H]{
		segment: segment,
	}
}

// Segment returns the literal text, or "{name}" for a parameter node.
func (n *RouteNode[H]) Segment() string {
	if n.isParam {
		return "{" + n.paramName + "}"
	}
	return n.segment
}

// findChild finds a child node with an exact segment match.
func (n *RouteNode[H]) findChild(segment string) *RouteNode[H] {
	return n.children[segment]
}

// addChild adds or retrieves a literal child node for the given segment.
func (n *RouteNode[H]) addChild(segment string) *RouteNode[H] {
	if child := n.findChild(segment); child != nil {
		return child
	}
	if n.children == nil {
		n.children = make(map[string]*RouteNode[H])
	}
	child := newRouteNode[H](segment)
	n.children[segment] = child
	return child
}

// addParamChild returns the parameter child, creating it on first use.
// A node has one parameter slot, shared by every pattern whatever name it
// gives the segment.
func (n *RouteNode[H]) addParamChild(name string) *RouteNode[H] {
	if n.paramChild != nil {
		return n.paramChild
	}
	child := newRouteNode[H]("")
	child.isParam = true
	child.paramName = name
	n.paramChild = child
	return child
}

// insertRoute walks the pattern from n, creating nodes as needed, and
// returns the terminal node with the pattern's parameter names in order.
func (n *RouteNode[H]) insertRoute(pattern string) (*RouteNode[H], []string, error) {
	current := n
	var names []string
	for _, seg := range splitPath(pattern) {
		name, isParam, err := parseSegment(seg)
		if err != nil {
			return nil, nil, err
		}
		if isParam {
			current = current.addParamChild(name)
			names = append(names, name)
			continue
		}
		current = current.addChild(seg)
	}
	return current, names, nil
}

// match walks the path segments from n and returns the terminal node and the
// segments captured by parameter slots, in path order. At each level a
// literal child wins over the parameter child; there is no backtracking once
// a branch is taken.
func (n *RouteNode[H]) match(segments []string) (*RouteNode[H], []string, bool) {
	current := n
	var values []string
	for _, seg := range segments {
		if child := current.findChild(seg); child != nil {
			current = child
			continue
		}
		if current.paramChild != nil {
			current = current.paramChild
			values = append(values, seg)
			continue
		}
		return nil, nil, false
	}
	if !current.hasHandler {
		return nil, nil, false
	}
	return current, values, true
}

// walk visits every node with a handler.
func (n *RouteNode[H]) walk(fn func(*RouteNode[H])) {
	if n.hasHandler {
		fn(n)
	}
	for _, child := range n.children {
		child.walk(fn)
	}
	if n.paramChild != nil {
		n.paramChild.walk(fn)
	}
}

// splitPath splits a path into segments, dropping the leading empty segment
// produced by the initial slash. "/" yields no segments and lands on the root.
func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// parseSegment classifies a pattern segment.
// Input: "{id}" -> name="id", isParam=true; "users" -> isParam=false
func parseSegment(seg string) (name string, isParam bool, err error) {
	open := strings.HasPrefix(seg, "{")
	closed := strings.HasSuffix(seg, "}")
	switch {
	case open && closed && len(seg) > 2:
		name = seg[1 : len(seg)-1]
		if strings.ContainsAny(name, "{}") {
			return "", false, &PatternError{Segment: seg, Err: ErrInvalidPattern}
		}
		return name, true, nil
	case open || closed:
		return "", false, &PatternError{Segment: seg, Err: ErrInvalidPattern}
	}
	return "", false, nil
}
