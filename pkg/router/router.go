package router

import (
	"sort"
	"strings"

	"go.uber.org/atomic"
)

// Match is the result of a successful lookup.
type Match[H any] struct {
	// Handler is the handler registered for Pattern.
	Handler H

	// Params holds captured parameter segments. Never nil.
	Params map[string]string

	// Pattern is the registration pattern that matched, e.g. "/object/{id}/edit".
	Pattern string
}

// Table is a segment trie mapping path patterns to handlers of type H.
//
// A Table has two phases. During registration, Register may be called from a
// single goroutine. After Freeze, the table is read-only and Find may be
// called from any number of goroutines without locking.
type Table[H any] struct {
	root   *RouteNode[H]
	frozen atomic.Bool
	count  int
}

// New creates an empty table.
func New[H any]() *Table[H] {
	return &Table[H]{
		root: newRouteNode[H](""),
	}
}

// Register binds handler to pattern. Segments written {name} capture the
// corresponding path segment under name; all others match literally.
// Registering the same pattern again replaces the previous handler.
func (t *Table[H]) Register(pattern string, handler H) error {
	if t.frozen.Load() {
		return &PatternError{Pattern: pattern, Err: ErrFrozen}
	}
	if !strings.HasPrefix(pattern, "/") {
		return &PatternError{Pattern: pattern, Err: ErrInvalidPattern}
	}

	node, names, err := t.root.insertRoute(pattern)
	if err != nil {
		if pe, ok := err.(*PatternError); ok {
			pe.Pattern = pattern
		}
		return err
	}
	if !node.hasHandler {
		t.count++
	}
	node.handler = handler
	node.hasHandler = true
	node.pattern = pattern
	node.paramNames = names
	return nil
}

// Find looks up the handler for path. The query string, if any, must already
// be stripped. Returns ErrNotFound when no registered pattern matches.
func (t *Table[H]) Find(path string) (*Match[H], error) {
	node, values, ok := t.root.match(splitPath(path))
	if !ok {
		return nil, ErrNotFound
	}
	params := make(map[string]string, len(values))
	for i, v := range values {
		params[node.paramNames[i]] = v
	}
	return &Match[H]{
		Handler: node.handler,
		Params:  params,
		Pattern: node.pattern,
	}, nil
}

// Freeze ends the registration phase. It is idempotent.
func (t *Table[H]) Freeze() {
	t.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (t *Table[H]) Frozen() bool {
	return t.frozen.Load()
}

// Len returns the number of registered patterns.
func (t *Table[H]) Len() int {
	return t.count
}

// Routes returns the registered patterns in lexical order.
func (t *Table[H]) Routes() []string {
	routes := make([]string, 0, t.count)
	t.root.walk(func(n *RouteNode[H]) {
		routes = append(routes, n.pattern)
	})
	sort.Strings(routes)
	return routes
}
