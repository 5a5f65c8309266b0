// Package router implements the path-segment trie used to dispatch requests.
//
// Patterns are "/"-delimited. A segment written {name} is a parameter: it
// matches any single segment and captures it under name. Every other segment
// matches literally.
//
//	t := router.New[Handler]()
//	t.Register("/", index)
//	t.Register("/object/{id}/edit", edit)
//	t.Freeze()
//
//	m, err := t.Find("/object/42/edit")
//	// m.Handler == edit, m.Params["id"] == "42", m.Pattern == "/object/{id}/edit"
//
// # Matching Rules
//
//   - At each node an exact literal child is preferred over the parameter child.
//     With "/a/b" and "/a/{x}" both registered, "/a/b" always hits "/a/b".
//   - There is no backtracking: once a literal branch is taken, a miss deeper
//     down is a miss, even if the parameter branch would have matched.
//   - A node has at most one parameter child. Patterns that name it
//     differently share it, and each pattern captures under its own names:
//     with "/a/{id}" and "/a/{name}/b", "/a/7" yields id=7 and "/a/7/b"
//     yields name=7.
//   - The root node serves "/". A trailing slash is a separate, empty segment,
//     so "/a/" and "/a" are different routes.
//   - Re-registering a pattern replaces its handler.
//
// # Concurrency
//
// Registration is single-goroutine. After Freeze the table never changes and
// Find is safe for concurrent use.
package router
