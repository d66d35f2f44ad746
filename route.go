package mockfs

import (
	"time"

	"github.com/cespare/xxhash/v2"
)

// RouteKind tags the handler variant of a `Route`.
type RouteKind uint8

// route kinds
const (
	KindStatic RouteKind = iota
	KindJGD
	KindREST
	KindSQL
	KindAuthLogin
	KindAuthLogout
	KindUpload
	KindUploadList
	KindUploadDownload
	KindGraphQL
	KindGraphiQL
	KindInternal
)

// routeKindNames are the names of the route kinds.
var routeKindNames = []string{
	"static",
	"jgd",
	"rest",
	"sql",
	"auth-login",
	"auth-logout",
	"upload",
	"upload-list",
	"upload-download",
	"graphql",
	"graphiql",
	"internal",
}

// String implements the `fmt.Stringer`.
func (rk RouteKind) String() string {
	if int(rk) < len(routeKindNames) {
		return routeKindNames[rk]
	}

	return "unknown"
}

// Route is a single built route record. Route records are produced by a build
// pass, published inside an immutable table and never mutated afterwards.
type Route struct {
	// Method is the HTTP method.
	Method string

	// Path is the path pattern. Segments are literal or named params such
	// as "{id}"; a trailing "*" matches any remainder.
	Path string

	// Kind tags the handler variant.
	Kind RouteKind

	// Protected marks the route for wrapping by the auth gas.
	Protected bool

	// Delay is the effective artificial response delay.
	Delay time.Duration

	// Source is the mock file backing the route, when one exists.
	Source string

	// Collection is the name of the collection the route operates on,
	// when the kind demands one.
	Collection string

	// Handler serves the requests matching the route, before the gas
	// chain of the table wraps it.
	Handler Handler

	// specificity ranks the route for collision resolution between files
	// that map to the same (method, path) key.
	specificity SegmentKind
}

// ID returns the stable identity of the r so that rebuilds can diff tables.
func (r *Route) ID() uint64 {
	h := xxhash.New()
	h.WriteString(r.Method)
	h.WriteString(" ")
	h.WriteString(r.Path)
	h.WriteString(" ")
	h.WriteString(r.Kind.String())
	h.WriteString(" ")
	h.WriteString(r.Source)

	return h.Sum64()
}
