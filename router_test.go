package mockfs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func routeTestRequest(s *Server, method, target string) *Request {
	req := &Request{}
	req.reset(s, httptest.NewRequest(method, target, nil))
	return req
}

func namedRoute(name string) *boundRoute {
	return &boundRoute{
		route: &Route{Path: name},
		handler: func(req *Request, res *Response) error {
			return nil
		},
	}
}

func TestRouterStaticOverParam(t *testing.T) {
	s := New()
	r := newRouter()

	r.register(http.MethodGet, "/users/admin", namedRoute("literal"))
	r.register(http.MethodGet, "/users/{id}", namedRoute("param"))

	req := routeTestRequest(s, http.MethodGet, "/users/admin")
	br, ok := r.route(req)
	require.True(t, ok)
	require.NotNil(t, br)
	assert.Equal(t, "literal", br.route.Path)
	assert.Empty(t, req.Params)

	req = routeTestRequest(s, http.MethodGet, "/users/42")
	br, ok = r.route(req)
	require.True(t, ok)
	require.NotNil(t, br)
	assert.Equal(t, "param", br.route.Path)
	assert.Equal(t, "42", req.Param("id"))
}

func TestRouterAnyComponent(t *testing.T) {
	s := New()
	r := newRouter()

	r.register(http.MethodGet, "/public/*", namedRoute("any"))

	req := routeTestRequest(s, http.MethodGet, "/public/css/site.css")
	br, ok := r.route(req)
	require.True(t, ok)
	require.NotNil(t, br)
	assert.Equal(t, "any", br.route.Path)
	assert.Equal(t, "css/site.css", req.Param("*"))
}

func TestRouterMethodNotAllowed(t *testing.T) {
	s := New()
	r := newRouter()

	r.register(http.MethodGet, "/thing", namedRoute("get"))

	br, matched := r.route(routeTestRequest(s, http.MethodPost, "/thing"))
	assert.Nil(t, br)
	assert.True(t, matched)

	br, matched = r.route(routeTestRequest(s, http.MethodGet, "/other"))
	assert.Nil(t, br)
	assert.False(t, matched)
}

func TestRouterNestedParams(t *testing.T) {
	s := New()
	r := newRouter()

	r.register(
		http.MethodGet,
		"/api/{version}/items/{id}",
		namedRoute("nested"),
	)

	req := routeTestRequest(s, http.MethodGet, "/api/v2/items/9")
	br, ok := r.route(req)
	require.True(t, ok)
	require.NotNil(t, br)
	assert.Equal(t, "v2", req.Param("version"))
	assert.Equal(t, "9", req.Param("id"))
	assert.Equal(t, []string{"version", "id"}, req.ParamNames)
}

func TestPathClean(t *testing.T) {
	assert.Equal(t, "/", pathClean(""))
	assert.Equal(t, "/", pathClean("/"))
	assert.Equal(t, "/a/b", pathClean("/a//b/"))
	assert.Equal(t, "/a", pathClean("a"))
}
