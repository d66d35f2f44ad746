package mockfs

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func routeByKey(s *Server, method, path string) *Route {
	for _, r := range s.table().Routes() {
		if r.Method == method && r.Path == path {
			return r
		}
	}

	return nil
}

func TestBuildMissingRoot(t *testing.T) {
	s := New()
	s.LoggerEnabled = false
	s.MockRoot = "/definitely/not/here"

	err := s.Build()
	require.Error(t, err)

	be, ok := err.(*BuildError)
	require.True(t, ok)
	assert.Equal(t, MissingMockRoot, be.Kind)
}

func TestBuildEmitsExpectedRoutes(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"api/users/get.json":     `{}`,
		"api/users/post.json":    `{}`,
		"api/users/get{id}.json": `{}`,
		"api/ping.txt":           "pong",
	})

	assert.NotNil(t, routeByKey(s, http.MethodGet, "/api/users"))
	assert.NotNil(t, routeByKey(s, http.MethodPost, "/api/users"))
	assert.NotNil(t, routeByKey(s, http.MethodGet, "/api/users/{id}"))
	assert.NotNil(t, routeByKey(s, http.MethodGet, "/api/ping"))
	assert.NotNil(t, routeByKey(s, http.MethodHead, "/api/ping"))
}

func TestBuildRESTGroupRoutes(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"api/books/rest.json": `[]`,
	})

	for _, want := range []struct{ method, path string }{
		{http.MethodGet, "/api/books"},
		{http.MethodPost, "/api/books"},
		{http.MethodGet, "/api/books/{id}"},
		{http.MethodPut, "/api/books/{id}"},
		{http.MethodPatch, "/api/books/{id}"},
		{http.MethodDelete, "/api/books/{id}"},
	} {
		r := routeByKey(s, want.method, want.path)
		require.NotNil(t, r, "%s %s", want.method, want.path)
		assert.Equal(t, KindREST, r.Kind)
		assert.Equal(t, "books", r.Collection)
	}
}

func TestBuildProtectionPropagation(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"$admin/get.json":        `{}`,
		"$admin/deeper/get.json": `{}`,
		"open/get.json":          `{}`,
	})

	r := routeByKey(s, http.MethodGet, "/admin")
	require.NotNil(t, r)
	assert.True(t, r.Protected)

	r = routeByKey(s, http.MethodGet, "/admin/deeper")
	require.NotNil(t, r)
	assert.True(t, r.Protected)

	r = routeByKey(s, http.MethodGet, "/open")
	require.NotNil(t, r)
	assert.False(t, r.Protected)
}

func TestBuildDuplicateRoute(t *testing.T) {
	s := New()
	s.LoggerEnabled = false
	s.MockRoot = t.TempDir()

	// Two static files whose stripped segments collide map to one key
	// with equal specificity
	root := s.MockRoot
	writeTestFile(t, root, "status.txt", "a")
	writeTestFile(t, root, "status.json", "{}")

	err := s.Build()
	require.Error(t, err)

	be, ok := err.(*BuildError)
	require.True(t, ok)
	assert.Equal(t, DuplicateRoute, be.Kind)
}

func TestBuildRemap(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"api/deep/get.json": `{"moved":true}`,
		"api/deep/get.toml": "remap = \"/shortcut\"\n",
	})

	assert.Nil(t, routeByKey(s, http.MethodGet, "/api/deep"))

	rec := do(s, http.MethodGet, "/shortcut", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"moved":true}`, rec.Body.String())
}

func TestBuildPublicAlias(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"public-assets/style.css": "body{}",
	})

	rec := do(s, http.MethodGet, "/assets/style.css", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{}", rec.Body.String())

	rec = do(s, http.MethodGet, "/assets/nope.css", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuildUploadRoutes(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"api/{upload}-files/": "",
	})

	assert.NotNil(t, routeByKey(s, http.MethodPost, "/api/files"))
	assert.NotNil(t, routeByKey(s, http.MethodGet, "/api/files"))
	assert.NotNil(t, routeByKey(s, http.MethodGet, "/api/files/{file}"))
}

func TestBuildSkipsTOMLFiles(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"api/config.toml": "delay_ms = 1\n",
		"api/get.json":    `{}`,
	})

	assert.Nil(t, routeByKey(s, http.MethodGet, "/api/config"))
}

func TestRouteID(t *testing.T) {
	a := &Route{Method: "GET", Path: "/x", Kind: KindStatic, Source: "f"}
	b := &Route{Method: "GET", Path: "/x", Kind: KindStatic, Source: "f"}
	c := &Route{Method: "GET", Path: "/x", Kind: KindStatic, Source: "g"}

	assert.Equal(t, a.ID(), b.ID())
	assert.NotEqual(t, a.ID(), c.ID())
}
