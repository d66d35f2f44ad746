package mockfs

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGraphQLTestServer(t *testing.T) *Server {
	return newTestServer(t, map[string]string{
		"graphql/collections/users{int}.json": `[
			{"id": 1, "name": "Ada"},
			{"id": 2, "name": "Alan"}
		]`,
		"graphql/collections/posts{int}.json": `[
			{"id": 10, "user_id": 1, "title": "first"},
			{"id": 11, "user_id": 1, "title": "second"},
			{"id": 12, "user_id": 2, "title": "third"}
		]`,
		"graphql/FixedAnswer.json": `{"data": {"fixed": true}}`,
	})
}

func gqlPost(t *testing.T, s *Server, body string) map[string]interface{} {
	t.Helper()

	rec := do(s, http.MethodPost, "/graphql", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

	return out
}

func TestGraphQLQueryCollection(t *testing.T) {
	s := newGraphQLTestServer(t)

	out := gqlPost(t, s, `{"query": "{ users { id name } }"}`)
	data := out["data"].(map[string]interface{})
	users := data["users"].([]interface{})
	require.Len(t, users, 2)

	first := users[0].(map[string]interface{})
	assert.Equal(t, float64(1), first["id"])
	assert.Equal(t, "Ada", first["name"])
}

func TestGraphQLQueryByIDAndFieldRestriction(t *testing.T) {
	s := newGraphQLTestServer(t)

	out := gqlPost(
		t,
		s,
		`{"query": "{ users(id: 2) { name } }"}`,
	)
	data := out["data"].(map[string]interface{})
	user := data["users"].(map[string]interface{})
	assert.Equal(t, "Alan", user["name"])

	// Only requested fields come back
	assert.NotContains(t, user, "id")
}

func TestGraphQLNestedRelation(t *testing.T) {
	s := newGraphQLTestServer(t)

	// Parent side: users -> posts via posts.user_id
	out := gqlPost(
		t,
		s,
		`{"query": "{ users(id: 1) { name posts { title } } }"}`,
	)
	data := out["data"].(map[string]interface{})
	user := data["users"].(map[string]interface{})
	posts := user["posts"].([]interface{})
	require.Len(t, posts, 2)

	// Child side: posts -> user via posts.user_id
	out = gqlPost(
		t,
		s,
		`{"query": "{ posts { title user { name } } }"}`,
	)
	data = out["data"].(map[string]interface{})
	all := data["posts"].([]interface{})
	require.Len(t, all, 3)

	p0 := all[0].(map[string]interface{})
	owner := p0["user"].(map[string]interface{})
	assert.Equal(t, "Ada", owner["name"])
}

func TestGraphQLFilterByField(t *testing.T) {
	s := newGraphQLTestServer(t)

	out := gqlPost(
		t,
		s,
		`{"query": "{ posts(user_id: 2) { title } }"}`,
	)
	data := out["data"].(map[string]interface{})
	posts := data["posts"].([]interface{})
	require.Len(t, posts, 1)
	assert.Equal(
		t,
		"third",
		posts[0].(map[string]interface{})["title"],
	)
}

func TestGraphQLMutations(t *testing.T) {
	s := newGraphQLTestServer(t)

	out := gqlPost(t, s, `{
		"query": "mutation { createUser(name: \"Grace\") { id name } }"
	}`)
	data := out["data"].(map[string]interface{})
	created := data["createUser"].(map[string]interface{})
	assert.Equal(t, "Grace", created["name"])
	assert.Equal(t, float64(3), created["id"])

	out = gqlPost(t, s, `{
		"query": "mutation { updateUser(id: 3, name: \"Hopper\") { name } }"
	}`)
	data = out["data"].(map[string]interface{})
	updated := data["updateUser"].(map[string]interface{})
	assert.Equal(t, "Hopper", updated["name"])

	out = gqlPost(t, s, `{
		"query": "mutation { deleteUser(id: 3) }"
	}`)
	data = out["data"].(map[string]interface{})
	assert.Equal(t, true, data["deleteUser"])

	c, _ := s.collections.Get("users")
	assert.Len(t, c.List(), 2)
}

func TestGraphQLOperationNameOverride(t *testing.T) {
	s := newGraphQLTestServer(t)

	rec := do(
		s,
		http.MethodPost,
		"/graphql",
		`{"query": "query FixedAnswer { whatever }", "operationName": "FixedAnswer"}`,
		nil,
	)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data": {"fixed": true}}`, rec.Body.String())
}

func TestGraphQLUnknownCollection(t *testing.T) {
	s := newGraphQLTestServer(t)

	out := gqlPost(t, s, `{"query": "{ widgets { id } }"}`)
	require.Contains(t, out, "errors")
}

func TestGraphiQLPage(t *testing.T) {
	s := newGraphQLTestServer(t)

	rec := do(s, http.MethodGet, "/graphiql", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}
