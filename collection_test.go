package mockfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionLoadInitial(t *testing.T) {
	c := newCollection("users", "id", IDInt)

	err := c.LoadInitial([]Record{
		{"id": float64(1), "name": "a"},
		{"id": float64(7), "name": "b"},
	})
	require.NoError(t, err)
	assert.Len(t, c.List(), 2)

	// The Int policy starts past the loaded maximum
	r, err := c.Insert(Record{"name": "c"})
	require.NoError(t, err)
	assert.Equal(t, float64(8), r["id"])

	r, err = c.Insert(Record{"name": "d"})
	require.NoError(t, err)
	assert.Equal(t, float64(9), r["id"])
}

func TestCollectionLoadInitialRejectsDuplicates(t *testing.T) {
	c := newCollection("users", "id", IDUuid)

	err := c.LoadInitial([]Record{
		{"id": "A"},
		{"id": "A"},
	})
	require.Error(t, err)

	err = c.LoadInitial([]Record{{"name": "no id"}})
	require.Error(t, err)
}

func TestCollectionCRUD(t *testing.T) {
	c := newCollection("companies", "id", IDUuid)
	require.NoError(t, c.LoadInitial([]Record{{"id": "A", "name": "x"}}))

	r, err := c.Insert(Record{"name": "y"})
	require.NoError(t, err)
	assert.NotEmpty(t, r["id"])
	assert.NotEqual(t, "A", r["id"])
	assert.Len(t, c.List(), 2)

	got, ok := c.Get("A")
	require.True(t, ok)
	assert.Equal(t, "x", got["name"])

	// PUT: full replace, id preserved
	rep, ok := c.Replace("A", Record{"name": "z", "extra": true})
	require.True(t, ok)
	assert.Equal(t, "A", rep["id"])
	assert.Equal(t, "z", rep["name"])

	// PATCH: shallow merge, untouched keys survive
	mer, ok := c.Merge("A", Record{"name": "w"})
	require.True(t, ok)
	assert.Equal(t, "w", mer["name"])
	assert.Equal(t, true, mer["extra"])

	require.True(t, c.Delete("A"))
	_, ok = c.Get("A")
	assert.False(t, ok)
	assert.False(t, c.Delete("A"))
}

func TestCollectionNonePolicy(t *testing.T) {
	c := newCollection("users", "username", IDNone)
	require.NoError(t, c.LoadInitial([]Record{
		{"username": "admin", "password": "pw"},
	}))

	// No id generation under None
	_, err := c.Insert(Record{"password": "x"})
	require.Error(t, err)

	// Duplicate ids conflict
	_, err = c.Insert(Record{"username": "admin"})
	assert.Equal(t, ErrIDConflict, err)

	r, err := c.Insert(Record{"username": "bob"})
	require.NoError(t, err)
	assert.Equal(t, "bob", r["username"])
}

func TestCollectionSchema(t *testing.T) {
	c := newCollection("things", "id", IDUuid)
	require.NoError(t, c.LoadInitial([]Record{
		{"id": "1", "count": float64(3), "tag": nil},
	}))

	schema := c.Schema()
	assert.Equal(t, "string", schema["id"].Type)
	assert.Equal(t, "number", schema["count"].Type)
	assert.True(t, schema["tag"].Nullable)
}

func TestCollectionStoreEnsure(t *testing.T) {
	cs := newCollectionStore()

	c1, created := cs.Ensure("users", "id", IDInt)
	assert.True(t, created)

	c2, created := cs.Ensure("users", "other", IDUuid)
	assert.False(t, created)
	assert.Same(t, c1, c2)
	assert.Equal(t, "id", c2.IDKey())

	assert.Equal(t, []string{"users"}, cs.Names())

	cs.Clear()
	assert.Empty(t, cs.Names())
}

func TestIDString(t *testing.T) {
	assert.Equal(t, "5", idString(float64(5)))
	assert.Equal(t, "5.5", idString(5.5))
	assert.Equal(t, "abc", idString("abc"))
	assert.Equal(t, "", idString(nil))
}
