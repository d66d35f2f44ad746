package mockfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLEngineQuery(t *testing.T) {
	cs := newCollectionStore()
	c, _ := cs.Ensure("products", "id", IDInt)
	require.NoError(t, c.LoadInitial([]Record{
		{"id": float64(1), "name": "hammer", "price": 9.5},
		{"id": float64(2), "name": "saw", "price": 24.0},
		{"id": float64(3), "name": "drill", "price": 99.0},
	}))

	e := newSQLEngine(cs)
	defer e.Close()

	rows, err := e.Query(
		"SELECT name FROM products WHERE price > ? ORDER BY name",
		10,
	)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "drill", rows[0]["name"])
	assert.Equal(t, "saw", rows[1]["name"])
}

func TestSQLEngineSeesMutations(t *testing.T) {
	cs := newCollectionStore()
	c, _ := cs.Ensure("items", "id", IDInt)
	require.NoError(t, c.LoadInitial([]Record{
		{"id": float64(1), "tag": "a"},
	}))

	e := newSQLEngine(cs)
	defer e.Close()

	rows, err := e.Query("SELECT COUNT(*) AS n FROM items")
	require.NoError(t, err)
	assert.Equal(t, float64(1), rows[0]["n"])

	_, err = c.Insert(Record{"tag": "b"})
	require.NoError(t, err)

	// The mirror refreshes per query
	rows, err = e.Query("SELECT COUNT(*) AS n FROM items")
	require.NoError(t, err)
	assert.Equal(t, float64(2), rows[0]["n"])
}

func TestSQLEngineNestedValues(t *testing.T) {
	cs := newCollectionStore()
	c, _ := cs.Ensure("docs", "id", IDUuid)
	require.NoError(t, c.LoadInitial([]Record{
		{"id": "a", "meta": map[string]interface{}{"k": "v"}},
	}))

	e := newSQLEngine(cs)
	defer e.Close()

	rows, err := e.Query("SELECT meta FROM docs")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// Nested objects are mirrored as JSON text
	assert.JSONEq(t, `{"k":"v"}`, rows[0]["meta"].(string))
}

func TestSQLEngineBadQuery(t *testing.T) {
	cs := newCollectionStore()
	e := newSQLEngine(cs)
	defer e.Close()

	_, err := e.Query("SELECT FROM WHERE")
	assert.Error(t, err)
}
