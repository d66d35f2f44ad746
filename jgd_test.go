package mockfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJGDEvaluateRepeat(t *testing.T) {
	v, err := builtinJGD{}.Evaluate([]byte(`{
		"$repeat": 3,
		"$of": {"id": "{{uuid}}", "n": "{{index}}"}
	}`))
	require.NoError(t, err)

	arr, ok := v.([]interface{})
	require.True(t, ok)
	require.Len(t, arr, 3)

	seen := map[string]bool{}
	for i, e := range arr {
		obj := e.(map[string]interface{})
		id := obj["id"].(string)
		assert.False(t, seen[id])
		seen[id] = true
		assert.Equal(t, float64(i), obj["n"])
	}
}

func TestJGDEvaluatePlaceholders(t *testing.T) {
	v, err := builtinJGD{}.Evaluate([]byte(`{
		"age": "{{int 18 65}}",
		"active": "{{bool}}",
		"plain": "no placeholders here",
		"greeting": "hi {{firstName}}!"
	}`))
	require.NoError(t, err)

	obj := v.(map[string]interface{})

	age, ok := obj["age"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, age, float64(18))
	assert.LessOrEqual(t, age, float64(65))

	_, ok = obj["active"].(bool)
	assert.True(t, ok)

	assert.Equal(t, "no placeholders here", obj["plain"])

	greeting := obj["greeting"].(string)
	assert.Contains(t, greeting, "hi ")
	assert.Contains(t, greeting, "!")
	assert.NotContains(t, greeting, "{{")
}

func TestJGDEvaluateInvalid(t *testing.T) {
	_, err := builtinJGD{}.Evaluate([]byte("not json"))
	assert.Error(t, err)
}

func TestJGDEvaluatePassthrough(t *testing.T) {
	v, err := builtinJGD{}.Evaluate([]byte(`[{"a": 1}, {"a": 2}]`))
	require.NoError(t, err)

	arr := v.([]interface{})
	require.Len(t, arr, 2)
	assert.Equal(t, float64(1), arr[0].(map[string]interface{})["a"])
}
