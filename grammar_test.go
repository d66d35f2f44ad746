package mockfs

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBasenameMethods(t *testing.T) {
	tok, err := parseBasename("get.json")
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, tok.Method)
	assert.Nil(t, tok.Segment)
	assert.Equal(t, ".json", tok.Ext)
	assert.False(t, tok.Static)

	tok, err = parseBasename("delete{id}.json")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, tok.Method)
	require.NotNil(t, tok.Segment)
	assert.Equal(t, SegmentParam, tok.Segment.Kind)
	assert.Equal(t, "id", tok.Segment.Name)

	tok, err = parseBasename("get{1-3}.json")
	require.NoError(t, err)
	require.NotNil(t, tok.Segment)
	assert.Equal(t, SegmentRange, tok.Segment.Kind)
	assert.Equal(t, 1, tok.Segment.Lo)
	assert.Equal(t, 3, tok.Segment.Hi)

	tok, err = parseBasename("get{42}.json")
	require.NoError(t, err)
	require.NotNil(t, tok.Segment)
	assert.Equal(t, SegmentLiteral, tok.Segment.Kind)
	assert.Equal(t, "42", tok.Segment.Name)

	tok, err = parseBasename("post{id}.sql")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, tok.Method)
	assert.Equal(t, ".sql", tok.Ext)
}

func TestParseBasenameBadRange(t *testing.T) {
	_, err := parseBasename("get{3-1}.json")
	require.Error(t, err)

	be, ok := err.(*BuildError)
	require.True(t, ok)
	assert.Equal(t, BadRangeBounds, be.Kind)
}

func TestParseBasenameREST(t *testing.T) {
	tok, err := parseBasename("rest.json")
	require.NoError(t, err)
	require.NotNil(t, tok.REST)
	assert.Equal(t, "id", tok.REST.IDKey)
	assert.Equal(t, IDUuid, tok.REST.IDType)

	tok, err = parseBasename("rest{int}.json")
	require.NoError(t, err)
	assert.Equal(t, "id", tok.REST.IDKey)
	assert.Equal(t, IDInt, tok.REST.IDType)

	tok, err = parseBasename("rest{code:int}.jgd")
	require.NoError(t, err)
	assert.Equal(t, "code", tok.REST.IDKey)
	assert.Equal(t, IDInt, tok.REST.IDType)
	assert.Equal(t, ".jgd", tok.Ext)

	tok, err = parseBasename("rest{sku}.json")
	require.NoError(t, err)
	assert.Equal(t, "sku", tok.REST.IDKey)
	assert.Equal(t, IDUuid, tok.REST.IDType)

	_, err = parseBasename("rest{code:what}.json")
	require.Error(t, err)
}

func TestParseBasenameAuthAndUpload(t *testing.T) {
	tok, err := parseBasename("{auth}.json")
	require.NoError(t, err)
	assert.True(t, tok.Auth)
	assert.Equal(t, ".json", tok.Ext)

	tok, err = parseBasename("{upload}{temp}-docs")
	require.NoError(t, err)
	require.NotNil(t, tok.Upload)
	assert.True(t, tok.Upload.Temporary)
	assert.Equal(t, "docs", tok.Upload.Alias)

	tok, err = parseBasename("{upload}")
	require.NoError(t, err)
	require.NotNil(t, tok.Upload)
	assert.False(t, tok.Upload.Temporary)
	assert.Empty(t, tok.Upload.Alias)
}

func TestParseBasenameProtected(t *testing.T) {
	tok, err := parseBasename("$get.json")
	require.NoError(t, err)
	assert.True(t, tok.Protected)
	assert.Equal(t, http.MethodGet, tok.Method)
}

func TestParseBasenameStatic(t *testing.T) {
	tok, err := parseBasename("status.txt")
	require.NoError(t, err)
	assert.True(t, tok.Static)
	assert.Equal(t, "status", tok.StaticSegment)

	// Unknown extensions stay in the URL segment
	tok, err = parseBasename("archive.bin")
	require.NoError(t, err)
	assert.True(t, tok.Static)
	assert.Equal(t, "archive.bin", tok.StaticSegment)
}

func TestParseDirname(t *testing.T) {
	dt, err := parseDirname("$admin")
	require.NoError(t, err)
	assert.True(t, dt.Protected)
	assert.Equal(t, "admin", dt.Name)

	dt, err = parseDirname("public-assets")
	require.NoError(t, err)
	assert.True(t, dt.Public)
	assert.Equal(t, "assets", dt.PublicAlias)

	dt, err = parseDirname("{upload}-files")
	require.NoError(t, err)
	require.NotNil(t, dt.Upload)
	assert.Equal(t, "files", dt.Upload.Alias)

	dt, err = parseDirname("{upload}")
	require.NoError(t, err)
	require.NotNil(t, dt.Upload)
	assert.Equal(t, "upload", dt.Upload.Alias)

	dt, err = parseDirname("graphql")
	require.NoError(t, err)
	assert.True(t, dt.GraphQL)
}
