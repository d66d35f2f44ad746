package mockfs

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerJSONHeader(t *testing.T) {
	s := New()
	buf := &bytes.Buffer{}
	s.logger.Output = buf

	s.logger.INFO("hello", map[string]interface{}{"k": "v"})

	line := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "mockfs", line["app_name"])
	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "v", line["k"])
	assert.NotEmpty(t, line["time"])
}

func TestLoggerDisabled(t *testing.T) {
	s := New()
	s.LoggerEnabled = false
	buf := &bytes.Buffer{}
	s.logger.Output = buf

	s.logger.ERROR("quiet")
	assert.Zero(t, buf.Len())
}

func TestLoggerDebugGatedOnDebugMode(t *testing.T) {
	s := New()
	buf := &bytes.Buffer{}
	s.logger.Output = buf

	s.logger.DEBUG("hidden")
	assert.Zero(t, buf.Len())

	s.DebugMode = true
	s.logger.DEBUG("visible")
	assert.NotZero(t, buf.Len())
}

func TestLoggerTextHeader(t *testing.T) {
	s := New()
	s.LoggerFormat = "{{.level}}"
	buf := &bytes.Buffer{}
	s.logger.Output = buf

	s.logger.WARN("watch out", map[string]interface{}{"n": 1})
	assert.Contains(t, buf.String(), "WARN watch out")
	assert.Contains(t, buf.String(), "n=1")
}
