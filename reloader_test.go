package mockfs

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReloaderRebuildsOnChange(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"api/x/get.json": `{"v":1}`,
	})
	require.NoError(t, s.reloader.start())
	defer s.reloader.close()

	rec := do(s, http.MethodGet, "/api/y", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	path := filepath.Join(s.MockRoot, "api", "y")
	require.NoError(t, os.MkdirAll(path, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(path, "get.json"),
		[]byte(`{"v":2}`),
		0o644,
	))

	// The debounce window closes and the new table goes live
	assert.Eventually(t, func() bool {
		rec := do(s, http.MethodGet, "/api/y", "", nil)
		return rec.Code == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)
}

func TestReloaderIgnoresUploadFolders(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"{upload}-files/": "",
		"api/get.json":    `{"ok":true}`,
	})
	require.NoError(t, s.reloader.start())
	defer s.reloader.close()

	old := s.table()

	// A file dropped into the upload folder must not trigger a reload
	require.NoError(t, os.WriteFile(
		filepath.Join(s.MockRoot, "{upload}-files", "a.txt"),
		[]byte("hello"),
		0o644,
	))

	time.Sleep(2 * reloadDebounce)
	assert.Same(t, old, s.table())
}

func TestReloaderDebounceCoalesces(t *testing.T) {
	s := newTestServer(t, map[string]string{
		"api/get.json": `{"ok":true}`,
	})

	// Every swap writes one log line; count them
	buf := &bytes.Buffer{}
	s.logger.Output = buf
	s.LoggerEnabled = true
	swaps := func() int {
		s.logger.mutex.Lock()
		defer s.logger.mutex.Unlock()
		return strings.Count(buf.String(), "routing table swapped")
	}

	require.NoError(t, s.reloader.start())
	defer s.reloader.close()

	// A burst of writes lands within one debounce window
	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(
			filepath.Join(s.MockRoot, "api", "get.json"),
			[]byte(`{"ok":true}`),
			0o644,
		))
	}

	assert.Eventually(t, func() bool {
		return swaps() >= 1
	}, 5*time.Second, 50*time.Millisecond)

	// The burst produced a single rebuild
	time.Sleep(2 * reloadDebounce)
	assert.Equal(t, 1, swaps())

	assert.Eventually(t, func() bool {
		rec := do(s, http.MethodGet, "/api", "", nil)
		return rec.Code == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)
}
