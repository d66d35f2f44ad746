package mockfs

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/fsnotify/fsnotify"
)

// coffer is a mock body file manager that uses runtime memory to reduce disk
// I/O pressure. Entries are invalidated by filesystem events, so serving a
// file always reflects its current on-disk content without a table rebuild.
type coffer struct {
	s       *Server
	once    *sync.Once
	assets  *sync.Map
	cache   *fastcache.Cache
	watcher *fsnotify.Watcher
	loadErr error
}

// newCoffer returns a pointer of a new instance of the `coffer` with the s.
func newCoffer(s *Server) *coffer {
	return &coffer{
		s:      s,
		once:   &sync.Once{},
		assets: &sync.Map{},
	}
}

// load initializes the cache and the invalidation watcher of the c.
func (c *coffer) load() {
	c.cache = fastcache.New(c.s.CofferMaxMemoryBytes)

	c.watcher, c.loadErr = fsnotify.NewWatcher()
	if c.loadErr != nil {
		return
	}

	go func() {
		for {
			select {
			case e, ok := <-c.watcher.Events:
				if !ok {
					return
				}

				c.s.logger.DEBUG(
					"mockfs: mock body file event",
					map[string]interface{}{
						"file":  e.Name,
						"event": e.Op.String(),
					},
				)

				if ai, ok := c.assets.Load(e.Name); ok {
					a := ai.(*asset)
					c.assets.Delete(a.name)
					c.cache.Del(a.checksum[:])
				}
			case err, ok := <-c.watcher.Errors:
				if !ok {
					return
				}

				c.s.logger.ERROR(
					"mockfs: coffer watcher error",
					map[string]interface{}{
						"error": err.Error(),
					},
				)
			}
		}
	}()
}

// asset returns an `asset` from the c for the name, reading the file from
// disk when the cache holds no live entry.
func (c *coffer) asset(name string) (*asset, error) {
	c.once.Do(c.load)
	if c.loadErr != nil {
		return nil, c.loadErr
	}

	name, err := filepath.Abs(name)
	if err != nil {
		return nil, err
	}

	if ai, ok := c.assets.Load(name); ok {
		a := ai.(*asset)
		if a.live() {
			return a, nil
		}
	}

	fi, err := os.Stat(name)
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}

	if err := c.watcher.Add(name); err != nil {
		return nil, err
	}

	mt, _ := mediaTypeByExtension(filepath.Ext(name))

	a := &asset{
		coffer:   c,
		name:     name,
		mimeType: mt,
		modTime:  fi.ModTime(),
		checksum: sha256.Sum256(b),
	}

	c.cache.Set(a.checksum[:], b)
	c.assets.Store(name, a)

	return a, nil
}

// close stops the invalidation watcher of the c.
func (c *coffer) close() {
	if c.watcher != nil {
		c.watcher.Close()
	}
}

// asset is a cached mock body file.
type asset struct {
	coffer   *coffer
	name     string
	mimeType string
	modTime  time.Time
	checksum [sha256.Size]byte
}

// live reports whether the content of the a is still cached.
func (a *asset) live() bool {
	return a.coffer.cache.Has(a.checksum[:])
}

// content returns the content of the a, or nil when it was evicted.
func (a *asset) content() []byte {
	b := a.coffer.cache.Get(nil, a.checksum[:])
	if len(b) == 0 {
		a.coffer.assets.Delete(a.name)
		return nil
	}

	return b
}
