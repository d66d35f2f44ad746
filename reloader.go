package mockfs

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce is the window in which rapid filesystem events coalesce
// into a single rebuild.
const reloadDebounce = 300 * time.Millisecond

// reloader watches the mock root and swaps a freshly built routing table in
// after every burst of changes. A failed rebuild leaves the live table
// untouched.
type reloader struct {
	s *Server

	watcher *fsnotify.Watcher
	events  chan fsnotify.Event
	stop    chan struct{}
}

// newReloader returns a pointer of a new instance of the `reloader` with
// the s.
func newReloader(s *Server) *reloader {
	return &reloader{
		s:      s,
		events: make(chan fsnotify.Event, 64),
		stop:   make(chan struct{}),
	}
}

// start begins watching the mock root of the owning server.
func (r *reloader) start() error {
	var err error
	if r.watcher, err = fsnotify.NewWatcher(); err != nil {
		return err
	}

	if err := r.addTree(r.s.MockRoot); err != nil {
		r.watcher.Close()
		return err
	}

	go r.forward()
	go r.run()

	return nil
}

// addTree adds the dir and every sub-directory to the watcher, skipping
// upload folders so that uploaded files never trigger reloads.
func (r *reloader) addTree(dir string) error {
	if r.s.uploads.owns(dir) {
		return nil
	}

	if err := r.watcher.Add(dir); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, de := range entries {
		if !de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}

		if err := r.addTree(filepath.Join(dir, de.Name())); err != nil {
			return err
		}
	}

	return nil
}

// forward moves watcher events into the bounded channel of the r. When the
// channel overflows, the event is dropped and a warning is logged; the events
// already queued still close a debounce window, and every rebuild is a full
// pass, so the dropped change is picked up by that rebuild.
func (r *reloader) forward() {
	for {
		select {
		case <-r.stop:
			return
		case e, ok := <-r.watcher.Events:
			if !ok {
				return
			}

			if r.ignored(e.Name) {
				continue
			}

			if e.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(e.Name); err == nil &&
					fi.IsDir() {
					r.addTree(e.Name)
				}
			}

			select {
			case r.events <- e:
			default:
				r.s.logger.WARN(
					"mockfs: reload event channel " +
						"overflow, scheduling full " +
						"rebuild",
				)
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}

			r.s.logger.ERROR(
				"mockfs: reload watcher error",
				map[string]interface{}{
					"error": err.Error(),
				},
			)
		}
	}
}

// ignored reports whether the path sits inside an upload folder.
func (r *reloader) ignored(path string) bool {
	return r.s.uploads.contains(path)
}

// run debounces the event stream and rebuilds when a window closes.
func (r *reloader) run() {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-r.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case e := <-r.events:
			r.s.logger.DEBUG(
				"mockfs: mock tree event",
				map[string]interface{}{
					"file":  e.Name,
					"event": e.Op.String(),
				},
			)

			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(reloadDebounce)
			}
		case <-fire:
			timer = nil
			fire = nil
			r.s.rebuild()
		}
	}
}

// close stops the r.
func (r *reloader) close() {
	close(r.stop)
	if r.watcher != nil {
		r.watcher.Close()
	}
}
