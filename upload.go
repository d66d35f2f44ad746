package mockfs

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// UploadEntry describes one uploaded file as the list endpoint reports it.
type UploadEntry struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// UploadStore owns the on-disk directory of one upload route. A new upload
// with an already-taken filename replaces the prior contents and timestamp.
type UploadStore struct {
	dir       string
	alias     string
	temporary bool
}

// newUploadStore returns a pointer of a new instance of the `UploadStore`.
func newUploadStore(dir, alias string, temporary bool) *UploadStore {
	return &UploadStore{
		dir:       dir,
		alias:     alias,
		temporary: temporary,
	}
}

// Dir returns the owned directory of the us.
func (us *UploadStore) Dir() string { return us.dir }

// Temporary reports whether the us purges its files on shutdown.
func (us *UploadStore) Temporary() bool { return us.temporary }

// handlePost parses the multipart body of the req and streams every file
// part into the directory of the us, truncating prior files of the same
// name. It responds 201 with a JSON summary.
func (us *UploadStore) handlePost(req *Request, res *Response) error {
	mr, err := req.HTTPRequest().MultipartReader()
	if err != nil {
		return ErrUploadFormatInvalid
	}

	stored := []UploadEntry{}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			return ErrUploadFormatInvalid
		}

		name := filepath.Base(part.FileName())
		if name == "" || name == "." || name == string(filepath.Separator) {
			part.Close()
			continue
		}

		dst := filepath.Join(us.dir, name)
		f, err := os.Create(dst)
		if err != nil {
			part.Close()
			return NewHTTPError(
				http.StatusInternalServerError,
				"failed to store upload",
			)
		}

		n, err := io.Copy(f, part)
		f.Close()
		part.Close()
		if err != nil {
			return NewHTTPError(
				http.StatusInternalServerError,
				"failed to store upload",
			)
		}

		stored = append(stored, UploadEntry{
			Name:       name,
			Size:       n,
			UploadedAt: time.Now(),
		})
	}

	if len(stored) == 0 {
		return ErrFileNotUploaded
	}

	res.Status = http.StatusCreated

	return res.WriteJSON(map[string]interface{}{
		"files": stored,
		"total": len(stored),
	})
}

// handleList reads the directory of the us at request time and responds with
// the stored entries.
func (us *UploadStore) handleList(req *Request, res *Response) error {
	des, err := os.ReadDir(us.dir)
	if err != nil {
		return NewHTTPError(
			http.StatusInternalServerError,
			"failed to read upload folder",
		)
	}

	entries := []UploadEntry{}
	for _, de := range des {
		if de.IsDir() {
			continue
		}

		fi, err := de.Info()
		if err != nil {
			continue
		}

		entries = append(entries, UploadEntry{
			Name:       de.Name(),
			Size:       fi.Size(),
			UploadedAt: fi.ModTime(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	return res.WriteJSON(map[string]interface{}{
		"files": entries,
		"total": len(entries),
	})
}

// handleDownload streams the file named by the route param back to the
// client as an attachment.
func (us *UploadStore) handleDownload(req *Request, res *Response) error {
	name := filepath.Base(req.Param("file"))
	path := filepath.Join(us.dir, name)

	f, err := os.Open(path)
	if err != nil {
		return ErrNotFound
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		return ErrNotFound
	}

	return res.Attachment(f, name, fi.ModTime())
}

// purge deletes every file in the directory of the us. It runs during
// shutdown for temporary stores.
func (us *UploadStore) purge() {
	des, err := os.ReadDir(us.dir)
	if err != nil {
		return
	}

	for _, de := range des {
		os.RemoveAll(filepath.Join(us.dir, de.Name()))
	}
}

// uploadRegistry keeps the upload stores of a `Server` stable across routing
// table rebuilds, keyed by owned directory.
type uploadRegistry struct {
	mutex  sync.Mutex
	stores map[string]*UploadStore
}

// newUploadRegistry returns a pointer of a new instance of the
// `uploadRegistry`.
func newUploadRegistry() *uploadRegistry {
	return &uploadRegistry{
		stores: map[string]*UploadStore{},
	}
}

// ensure returns the store owning the dir, creating it on first touch.
func (ur *uploadRegistry) ensure(dir, alias string, temporary bool) *UploadStore {
	ur.mutex.Lock()
	defer ur.mutex.Unlock()

	if us, ok := ur.stores[dir]; ok {
		us.temporary = temporary
		return us
	}

	us := newUploadStore(dir, alias, temporary)
	ur.stores[dir] = us

	return us
}

// owns reports whether the dir is the owned directory of a store.
func (ur *uploadRegistry) owns(dir string) bool {
	ur.mutex.Lock()
	defer ur.mutex.Unlock()

	_, ok := ur.stores[dir]

	return ok
}

// contains reports whether the path sits inside the owned directory of any
// store.
func (ur *uploadRegistry) contains(path string) bool {
	ur.mutex.Lock()
	defer ur.mutex.Unlock()

	for dir := range ur.stores {
		if path == dir ||
			strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	return false
}

// dirs returns the owned directories of all stores.
func (ur *uploadRegistry) dirs() []string {
	ur.mutex.Lock()
	defer ur.mutex.Unlock()

	out := make([]string, 0, len(ur.stores))
	for dir := range ur.stores {
		out = append(out, dir)
	}

	return out
}

// purgeTemporary purges every temporary store.
func (ur *uploadRegistry) purgeTemporary() {
	ur.mutex.Lock()
	defer ur.mutex.Unlock()

	for _, us := range ur.stores {
		if us.temporary {
			us.purge()
		}
	}
}
