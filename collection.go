package mockfs

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// IDType is the id-generation policy of a `Collection`.
type IDType uint8

// id types
const (
	// IDUuid assigns random UUID string ids.
	IDUuid IDType = iota

	// IDInt assigns monotonically increasing integer ids starting past
	// the highest id seen during the initial load.
	IDInt

	// IDNone assigns nothing. Records must carry their own id; inserting
	// a duplicate fails.
	IDNone
)

// String implements the `fmt.Stringer`.
func (it IDType) String() string {
	switch it {
	case IDInt:
		return "int"
	case IDNone:
		return "none"
	}

	return "uuid"
}

// FieldSchema describes one field of a collection's inferred schema.
type FieldSchema struct {
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// Record is a single JSON object held by a `Collection`.
type Record = map[string]interface{}

// Collection is a named ordered set of JSON records guarded by a
// reader-writer lock. All exported methods are safe for concurrent use; no
// lock is ever held beyond the method that took it.
type Collection struct {
	name   string
	idKey  string
	idType IDType

	mutex   sync.RWMutex
	records []Record
	index   map[string]int
	nextID  int64
	schema  map[string]FieldSchema
}

// newCollection returns a pointer of a new instance of the `Collection`.
func newCollection(name, idKey string, idType IDType) *Collection {
	return &Collection{
		name:    name,
		idKey:   idKey,
		idType:  idType,
		index:   map[string]int{},
		nextID:  1,
		schema:  map[string]FieldSchema{},
		records: []Record{},
	}
}

// Name returns the name of the c.
func (c *Collection) Name() string { return c.name }

// IDKey returns the id key of the c.
func (c *Collection) IDKey() string { return c.idKey }

// idString canonicalizes an id value into its index key. JSON numbers arrive
// as float64; integral ones must collide with their path-segment form.
func idString(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		if id == float64(int64(id)) {
			return strconv.FormatInt(int64(id), 10)
		}

		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	case nil:
		return ""
	}

	return fmt.Sprint(v)
}

// LoadInitial replaces the contents of the c with the records, noting every
// existing id so the Int policy starts past the loaded maximum. Duplicate and
// missing ids are rejected.
func (c *Collection) LoadInitial(records []Record) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.records = make([]Record, 0, len(records))
	c.index = make(map[string]int, len(records))
	c.nextID = 1
	c.schema = map[string]FieldSchema{}

	for _, r := range records {
		idv, ok := r[c.idKey]
		if !ok || idv == nil {
			return fmt.Errorf(
				"collection %s: record is missing id key %q",
				c.name,
				c.idKey,
			)
		}

		key := idString(idv)
		if _, dup := c.index[key]; dup {
			return fmt.Errorf(
				"collection %s: duplicate id %q in initial data",
				c.name,
				key,
			)
		}

		c.noteExisting(key)
		c.index[key] = len(c.records)
		c.records = append(c.records, r)
		c.inferSchema(r)
	}

	return nil
}

// noteExisting raises the Int counter past the id when it parses as an
// integer. Callers must hold the write lock.
func (c *Collection) noteExisting(id string) {
	if c.idType != IDInt {
		return
	}

	if n, err := strconv.ParseInt(id, 10, 64); err == nil && n >= c.nextID {
		c.nextID = n + 1
	}
}

// newID produces a fresh id under the c's policy. Callers must hold the write
// lock. The None policy cannot produce ids.
func (c *Collection) newID() (interface{}, error) {
	switch c.idType {
	case IDUuid:
		return uuid.NewString(), nil
	case IDInt:
		id := c.nextID
		c.nextID++
		return float64(id), nil
	}

	return nil, fmt.Errorf(
		"collection %s: id generation is disabled, records must carry %q",
		c.name,
		c.idKey,
	)
}

// inferSchema folds the fields of the r into the c's schema. Callers must
// hold the write lock.
func (c *Collection) inferSchema(r Record) {
	for k, v := range r {
		ft := jsonTypeName(v)
		if prev, ok := c.schema[k]; ok {
			if ft == "null" {
				prev.Nullable = true
				c.schema[k] = prev
			}
			continue
		}

		c.schema[k] = FieldSchema{
			Type:     ft,
			Nullable: ft == "null",
		}
	}
}

// jsonTypeName names the JSON type of the v.
func jsonTypeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	}

	return "unknown"
}

// List returns a copy of the record sequence of the c.
func (c *Collection) List() []Record {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	out := make([]Record, len(c.records))
	copy(out, c.records)

	return out
}

// Get returns the record with the id, if present.
func (c *Collection) Get(id string) (Record, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	i, ok := c.index[id]
	if !ok {
		return nil, false
	}

	return c.records[i], true
}

// Contains reports whether the c holds a record with the id.
func (c *Collection) Contains(id string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	_, ok := c.index[id]

	return ok
}

// Insert adds the obj to the c, assigning a fresh id when the obj carries
// none. It returns the stored record. An obj carrying an id that is already
// taken fails with `ErrIDConflict`.
func (c *Collection) Insert(obj Record) (Record, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	idv, has := obj[c.idKey]
	if !has || idv == nil {
		var err error
		if idv, err = c.newID(); err != nil {
			return nil, err
		}

		obj[c.idKey] = idv
	}

	key := idString(idv)
	if _, dup := c.index[key]; dup {
		return nil, ErrIDConflict
	}

	c.noteExisting(key)
	c.index[key] = len(c.records)
	c.records = append(c.records, obj)
	c.inferSchema(obj)

	return obj, nil
}

// Replace fully replaces the record with the id by the obj, preserving the
// id itself.
func (c *Collection) Replace(id string, obj Record) (Record, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	i, ok := c.index[id]
	if !ok {
		return nil, false
	}

	obj[c.idKey] = c.records[i][c.idKey]
	c.records[i] = obj
	c.inferSchema(obj)

	return obj, true
}

// Merge shallow-merges the top-level keys of the patch into the record with
// the id. The id key itself cannot be overwritten.
func (c *Collection) Merge(id string, patch Record) (Record, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	i, ok := c.index[id]
	if !ok {
		return nil, false
	}

	r := c.records[i]
	for k, v := range patch {
		if k == c.idKey {
			continue
		}

		r[k] = v
	}

	c.inferSchema(r)

	return r, true
}

// Delete removes the record with the id.
func (c *Collection) Delete(id string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	i, ok := c.index[id]
	if !ok {
		return false
	}

	c.records = append(c.records[:i], c.records[i+1:]...)
	delete(c.index, id)
	for k, j := range c.index {
		if j > i {
			c.index[k] = j - 1
		}
	}

	return true
}

// Schema returns a copy of the inferred schema of the c.
func (c *Collection) Schema() map[string]FieldSchema {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	out := make(map[string]FieldSchema, len(c.schema))
	for k, v := range c.schema {
		out[k] = v
	}

	return out
}

// CollectionStore is the registry of the collections of a `Server`. It is
// created once and survives routing table rebuilds so that collection state
// outlives hot-reloads.
type CollectionStore struct {
	mutex       sync.RWMutex
	collections map[string]*Collection
}

// newCollectionStore returns a pointer of a new instance of the
// `CollectionStore`.
func newCollectionStore() *CollectionStore {
	return &CollectionStore{
		collections: map[string]*Collection{},
	}
}

// Ensure returns the collection with the name, creating it with the idKey
// and the idType on first touch, and reports whether it was created. An
// existing collection keeps its records and its original policy, which is
// how collection state survives hot-reloads.
func (cs *CollectionStore) Ensure(name, idKey string, idType IDType) (*Collection, bool) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	if c, ok := cs.collections[name]; ok {
		return c, false
	}

	c := newCollection(name, idKey, idType)
	cs.collections[name] = c

	return c, true
}

// Get returns the collection with the name, if present.
func (cs *CollectionStore) Get(name string) (*Collection, bool) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	c, ok := cs.collections[name]

	return c, ok
}

// Names returns the sorted names of all collections.
func (cs *CollectionStore) Names() []string {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	names := make([]string, 0, len(cs.collections))
	for name := range cs.collections {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// All returns the collections keyed by name.
func (cs *CollectionStore) All() map[string]*Collection {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	out := make(map[string]*Collection, len(cs.collections))
	for name, c := range cs.collections {
		out[name] = c
	}

	return out
}

// Clear drops every collection. It runs during shutdown.
func (cs *CollectionStore) Clear() {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.collections = map[string]*Collection{}
}
