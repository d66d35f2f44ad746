package mockfs

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// sqlEngine executes SQL against an in-memory SQLite database whose tables
// mirror the live collections. The mirror is refreshed before every query;
// collections are small, so a full rebuild per query keeps the engine free of
// change tracking.
type sqlEngine struct {
	store *CollectionStore

	mutex sync.Mutex
	db    *sql.DB
}

// newSQLEngine returns a pointer of a new instance of the `sqlEngine` over
// the store.
func newSQLEngine(store *CollectionStore) *sqlEngine {
	return &sqlEngine{
		store: store,
	}
}

// open lazily opens the database of the e. Callers must hold the mutex.
func (e *sqlEngine) open() error {
	if e.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return err
	}

	// The mirror relies on a single connection; a second one would see an
	// unrelated empty :memory: database.
	db.SetMaxOpenConns(1)
	e.db = db

	return nil
}

// Query refreshes the collection mirror and executes the query with the args
// bound to its "?" placeholders, returning the rows as JSON-ready maps.
func (e *sqlEngine) Query(query string, args ...interface{}) ([]Record, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if err := e.open(); err != nil {
		return nil, err
	}

	if err := e.sync(); err != nil {
		return nil, err
	}

	rows, err := e.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []Record{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		r := Record{}
		for i, c := range cols {
			r[c] = fromSQLValue(vals[i])
		}

		out = append(out, r)
	}

	return out, rows.Err()
}

// Close closes the database of the e.
func (e *sqlEngine) Close() {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.db != nil {
		e.db.Close()
		e.db = nil
	}
}

// sync drops and recreates one table per collection from the live records.
// Callers must hold the mutex.
func (e *sqlEngine) sync() error {
	for name, c := range e.store.All() {
		if err := e.syncCollection(name, c); err != nil {
			return err
		}
	}

	return nil
}

// syncCollection mirrors the c into the table named name.
func (e *sqlEngine) syncCollection(name string, c *Collection) error {
	table := quoteIdent(name)
	if _, err := e.db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
		return err
	}

	schema := c.Schema()
	if len(schema) == 0 {
		return nil
	}

	fields := make([]string, 0, len(schema))
	for f := range schema {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	defs := make([]string, 0, len(fields))
	for _, f := range fields {
		defs = append(defs, fmt.Sprintf(
			"%s %s",
			quoteIdent(f),
			sqlTypeFor(schema[f].Type),
		))
	}

	if _, err := e.db.Exec(fmt.Sprintf(
		"CREATE TABLE %s (%s)",
		table,
		strings.Join(defs, ", "),
	)); err != nil {
		return err
	}

	quoted := make([]string, 0, len(fields))
	marks := make([]string, 0, len(fields))
	for _, f := range fields {
		quoted = append(quoted, quoteIdent(f))
		marks = append(marks, "?")
	}

	insert := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(quoted, ", "),
		strings.Join(marks, ", "),
	)

	for _, r := range c.List() {
		args := make([]interface{}, 0, len(fields))
		for _, f := range fields {
			args = append(args, toSQLValue(r[f]))
		}

		if _, err := e.db.Exec(insert, args...); err != nil {
			return err
		}
	}

	return nil
}

// quoteIdent quotes an SQL identifier.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// sqlTypeFor maps an inferred JSON field type to a SQLite column type.
func sqlTypeFor(jsonType string) string {
	switch jsonType {
	case "number":
		return "REAL"
	case "boolean":
		return "INTEGER"
	}

	return "TEXT"
}

// toSQLValue converts a record value into a driver-friendly value. Nested
// arrays and objects are stored as their JSON text.
func toSQLValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil, bool, float64, string:
		return t
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}

	return string(b)
}

// fromSQLValue converts a scanned value back into a JSON-ready value.
func fromSQLValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case int64:
		return float64(t)
	}

	return v
}
