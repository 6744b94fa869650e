// Package storage provides the data structures behind minidb.
//
// What: An in-memory catalog of named databases, each holding tables made of
// a header row plus data rows of raw token strings, together with the column
// schema of every table.
// How: Rows are kept exactly as they appear in SQL text (TEXT values keep
// their quotes), so the evaluator decides typing at comparison time. Every
// database is persisted as a whole snapshot in a line-oriented text file.
// Why: A whole-file snapshot keeps the on-disk format readable and the
// recovery story trivial for a single-user engine.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

var (
	// ErrNotFound is returned when a database, table or column does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExists is returned when creating something whose name is taken.
	ErrExists = errors.New("already exists")
)

// Table stores the header row and the data rows of one table along with its
// column schema. Rows[0] is always the header.
type Table struct {
	Name string
	Cols []Column
	Rows [][]string
}

// NewTable creates a header-only table. Header and schema are derived from
// the same column list.
func NewTable(name string, cols []Column) *Table {
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Name
	}
	return &Table{Name: name, Cols: cols, Rows: [][]string{header}}
}

// Header returns the column names in declaration order.
func (t *Table) Header() []string { return t.Rows[0] }

// Data returns the data rows, without the header.
func (t *Table) Data() [][]string { return t.Rows[1:] }

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) - 1 }

// ColIndex returns the zero-based index of the named column.
func (t *Table) ColIndex(name string) (int, error) {
	for i, h := range t.Header() {
		if h == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("column %q on table %q: %w", name, t.Name, ErrNotFound)
}

// Append adds a data row after checking it matches the header width.
func (t *Table) Append(row []string) error {
	if len(row) != len(t.Cols) {
		return fmt.Errorf("table %q expects %d values, got %d", t.Name, len(t.Cols), len(row))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// SetData replaces all data rows, keeping the header.
func (t *Table) SetData(rows [][]string) {
	out := make([][]string, 0, len(rows)+1)
	out = append(out, t.Header())
	t.Rows = append(out, rows...)
}

// Database is a named set of tables.
type Database struct {
	Name   string
	tables map[string]*Table
}

// NewDatabase creates an empty database.
func NewDatabase(name string) *Database {
	return &Database{Name: name, tables: map[string]*Table{}}
}

// Get returns a table by name.
func (db *Database) Get(name string) (*Table, error) {
	t, ok := db.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", name, ErrNotFound)
	}
	return t, nil
}

// Put adds a new table; returns an error if the name is taken.
func (db *Database) Put(t *Table) error {
	if _, exists := db.tables[t.Name]; exists {
		return fmt.Errorf("table %q: %w", t.Name, ErrExists)
	}
	db.tables[t.Name] = t
	return nil
}

// Drop removes a table together with its schema.
func (db *Database) Drop(name string) error {
	if _, ok := db.tables[name]; !ok {
		return fmt.Errorf("table %q: %w", name, ErrNotFound)
	}
	delete(db.tables, name)
	return nil
}

// ListTables returns the tables sorted by name.
func (db *Database) ListTables() []*Table {
	names := make([]string, 0, len(db.tables))
	for k := range db.tables {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]*Table, len(names))
	for i, n := range names {
		out[i] = db.tables[n]
	}
	return out
}

// Catalog is the process-wide set of loaded databases. Database files live
// in a single directory as <name>.db.
type Catalog struct {
	dir string
	dbs map[string]*Database
}

// NewCatalog creates an empty catalog backed by dir.
func NewCatalog(dir string) *Catalog {
	if dir == "" {
		dir = "."
	}
	return &Catalog{dir: dir, dbs: map[string]*Database{}}
}

// Dir returns the directory holding database files.
func (c *Catalog) Dir() string { return c.dir }

// Path returns the file backing the named database.
func (c *Catalog) Path(name string) string {
	return filepath.Join(c.dir, name+FileExt)
}

// Get returns a loaded database.
func (c *Catalog) Get(name string) (*Database, bool) {
	db, ok := c.dbs[name]
	return db, ok
}

// Names returns the loaded database names, sorted.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.dbs))
	for n := range c.dbs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Create registers an empty database and writes its (empty) file. Only the
// in-memory catalog is consulted for duplicates.
func (c *Catalog) Create(name string) (*Database, error) {
	if _, ok := c.dbs[name]; ok {
		return nil, fmt.Errorf("database %q: %w", name, ErrExists)
	}
	db := NewDatabase(name)
	if err := c.Save(db); err != nil {
		return nil, err
	}
	c.dbs[name] = db
	return db, nil
}

// Load reads the named database from its file, replacing any in-memory state
// held for that name.
func (c *Catalog) Load(name string) (*Database, error) {
	path := c.Path(name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("database %q: %w", name, ErrNotFound)
		}
		return nil, err
	}
	db, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	db.Name = name
	c.dbs[name] = db
	return db, nil
}

// Save rewrites the database file from the in-memory state.
func (c *Catalog) Save(db *Database) error {
	return SaveToFile(db, c.Path(db.Name))
}
