package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func itemsTable() *Table {
	return NewTable("items", []Column{
		{Name: "id", Type: IntegerType},
		{Name: "label", Type: TextType},
		{Name: "price", Type: FloatType},
	})
}

func TestNewTableHeaderMatchesSchema(t *testing.T) {
	tbl := itemsTable()
	if len(tbl.Rows) != 1 {
		t.Fatalf("expected header-only table, got %d rows", len(tbl.Rows))
	}
	want := []string{"id", "label", "price"}
	for i, h := range tbl.Header() {
		if h != want[i] || tbl.Cols[i].Name != want[i] {
			t.Fatalf("header %d: got %q / %q, want %q", i, h, tbl.Cols[i].Name, want[i])
		}
	}
	if tbl.Len() != 0 {
		t.Fatalf("expected 0 data rows, got %d", tbl.Len())
	}
}

func TestTableAppendChecksWidth(t *testing.T) {
	tbl := itemsTable()
	if err := tbl.Append([]string{"1", "'pen'", "1.5"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := tbl.Append([]string{"2", "'cup'"}); err == nil {
		t.Fatalf("expected width error")
	}
	if tbl.Len() != 1 {
		t.Fatalf("expected 1 data row, got %d", tbl.Len())
	}
}

func TestColIndex(t *testing.T) {
	tbl := itemsTable()
	i, err := tbl.ColIndex("price")
	if err != nil || i != 2 {
		t.Fatalf("ColIndex(price) = %d, %v", i, err)
	}
	if _, err := tbl.ColIndex("Price"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("column lookup must be case-sensitive, got %v", err)
	}
}

func TestSetDataKeepsHeader(t *testing.T) {
	tbl := itemsTable()
	_ = tbl.Append([]string{"1", "'pen'", "1.5"})
	tbl.SetData(nil)
	if tbl.Len() != 0 || tbl.Header()[0] != "id" {
		t.Fatalf("unexpected rows after SetData: %#v", tbl.Rows)
	}
}

func TestDatabasePutGetDrop(t *testing.T) {
	db := NewDatabase("shop")
	if err := db.Put(itemsTable()); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := db.Put(itemsTable()); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := db.Get("items"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := db.Drop("items"); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if err := db.Drop("items"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Drop: expected ErrNotFound, got %v", err)
	}
	if len(db.ListTables()) != 0 {
		t.Fatalf("expected no tables after drop")
	}
}

func TestListTablesSorted(t *testing.T) {
	db := NewDatabase("shop")
	for _, n := range []string{"zeta", "alpha", "mid"} {
		_ = db.Put(NewTable(n, []Column{{Name: "id", Type: IntegerType}}))
	}
	got := db.ListTables()
	want := []string{"alpha", "mid", "zeta"}
	for i, tbl := range got {
		if tbl.Name != want[i] {
			t.Fatalf("table %d: got %q, want %q", i, tbl.Name, want[i])
		}
	}
}

func TestCatalogCreateAndLoad(t *testing.T) {
	dir := t.TempDir()
	c := NewCatalog(dir)

	db, err := c.Create("shop")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "shop.db")); err != nil {
		t.Fatalf("database file not written: %v", err)
	}
	if _, err := c.Create("shop"); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	_ = db.Put(itemsTable())
	if err := c.Save(db); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// in-memory changes not saved must be discarded by Load
	_ = db.Put(NewTable("scratch", []Column{{Name: "x", Type: TextType}}))

	loaded, err := c.Load("shop")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := loaded.Get("scratch"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load must replace in-memory state, got %v", err)
	}
	if got, _ := c.Get("shop"); got != loaded {
		t.Fatalf("catalog does not hold the loaded database")
	}
}

func TestCatalogLoadMissing(t *testing.T) {
	c := NewCatalog(t.TempDir())
	if _, err := c.Load("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(c.Names()) != 0 {
		t.Fatalf("failed load must not register a database")
	}
}
