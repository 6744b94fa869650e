package engine

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minidb/minidb/internal/storage"
)

type testSession struct {
	*Session
	out  *bytes.Buffer
	logs *bytes.Buffer
	dir  string
}

func newTestSession(t *testing.T) *testSession {
	t.Helper()
	ts := &testSession{out: &bytes.Buffer{}, logs: &bytes.Buffer{}, dir: t.TempDir()}
	ts.Session = NewSession(Config{
		DataDir: ts.dir,
		Logger:  log.New(ts.logs, "", 0),
		Output:  NewWriterSink(ts.out),
	})
	return ts
}

func (ts *testSession) exec(t *testing.T, stmts ...string) {
	t.Helper()
	for _, sql := range stmts {
		if err := ts.ExecSQL(context.Background(), sql); err != nil {
			t.Fatalf("%s: %v", sql, err)
		}
	}
}

func (ts *testSession) query(t *testing.T, sql string) string {
	t.Helper()
	// each query is read as the first block of a fresh output
	ts.out.Reset()
	ts.sink.blocks = 0
	ts.exec(t, sql)
	return ts.out.String()
}

func shopSession(t *testing.T) *testSession {
	t.Helper()
	ts := newTestSession(t)
	ts.exec(t,
		"CREATE DATABASE shop",
		"USE shop",
		"CREATE TABLE items (id INTEGER, label TEXT, price FLOAT)",
		"INSERT INTO items VALUES (1, 'pen', 1.5)",
		"INSERT INTO items VALUES (2, 'cup', 3.0)",
	)
	return ts
}

func TestSelectWithWhere(t *testing.T) {
	ts := shopSession(t)
	got := ts.query(t, "SELECT id, label FROM items WHERE price > 2")
	if got != "id,label\n2,'cup'\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestUpdateArithmetic(t *testing.T) {
	ts := shopSession(t)
	ts.exec(t, "UPDATE items SET price = price * 2 WHERE id = 1")
	if got := ts.query(t, "SELECT price FROM items WHERE id = 1"); got != "price\n3.000000\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestDeleteWhere(t *testing.T) {
	ts := shopSession(t)
	ts.exec(t, "DELETE FROM items WHERE id != 1")
	if got := ts.query(t, "SELECT * FROM items"); got != "id,label,price\n1,'pen',1.5\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestDeleteAllKeepsHeader(t *testing.T) {
	ts := shopSession(t)
	ts.exec(t, "DELETE FROM items")
	if got := ts.query(t, "SELECT * FROM items"); got != "id,label,price\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestDeleteAdjacentMatches(t *testing.T) {
	ts := shopSession(t)
	ts.exec(t,
		"INSERT INTO items VALUES (3, 'box', 3.0)",
		"INSERT INTO items VALUES (4, 'bag', 0.5)",
		"DELETE FROM items WHERE price > 2",
	)
	if got := ts.query(t, "SELECT id FROM items"); got != "id\n1\n4\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestSelectStarReturnsInsertionOrder(t *testing.T) {
	ts := shopSession(t)
	ts.exec(t, "INSERT INTO items VALUES (0, 'a, b', 9)")
	want := "id,label,price\n1,'pen',1.5\n2,'cup',3.0\n0,'a, b',9\n"
	if got := ts.query(t, "SELECT * FROM items"); got != want {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestWhereIsSubsetAndRepeatable(t *testing.T) {
	ts := shopSession(t)
	ts.exec(t, "INSERT INTO items VALUES (3, 'pen', 0.5)")
	all := ts.query(t, "SELECT * FROM items")
	first := ts.query(t, "SELECT * FROM items WHERE label = 'pen' OR price < 1")
	second := ts.query(t, "SELECT * FROM items WHERE label = 'pen' OR price < 1")
	if first != second {
		t.Fatalf("repeated query differs:\n%s\n%s", first, second)
	}
	for _, line := range strings.Split(strings.TrimSpace(first), "\n") {
		if !strings.Contains(all, line+"\n") {
			t.Fatalf("filtered row %q not in unfiltered output", line)
		}
	}
	if first != "id,label,price\n1,'pen',1.5\n3,'pen',0.5\n" {
		t.Fatalf("unexpected output %q", first)
	}
}

func TestWhereUnknownColumnMatchesNothing(t *testing.T) {
	ts := shopSession(t)
	if got := ts.query(t, "SELECT id FROM items WHERE colour = 'red'"); got != "id\n" {
		t.Fatalf("unexpected output %q", got)
	}
	if !strings.Contains(ts.logs.String(), "colour does not exist") {
		t.Fatalf("missing diagnostic, logs: %q", ts.logs.String())
	}
}

func TestWhereFloatStripsQuotes(t *testing.T) {
	ts := shopSession(t)
	if got := ts.query(t, "SELECT id FROM items WHERE price = '3.0'"); got != "id\n2\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestStatementErrors(t *testing.T) {
	ts := shopSession(t)
	cases := []struct {
		sql  string
		want error
	}{
		{"CREATE DATABASE shop", ErrDuplicate},
		{"CREATE TABLE items (x TEXT)", ErrDuplicate},
		{"USE nowhere", ErrNotFound},
		{"DROP TABLE nope", ErrNotFound},
		{"INSERT INTO nope VALUES (1)", ErrNotFound},
		{"INSERT INTO items VALUES (3, box, 1.0)", ErrMalformed},
		{"INSERT INTO items VALUES (3, 'box')", ErrMalformed},
		{"SELECT colour FROM items", ErrNotFound},
		{"SELECT id FROM items WHERE id = abc", ErrMalformed},
		{"UPDATE items SET colour = 1", ErrNotFound},
		{"UPDATE items SET label = box", ErrMalformed},
		{"DELETE FROM nope", ErrNotFound},
	}
	for _, c := range cases {
		if err := ts.ExecSQL(context.Background(), c.sql); !errors.Is(err, c.want) {
			t.Errorf("%s: expected %v, got %v", c.sql, c.want, err)
		}
	}
	// the failed statements must not have changed anything
	if got := ts.query(t, "SELECT * FROM items"); got != "id,label,price\n1,'pen',1.5\n2,'cup',3.0\n" {
		t.Fatalf("state changed by failed statements: %q", got)
	}
}

func TestNoDatabaseSelected(t *testing.T) {
	ts := newTestSession(t)
	for _, sql := range []string{
		"CREATE TABLE t (id INTEGER)",
		"DROP TABLE t",
		"INSERT INTO t VALUES (1)",
		"SELECT * FROM t",
		"UPDATE t SET id = 1",
		"DELETE FROM t",
	} {
		if err := ts.ExecSQL(context.Background(), sql); !errors.Is(err, ErrNoDatabase) {
			t.Errorf("%s: expected ErrNoDatabase, got %v", sql, err)
		}
	}
}

func TestDropTwice(t *testing.T) {
	ts := shopSession(t)
	ts.exec(t, "DROP TABLE items")
	if err := ts.ExecSQL(context.Background(), "DROP TABLE items"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second drop: expected ErrNotFound, got %v", err)
	}
	if len(ts.Current().ListTables()) != 0 {
		t.Fatalf("catalog changed by failed drop")
	}
}

func TestMutationsArePersisted(t *testing.T) {
	ts := shopSession(t)
	ts.exec(t, "UPDATE items SET label = 'mug' WHERE id = 2")

	db, err := storage.LoadFromFile(filepath.Join(ts.dir, "shop.db"))
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	tbl, err := db.Get("items")
	if err != nil {
		t.Fatalf("table not persisted: %v", err)
	}
	if tbl.Len() != 2 || tbl.Data()[1][1] != "'mug'" {
		t.Fatalf("unexpected persisted rows %#v", tbl.Rows)
	}

	// a fresh session sees the same data after USE
	fresh := newTestSession(t)
	fresh.Session = NewSession(Config{DataDir: ts.dir, Logger: log.New(fresh.logs, "", 0), Output: NewWriterSink(fresh.out)})
	fresh.exec(t, "USE shop")
	if got := fresh.query(t, "SELECT label FROM items"); got != "label\n'pen'\n'mug'\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestUseReloadsFromDisk(t *testing.T) {
	ts := shopSession(t)
	data, err := os.ReadFile(filepath.Join(ts.dir, "shop.db"))
	if err != nil {
		t.Fatalf("read db file: %v", err)
	}
	ts.exec(t, "INSERT INTO items VALUES (3, 'box', 4)")
	if err := os.WriteFile(filepath.Join(ts.dir, "shop.db"), data, 0o644); err != nil {
		t.Fatalf("restore db file: %v", err)
	}
	ts.exec(t, "USE shop")
	if got := ts.query(t, "SELECT id FROM items"); got != "id\n1\n2\n" {
		t.Fatalf("USE did not replace in-memory state: %q", got)
	}
}

func TestUnstorableValuesRejected(t *testing.T) {
	ts := newTestSession(t)
	ts.exec(t,
		"CREATE DATABASE raw", "USE raw",
		"CREATE TABLE t (a INTEGER, b VARCHAR)",
		"INSERT INTO t VALUES (1, 'two words')",
		"INSERT INTO t VALUES (2, plain)",
	)
	for _, sql := range []string{
		"INSERT INTO t VALUES (1 2, x)",
		"INSERT INTO t VALUES (3, hello world)",
		"INSERT INTO t VALUES (3, 'a' 'b')",
		"INSERT INTO t VALUES (3, it's)",
		"UPDATE t SET b = hello world WHERE a = 2",
		"UPDATE t SET b = 'open WHERE a = 2",
	} {
		if err := ts.ExecSQL(context.Background(), sql); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: expected ErrMalformed, got %v", sql, err)
		}
	}

	// a fresh session must read back exactly what was accepted
	fresh := &testSession{out: &bytes.Buffer{}, logs: &bytes.Buffer{}, dir: ts.dir}
	fresh.Session = NewSession(Config{
		DataDir: ts.dir,
		Logger:  log.New(fresh.logs, "", 0),
		Output:  NewWriterSink(fresh.out),
	})
	fresh.exec(t, "USE raw")
	if got := fresh.query(t, "SELECT * FROM t"); got != "a,b\n1,'two words'\n2,plain\n" {
		t.Fatalf("unexpected rows after reload %q", got)
	}
}

func TestCheckStorable(t *testing.T) {
	for v, ok := range map[string]bool{
		"12":            true,
		"'a b'":         true,
		"a\tb":          false,
		"1 2":           false,
		"'a' 'b'":       false,
		"it's":          false,
		"'line\nbreak'": false,
	} {
		if err := checkStorable(v); (err == nil) != ok {
			t.Errorf("checkStorable(%q) = %v", v, err)
		}
	}
}

func TestUpdateReadsStoredInfinity(t *testing.T) {
	ts := shopSession(t)
	ts.exec(t,
		"UPDATE items SET price = price / 0 WHERE id = 1",
		"UPDATE items SET price = price * -1 WHERE id = 1",
	)
	if got := ts.query(t, "SELECT price FROM items WHERE id = 1"); got != "price\n-inf\n" {
		t.Fatalf("unexpected output %q", got)
	}
	ts.exec(t, "UPDATE items SET price = price - price WHERE id = 1")
	if got := ts.query(t, "SELECT price FROM items WHERE id = 1"); got != "price\nnan\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestUpdateSequentialAssignments(t *testing.T) {
	ts := newTestSession(t)
	ts.exec(t,
		"CREATE DATABASE d", "USE d",
		"CREATE TABLE c (a INTEGER, b INTEGER, note TEXT)",
		"INSERT INTO c VALUES (5, 0, 'x')",
		"UPDATE c SET a = a + 1, b = a * 10, note = 'done, ok'",
	)
	if got := ts.query(t, "SELECT * FROM c"); got != "a,b,note\n6,60,'done, ok'\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestUpdateIntegerTruncates(t *testing.T) {
	ts := newTestSession(t)
	ts.exec(t,
		"CREATE DATABASE d", "USE d",
		"CREATE TABLE c (n INTEGER)",
		"INSERT INTO c VALUES (7)",
		"INSERT INTO c VALUES (-7)",
		"UPDATE c SET n = n / 2",
	)
	if got := ts.query(t, "SELECT n FROM c"); got != "n\n3\n-3\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestUpdateMalformedExpressionLeavesCell(t *testing.T) {
	ts := shopSession(t)
	err := ts.ExecSQL(context.Background(), "UPDATE items SET price = price * label, id = id + 10")
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	want := "id,label,price\n11,'pen',1.5\n12,'cup',3.0\n"
	if got := ts.query(t, "SELECT * FROM items"); got != want {
		t.Fatalf("unexpected output %q", got)
	}
}

func joinSession(t *testing.T) *testSession {
	t.Helper()
	ts := newTestSession(t)
	ts.exec(t,
		"CREATE DATABASE j", "USE j",
		"CREATE TABLE users (id INTEGER, name TEXT)",
		"CREATE TABLE orders (oid INTEGER, uid INTEGER, total FLOAT)",
		"INSERT INTO users VALUES (1, 'ann')",
		"INSERT INTO users VALUES (2, 'bob')",
		"INSERT INTO users VALUES (3, 'cy')",
		"INSERT INTO orders VALUES (10, 2, 5.0)",
		"INSERT INTO orders VALUES (11, 1, 7.5)",
		"INSERT INTO orders VALUES (12, 2, 1.0)",
	)
	return ts
}

func TestInnerJoinOrdering(t *testing.T) {
	ts := joinSession(t)
	got := ts.query(t, "SELECT users.name, orders.oid FROM users INNER JOIN orders ON users.id = orders.uid")
	want := "users.name,orders.oid\n'ann',11\n'bob',10\n'bob',12\n"
	if got != want {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestInnerJoinWhere(t *testing.T) {
	ts := joinSession(t)
	got := ts.query(t, "SELECT users.name, orders.total FROM users INNER JOIN orders ON users.id = orders.uid WHERE orders.total > 2")
	if got != "users.name,orders.total\n'ann',7.5\n'bob',5.0\n" {
		t.Fatalf("unexpected output %q", got)
	}
	got = ts.query(t, "SELECT orders.oid FROM users INNER JOIN orders ON users.id = orders.uid WHERE users.name = 'bob' AND orders.total < 2")
	if got != "orders.oid\n12\n" {
		t.Fatalf("unexpected output %q", got)
	}
	got = ts.query(t, "SELECT orders.oid FROM users INNER JOIN orders ON users.id = orders.uid WHERE users.name = 'ann' OR orders.total < 2")
	if got != "orders.oid\n11\n12\n" {
		t.Fatalf("unexpected output %q", got)
	}
	// unqualified projections prefer the right table
	got = ts.query(t, "SELECT id, oid FROM users JOIN orders ON users.id = orders.uid WHERE orders.oid = 11")
	if got != "id,oid\n1,11\n" {
		t.Fatalf("unexpected output %q", got)
	}
	ts.exec(t, "CREATE TABLE pets (id INTEGER, owner INTEGER)", "INSERT INTO pets VALUES (7, 3)")
	got = ts.query(t, "SELECT id FROM users JOIN pets ON users.id = pets.owner")
	if got != "id\n7\n" {
		t.Fatalf("unexpected output %q", got)
	}
	// unqualified single predicate resolves on the right table
	got = ts.query(t, "SELECT users.id FROM users JOIN orders ON id = uid WHERE total = 5")
	if got != "users.id\n2\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestInnerJoinCardinality(t *testing.T) {
	ts := joinSession(t)
	ts.exec(t, "CREATE TABLE tags (k INTEGER, tag TEXT)")
	for _, sql := range []string{"INSERT INTO tags VALUES (0, 'x')", "INSERT INTO tags VALUES (0, 'y')"} {
		ts.exec(t, sql)
	}
	ts.exec(t, "CREATE TABLE zeros (k INTEGER)", "INSERT INTO zeros VALUES (0)", "INSERT INTO zeros VALUES (0)", "INSERT INTO zeros VALUES (0)")
	got := ts.query(t, "SELECT * FROM tags INNER JOIN zeros ON tags.k = zeros.k")
	lines := strings.Split(strings.TrimSpace(got), "\n")
	if lines[0] != "tags.k,tags.tag,zeros.k" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if len(lines)-1 != 2*3 {
		t.Fatalf("always-true join must produce the full product, got %d rows", len(lines)-1)
	}
}

func TestInnerJoinErrors(t *testing.T) {
	ts := joinSession(t)
	cases := []struct {
		sql  string
		want error
	}{
		{"SELECT users.name FROM users INNER JOIN nope ON users.id = nope.id", ErrNotFound},
		{"SELECT users.age FROM users INNER JOIN orders ON users.id = orders.uid", ErrNotFound},
		{"SELECT users.name FROM users INNER JOIN orders ON users.id = orders.nope", ErrNotFound},
		{"SELECT users.name FROM users INNER JOIN orders ON users.id = orders.uid WHERE name = 'a' AND total > 1", ErrMalformed},
	}
	for _, c := range cases {
		if err := ts.ExecSQL(context.Background(), c.sql); !errors.Is(err, c.want) {
			t.Errorf("%s: expected %v, got %v", c.sql, c.want, err)
		}
	}
}

func TestSeparatorBetweenBlocks(t *testing.T) {
	ts := shopSession(t)
	ts.exec(t, "SELECT id FROM items WHERE id = 1")
	if err := ts.ExecSQL(context.Background(), "SELECT nope FROM items"); err == nil {
		t.Fatalf("expected error")
	}
	ts.exec(t, "SELECT label FROM items WHERE id = 2")
	want := "id\n1\n---\nlabel\n'cup'\n"
	if ts.out.String() != want {
		t.Fatalf("unexpected output %q", ts.out.String())
	}
}

func TestExecuteHonoursContext(t *testing.T) {
	ts := shopSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ts.ExecSQL(ctx, "DELETE FROM items"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ts.Current().ListTables()[0].Len() != 2 {
		t.Fatalf("cancelled statement changed data")
	}
}
