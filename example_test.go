package minidb_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/minidb/minidb"
)

func ExampleSession_Run() {
	dir, err := os.MkdirTemp("", "minidb-example")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	var out strings.Builder
	s := minidb.NewSession(minidb.Config{
		DataDir: dir,
		Logger:  log.New(io.Discard, "", 0),
		Output:  minidb.NewWriterSink(&out),
	})
	script := `
CREATE DATABASE shop;
USE shop;
CREATE TABLE items (id INTEGER, label TEXT, price FLOAT);
INSERT INTO items VALUES (1, 'pen', 1.5);
INSERT INTO items VALUES (2, 'cup', 3.0);
UPDATE items SET price = price * 2 WHERE id = 1;
SELECT label, price FROM items;
`
	if _, err := s.Run(context.Background(), strings.NewReader(script)); err != nil {
		panic(err)
	}
	fmt.Print(out.String())
	// Output:
	// label,price
	// 'pen',3.000000
	// 'cup',3.0
}
