package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileExt is the extension of persisted database files.
const FileExt = ".db"

// ErrCorrupt is returned when a database file cannot be decoded.
var ErrCorrupt = errors.New("corrupt database file")

// File layout, one block per table:
//
//	TABLE <name>
//	<col> <type> <col> <type> ...
//	<value> <value> ...        one line per data row
//	end
//
// Values are written verbatim and separated by single spaces. TEXT values
// carry their quotes, so a quoted value may itself contain spaces.

// Encode writes db in the line-oriented file format. Tables are written in
// name order.
func Encode(w io.Writer, db *Database) error {
	bw := bufio.NewWriter(w)
	for _, t := range db.ListTables() {
		fmt.Fprintf(bw, "TABLE %s\n", t.Name)
		pairs := make([]string, 0, 2*len(t.Cols))
		for _, c := range t.Cols {
			pairs = append(pairs, c.Name, string(c.Type))
		}
		bw.WriteString(strings.Join(pairs, " "))
		bw.WriteByte('\n')
		for _, row := range t.Data() {
			bw.WriteString(strings.Join(row, " "))
			bw.WriteByte('\n')
		}
		bw.WriteString("end\n")
	}
	return bw.Flush()
}

type decodeState int

const (
	expectTable decodeState = iota
	expectSchema
	expectRows
)

// Decode reads a database in the file format produced by Encode.
func Decode(r io.Reader, name string) (*Database, error) {
	db := NewDatabase(name)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	state := expectTable
	var cur *Table
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		switch state {
		case expectTable:
			if strings.TrimSpace(line) == "" {
				continue
			}
			if !strings.HasPrefix(line, "TABLE ") {
				return nil, fmt.Errorf("%w: line %d: expected TABLE, got %q", ErrCorrupt, lineNo, line)
			}
			// Older files separate keyword and name with two spaces.
			tn := strings.TrimSpace(line[len("TABLE"):])
			if tn == "" {
				return nil, fmt.Errorf("%w: line %d: missing table name", ErrCorrupt, lineNo)
			}
			cur = &Table{Name: tn}
			state = expectSchema
		case expectSchema:
			fields := strings.Fields(line)
			if len(fields) == 0 || len(fields)%2 != 0 {
				return nil, fmt.Errorf("%w: line %d: bad column list for table %q", ErrCorrupt, lineNo, cur.Name)
			}
			cols := make([]Column, 0, len(fields)/2)
			for i := 0; i < len(fields); i += 2 {
				cols = append(cols, Column{Name: fields[i], Type: ColType(fields[i+1])})
			}
			cur = NewTable(cur.Name, cols)
			state = expectRows
		case expectRows:
			if line == "end" {
				if err := db.Put(cur); err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrCorrupt, lineNo, err)
				}
				cur = nil
				state = expectTable
				continue
			}
			vals := SplitRow(line)
			if len(vals) == 0 {
				continue
			}
			if err := cur.Append(vals); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrCorrupt, lineNo, err)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if state != expectTable {
		return nil, fmt.Errorf("%w: table %q is not terminated by end", ErrCorrupt, cur.Name)
	}
	return db, nil
}

// SplitRow splits a persisted data line on spaces that are outside single
// quotes. Runs of spaces produce no empty values.
func SplitRow(line string) []string {
	var out []string
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\'':
			inQuotes = !inQuotes
			cur.WriteByte(c)
		case c == ' ' && !inQuotes:
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// SaveToFile rewrites filename with a snapshot of db.
func SaveToFile(db *Database, filename string) (err error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return err
	}
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Encode(f, db)
}

// LoadFromFile reads a database file. The database is named after the file
// name without its extension.
func LoadFromFile(filename string) (*Database, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	base := filepath.Base(filename)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return Decode(f, name)
}
