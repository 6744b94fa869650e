// Package engine implements the minidb statement executor.
//
// Execute dispatches a parsed Statement against the session's current
// database. Every statement is validated before anything is changed, so a
// failing statement leaves the catalog as it was; every successful mutation
// rewrites the owning database file.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/minidb/minidb/internal/storage"
)

// Execute runs one statement.
func (s *Session) Execute(ctx context.Context, stmt Statement) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	switch st := stmt.(type) {
	case *CreateDatabase:
		return s.execCreateDatabase(st)
	case *UseDatabase:
		return s.execUse(st)
	case *CreateTable:
		return s.execCreateTable(st)
	case *DropTable:
		return s.execDropTable(st)
	case *Insert:
		return s.execInsert(st)
	case *Select:
		return s.execSelect(st)
	case *JoinSelect:
		return s.execJoin(st)
	case *Update:
		return s.execUpdate(st)
	case *Delete:
		return s.execDelete(st)
	}
	return fmt.Errorf("%w: %T", ErrUnknownCommand, stmt)
}

func checkCtx(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (s *Session) execCreateDatabase(st *CreateDatabase) error {
	if _, ok := s.catalog.Get(st.Name); ok {
		return fmt.Errorf("CREATE DATABASE %s: %w", st.Name, ErrDuplicate)
	}
	if _, err := s.catalog.Create(st.Name); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return fmt.Errorf("CREATE DATABASE %s: %w", st.Name, err)
		}
		return fmt.Errorf("%w: CREATE DATABASE %s: %w", ErrIO, st.Name, err)
	}
	return nil
}

func (s *Session) execUse(st *UseDatabase) error {
	db, err := s.catalog.Load(st.Name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("USE %s: %w", st.Name, err)
		}
		return fmt.Errorf("%w: USE %s: %w", ErrIO, st.Name, err)
	}
	s.current = db
	return nil
}

func (s *Session) execCreateTable(st *CreateTable) error {
	db, err := s.requireDB()
	if err != nil {
		return fmt.Errorf("CREATE TABLE %s: %w", st.Name, err)
	}
	if err := db.Put(storage.NewTable(st.Name, st.Cols)); err != nil {
		return fmt.Errorf("CREATE TABLE: %w", err)
	}
	return s.persist(db)
}

func (s *Session) execDropTable(st *DropTable) error {
	db, err := s.requireDB()
	if err != nil {
		return fmt.Errorf("DROP TABLE %s: %w", st.Name, err)
	}
	if err := db.Drop(st.Name); err != nil {
		return fmt.Errorf("DROP TABLE: %w", err)
	}
	return s.persist(db)
}

func isQuoted(v string) bool {
	return len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\''
}

// checkStorable rejects values that would not read back as a single field of
// a stored row.
func checkStorable(v string) error {
	if strings.Count(v, "'")%2 != 0 {
		return fmt.Errorf("%w: value %s has an unbalanced quote", ErrMalformed, v)
	}
	if strings.ContainsAny(v, "\r\n") {
		return fmt.Errorf("%w: value %q spans lines", ErrMalformed, v)
	}
	for _, c := range []byte{' ', '\t', '\f', '\v'} {
		if indexUnquoted(v, 0, c) >= 0 {
			return fmt.Errorf("%w: value %s contains whitespace outside quotes", ErrMalformed, v)
		}
	}
	return nil
}

func (s *Session) execInsert(st *Insert) error {
	tbl, err := s.table(st.Table)
	if err != nil {
		return fmt.Errorf("INSERT: %w", err)
	}
	if len(st.Vals) != len(tbl.Cols) {
		return fmt.Errorf("%w: INSERT INTO %s: expected %d values, got %d", ErrMalformed, st.Table, len(tbl.Cols), len(st.Vals))
	}
	for i, col := range tbl.Cols {
		if col.Type == storage.TextType && !isQuoted(st.Vals[i]) {
			return fmt.Errorf("%w: INSERT INTO %s: TEXT value %s for column %s must be quoted", ErrMalformed, st.Table, st.Vals[i], col.Name)
		}
		if err := checkStorable(st.Vals[i]); err != nil {
			return fmt.Errorf("INSERT INTO %s: column %s: %w", st.Table, col.Name, err)
		}
	}
	if err := tbl.Append(slices.Clone(st.Vals)); err != nil {
		return fmt.Errorf("%w: INSERT: %v", ErrMalformed, err)
	}
	return s.persist(s.current)
}

// selectColumn resolves a projected name on a single table. A qualifier
// equal to the table name is accepted.
func selectColumn(tbl *storage.Table, name string) (int, error) {
	idx, err := tbl.ColIndex(name)
	if err == nil {
		return idx, nil
	}
	if ref := parseColumnRef(name); ref.Table == tbl.Name {
		return tbl.ColIndex(ref.Column)
	}
	return -1, err
}

func (s *Session) execSelect(st *Select) error {
	tbl, err := s.table(st.Table)
	if err != nil {
		return fmt.Errorf("SELECT: %w", err)
	}
	var header []string
	var idxs []int
	if st.Star {
		header = slices.Clone(tbl.Header())
		for i := range tbl.Cols {
			idxs = append(idxs, i)
		}
	} else {
		for _, name := range st.Cols {
			idx, err := selectColumn(tbl, name)
			if err != nil {
				return fmt.Errorf("SELECT: %w", err)
			}
			header = append(header, name)
			idxs = append(idxs, idx)
		}
	}
	filter, err := s.bindFilter(st.Where, []*storage.Table{tbl})
	if err != nil {
		return fmt.Errorf("SELECT: %w", err)
	}

	var out [][]string
	for _, row := range tbl.Data() {
		ok, err := filter.match(row)
		if err != nil {
			return fmt.Errorf("SELECT FROM %s: %w", st.Table, err)
		}
		if !ok {
			continue
		}
		proj := make([]string, len(idxs))
		for i, idx := range idxs {
			proj[i] = row[idx]
		}
		out = append(out, proj)
	}
	return s.sink.WriteBlock(header, out)
}

// joinColumn is a column position inside a (left, right) row pair.
type joinColumn struct{ side, col int }

// resolveJoinColumn looks a reference up in the join's two tables. A
// qualified reference must name one of them; an unqualified one is tried in
// order, starting at the preferred side.
func resolveJoinColumn(ref ColumnRef, tabs [2]*storage.Table, prefer int) (joinColumn, error) {
	order := []int{prefer, 1 - prefer}
	for _, side := range order {
		t := tabs[side]
		if ref.Table != "" && ref.Table != t.Name {
			continue
		}
		if idx, err := t.ColIndex(ref.Column); err == nil {
			return joinColumn{side, idx}, nil
		} else if ref.Table != "" {
			return joinColumn{}, err
		}
	}
	if ref.Table != "" {
		return joinColumn{}, fmt.Errorf("table %q is not part of the join: %w", ref.Table, ErrNotFound)
	}
	return joinColumn{}, fmt.Errorf("column %q: %w", ref.Column, ErrNotFound)
}

func (s *Session) execJoin(st *JoinSelect) error {
	left, err := s.table(st.Left)
	if err != nil {
		return fmt.Errorf("SELECT: %w", err)
	}
	right, err := s.table(st.Right)
	if err != nil {
		return fmt.Errorf("SELECT: %w", err)
	}
	tabs := [2]*storage.Table{left, right}

	// Unqualified ON operands are positional: left side, then right side.
	onL, err := resolveJoinColumn(st.On[0], tabs, 0)
	if err != nil {
		return fmt.Errorf("SELECT: join condition: %w", err)
	}
	onR, err := resolveJoinColumn(st.On[1], tabs, 1)
	if err != nil {
		return fmt.Errorf("SELECT: join condition: %w", err)
	}

	var header []string
	var proj []joinColumn
	if st.Star {
		for side, t := range tabs {
			for i, c := range t.Cols {
				header = append(header, t.Name+"."+c.Name)
				proj = append(proj, joinColumn{side, i})
			}
		}
	} else {
		for _, ref := range st.Cols {
			// Unqualified projections look in the right table first.
			jc, err := resolveJoinColumn(ref, tabs, 1)
			if err != nil {
				return fmt.Errorf("SELECT: %w", err)
			}
			header = append(header, ref.String())
			proj = append(proj, jc)
		}
	}

	cmps := comparisons(st.Where)
	if len(cmps) == 2 && (cmps[0].Table == "" || cmps[1].Table == "") {
		return fmt.Errorf("%w: SELECT: both join predicates must be qualified with a table name", ErrMalformed)
	}
	filter, err := s.bindFilter(st.Where, tabs[:])
	if err != nil {
		return fmt.Errorf("SELECT: %w", err)
	}

	var out [][]string
	for _, lr := range left.Data() {
		for _, rr := range right.Data() {
			pair := [2][]string{lr, rr}
			if pair[onL.side][onL.col] != pair[onR.side][onR.col] {
				continue
			}
			ok, err := filter.match(lr, rr)
			if err != nil {
				return fmt.Errorf("SELECT: %w", err)
			}
			if !ok {
				continue
			}
			row := make([]string, len(proj))
			for i, jc := range proj {
				row[i] = pair[jc.side][jc.col]
			}
			out = append(out, row)
		}
	}
	return s.sink.WriteBlock(header, out)
}

func (s *Session) execUpdate(st *Update) error {
	tbl, err := s.table(st.Table)
	if err != nil {
		return fmt.Errorf("UPDATE: %w", err)
	}
	targets := make([]int, len(st.Sets))
	for i, a := range st.Sets {
		idx, err := tbl.ColIndex(a.Column)
		if err != nil {
			return fmt.Errorf("UPDATE: %w", err)
		}
		if tbl.Cols[idx].Type == storage.TextType && !isQuoted(a.Expr) {
			return fmt.Errorf("%w: UPDATE %s: TEXT value %s for column %s must be quoted", ErrMalformed, st.Table, a.Expr, a.Column)
		}
		if !tbl.Cols[idx].Type.IsNumeric() {
			if err := checkStorable(a.Expr); err != nil {
				return fmt.Errorf("UPDATE %s: column %s: %w", st.Table, a.Column, err)
			}
		}
		targets[i] = idx
	}
	filter, err := s.bindFilter(st.Where, []*storage.Table{tbl})
	if err != nil {
		return fmt.Errorf("UPDATE: %w", err)
	}

	data := tbl.Data()
	var matched []int
	for i, row := range data {
		ok, err := filter.match(row)
		if err != nil {
			return fmt.Errorf("UPDATE %s: %w", st.Table, err)
		}
		if ok {
			matched = append(matched, i)
		}
	}

	var errs []error
	for _, i := range matched {
		row := slices.Clone(data[i])
		for k, a := range st.Sets {
			idx := targets[k]
			col := tbl.Cols[idx]
			if !col.Type.IsNumeric() {
				row[idx] = a.Expr
				continue
			}
			expr := substituteColumns(a.Expr, tbl.Cols, row)
			v, err := EvalArithmetic(expr)
			var val string
			if err == nil {
				val, err = formatNumeric(v, col.Type)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("row %d, column %s: %w", i+1, col.Name, err))
				continue
			}
			row[idx] = val
		}
		data[i] = row
	}
	if err := s.persist(s.current); err != nil {
		return err
	}
	if len(errs) > 0 {
		return fmt.Errorf("UPDATE %s: %w", st.Table, errors.Join(errs...))
	}
	return nil
}

func (s *Session) execDelete(st *Delete) error {
	tbl, err := s.table(st.Table)
	if err != nil {
		return fmt.Errorf("DELETE: %w", err)
	}
	if st.Where == nil {
		tbl.SetData(nil)
		return s.persist(s.current)
	}
	filter, err := s.bindFilter(st.Where, []*storage.Table{tbl})
	if err != nil {
		return fmt.Errorf("DELETE: %w", err)
	}
	var keep [][]string
	for _, row := range tbl.Data() {
		ok, err := filter.match(row)
		if err != nil {
			return fmt.Errorf("DELETE FROM %s: %w", st.Table, err)
		}
		if !ok {
			keep = append(keep, row)
		}
	}
	tbl.SetData(keep)
	return s.persist(s.current)
}
