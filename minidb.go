// Package minidb provides a tiny single-user SQL script database.
//
// A script is a sequence of ';'-terminated statements in a restricted SQL
// dialect. Running it creates and selects databases, defines tables, inserts,
// updates and deletes rows, and appends the result of every SELECT to an
// output file. Each database lives in one text file, <name>.db, which is
// rewritten after every change.
//
// # Basic Usage
//
//	stats, err := minidb.RunFiles(ctx, "input.sql", "output.csv", minidb.Config{})
//
// Or drive a session directly:
//
//	var out bytes.Buffer
//	s := minidb.NewSession(minidb.Config{DataDir: dir, Output: minidb.NewWriterSink(&out)})
//	_ = s.ExecSQL(ctx, "CREATE DATABASE shop")
//	_ = s.ExecSQL(ctx, "USE shop")
//	_ = s.ExecSQL(ctx, "CREATE TABLE items (id INTEGER, label TEXT, price FLOAT)")
//	_ = s.ExecSQL(ctx, "INSERT INTO items VALUES (1, 'pen', 1.5)")
//	_ = s.ExecSQL(ctx, "SELECT label FROM items WHERE price > 1")
//
// # Dialect
//
//	CREATE DATABASE name
//	USE name
//	CREATE TABLE t (col TYPE, ...)          -- INTEGER, FLOAT, TEXT
//	DROP TABLE t
//	INSERT INTO t [VALUES] (v1, v2, ...)    -- TEXT values are 'quoted'
//	SELECT cols|* FROM t [WHERE p]
//	SELECT a.x, b.y FROM a INNER JOIN b ON a.k = b.k [WHERE p]
//	UPDATE t SET col = expr, ... [WHERE p]
//	DELETE FROM t [WHERE p]
//
// A WHERE clause holds one comparison (col op literal, op one of = < > !=)
// or two joined by AND or OR.
package minidb

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/minidb/minidb/internal/engine"
	"github.com/minidb/minidb/internal/storage"
)

// ============================================================================
// Core Types - Re-exported from internal packages for public API
// ============================================================================

// Session executes statements against a catalog of databases.
type Session = engine.Session

// Config configures a Session.
type Config = engine.Config

// Stats summarizes a script run.
type Stats = engine.Stats

// ResultSink receives SELECT result blocks.
type ResultSink = engine.ResultSink

// Statement is the base interface for all parsed statements.
type Statement = engine.Statement

// Parser parses one statement. Create with NewParser.
type Parser = engine.Parser

// Database is a named set of tables.
type Database = storage.Database

// Table is a header row followed by data rows.
type Table = storage.Table

// Column is a column name and its declared type.
type Column = storage.Column

// ColType is a declared column type.
type ColType = storage.ColType

// Column type constants.
const (
	IntegerType ColType = storage.IntegerType
	FloatType   ColType = storage.FloatType
	TextType    ColType = storage.TextType
)

// ============================================================================
// Errors
// ============================================================================

// Error kinds reported by statements. Match with errors.Is.
var (
	ErrUnknownCommand = engine.ErrUnknownCommand
	ErrNoDatabase     = engine.ErrNoDatabase
	ErrNotFound       = engine.ErrNotFound
	ErrDuplicate      = engine.ErrDuplicate
	ErrMalformed      = engine.ErrMalformed
	ErrIO             = engine.ErrIO
)

// ============================================================================
// Functions
// ============================================================================

// NewSession creates a session. See Config for defaults.
func NewSession(cfg Config) *Session { return engine.NewSession(cfg) }

// NewParser creates a parser for a single statement.
func NewParser(sql string) *Parser { return engine.NewParser(sql) }

// ParseSQL parses a single statement.
func ParseSQL(sql string) (Statement, error) { return engine.ParseSQL(sql) }

// NewFileSink truncates path and returns a sink appending to it.
func NewFileSink(path string) (*ResultSink, error) { return engine.NewFileSink(path) }

// NewWriterSink returns a sink writing to w.
func NewWriterSink(w io.Writer) *ResultSink { return engine.NewWriterSink(w) }

// LoadFromFile reads a persisted database file.
func LoadFromFile(path string) (*Database, error) { return storage.LoadFromFile(path) }

// SaveToFile writes a database file.
func SaveToFile(db *Database, path string) error { return storage.SaveToFile(db, path) }

// RunFiles runs the script at scriptPath, writing SELECT results to
// outputPath. The output file is truncated first. cfg.Output is ignored.
//
// Statement failures are logged and counted in Stats; the returned error is
// non-nil only when the script or output file cannot be used at all.
func RunFiles(ctx context.Context, scriptPath, outputPath string, cfg Config) (Stats, error) {
	sink, err := engine.NewFileSink(outputPath)
	if err != nil {
		return Stats{}, err
	}

	f, err := os.Open(scriptPath)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: open script %s: %v", ErrIO, scriptPath, err)
	}
	defer f.Close()
	cfg.Output = sink
	return engine.NewSession(cfg).Run(ctx, f)
}
