package engine

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/minidb/minidb/internal/storage"
)

// Config configures a Session. Zero values are replaced by defaults.
type Config struct {
	// DataDir is where <name>.db files live. Defaults to ".".
	DataDir string
	// Logger receives diagnostics. Defaults to stderr with a "minidb: " prefix.
	Logger *log.Logger
	// Output receives SELECT results. Defaults to a sink that discards them.
	Output *ResultSink
}

func (c Config) withDefaults() Config {
	if c.DataDir == "" {
		c.DataDir = "."
	}
	if c.Logger == nil {
		c.Logger = log.New(os.Stderr, "minidb: ", 0)
	}
	if c.Output == nil {
		c.Output = NewWriterSink(io.Discard)
	}
	return c
}

// Session is one single-user connection to a catalog: it owns the catalog,
// the currently selected database and the result sink.
type Session struct {
	id      uuid.UUID
	catalog *storage.Catalog
	current *storage.Database
	sink    *ResultSink
	log     *log.Logger
}

// NewSession creates a session with an empty in-memory catalog rooted at
// cfg.DataDir.
func NewSession(cfg Config) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		id:      uuid.New(),
		catalog: storage.NewCatalog(cfg.DataDir),
		sink:    cfg.Output,
		log:     cfg.Logger,
	}
}

// ID returns the run identifier used to tag diagnostics.
func (s *Session) ID() uuid.UUID { return s.id }

// Catalog returns the session's catalog.
func (s *Session) Catalog() *storage.Catalog { return s.catalog }

// Current returns the database selected by USE, or nil.
func (s *Session) Current() *storage.Database { return s.current }

// Sink returns the result sink.
func (s *Session) Sink() *ResultSink { return s.sink }

// ExecSQL parses and executes a single statement.
func (s *Session) ExecSQL(ctx context.Context, sql string) error {
	stmt, err := ParseSQL(sql)
	if err != nil {
		return err
	}
	return s.Execute(ctx, stmt)
}

func (s *Session) logf(format string, args ...any) {
	s.log.Printf(format, args...)
}

func (s *Session) requireDB() (*storage.Database, error) {
	if s.current == nil {
		return nil, ErrNoDatabase
	}
	return s.current, nil
}

func (s *Session) table(name string) (*storage.Table, error) {
	db, err := s.requireDB()
	if err != nil {
		return nil, err
	}
	return db.Get(name)
}

func (s *Session) persist(db *storage.Database) error {
	if err := s.catalog.Save(db); err != nil {
		return fmt.Errorf("%w: save database %s: %w", ErrIO, db.Name, err)
	}
	return nil
}
