package engine

import (
	"errors"

	"github.com/minidb/minidb/internal/storage"
)

// Error kinds. Every statement failure wraps exactly one of these so callers
// can classify it with errors.Is.
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrNoDatabase     = errors.New("no database selected")
	ErrNotFound       = storage.ErrNotFound
	ErrDuplicate      = storage.ErrExists
	ErrMalformed      = errors.New("malformed")
	ErrIO             = errors.New("i/o error")
)
