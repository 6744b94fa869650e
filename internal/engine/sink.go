package engine

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// blockSeparator precedes every result block after the first.
const blockSeparator = "---"

// ResultSink is the append-only destination of SELECT results. Each block is
// a comma-joined header line followed by comma-joined data lines.
type ResultSink struct {
	open   func() (io.WriteCloser, error)
	blocks int
}

// NewFileSink truncates path and returns a sink that reopens it in append
// mode for every block, so the file is closed between statements.
func NewFileSink(path string) (*ResultSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open output %s: %v", ErrIO, path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("%w: close output %s: %v", ErrIO, path, err)
	}
	return &ResultSink{open: func() (io.WriteCloser, error) {
		return os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	}}, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// NewWriterSink returns a sink writing to w. w is never closed.
func NewWriterSink(w io.Writer) *ResultSink {
	return &ResultSink{open: func() (io.WriteCloser, error) { return nopCloser{w}, nil }}
}

// WriteBlock appends one result block.
func (s *ResultSink) WriteBlock(header []string, rows [][]string) (err error) {
	w, err := s.open()
	if err != nil {
		return fmt.Errorf("%w: open output: %v", ErrIO, err)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close output: %v", ErrIO, cerr)
		}
	}()

	bw := bufio.NewWriter(w)
	if s.blocks > 0 {
		bw.WriteString(blockSeparator + "\n")
	}
	bw.WriteString(strings.Join(header, ",") + "\n")
	for _, r := range rows {
		bw.WriteString(strings.Join(r, ",") + "\n")
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: write output: %v", ErrIO, err)
	}
	s.blocks++
	return nil
}

// Blocks reports how many result blocks have been written.
func (s *ResultSink) Blocks() int { return s.blocks }
