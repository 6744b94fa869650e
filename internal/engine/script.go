package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// maxLineSize bounds a single script line.
const maxLineSize = 4 << 20

// Stats summarizes one script run.
type Stats struct {
	RunID      string
	Statements int
	Failed     int
	Results    int
}

// Run executes every ';'-terminated statement of script in order. A failing
// statement is logged with its line number and text, and the run continues.
// Statements may span lines and several may share one line. Lines starting
// with "--" are skipped while no statement is pending.
//
// Only a read error or ctx cancellation ends the run early.
func (s *Session) Run(ctx context.Context, script io.Reader) (Stats, error) {
	st := Stats{RunID: s.id.String()}
	firstBlock := s.sink.Blocks()
	s.logf("run %s: start (data dir %s)", s.id, s.catalog.Dir())

	dec := transform.NewReader(script, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var pending strings.Builder
	add := func(frag string) {
		if strings.TrimSpace(frag) == "" {
			return
		}
		if pending.Len() > 0 {
			pending.WriteByte(' ')
		}
		pending.WriteString(frag)
	}

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if pending.Len() == 0 && strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		for {
			i := strings.IndexByte(line, ';')
			if i < 0 {
				break
			}
			add(line[:i])
			line = line[i+1:]
			stmt := strings.TrimSpace(pending.String())
			pending.Reset()
			if stmt == "" {
				continue
			}
			if err := checkCtx(ctx); err != nil {
				return s.finish(st, firstBlock), err
			}
			st.Statements++
			if err := s.ExecSQL(ctx, stmt); err != nil {
				st.Failed++
				s.logf("line %d: %v", lineNo, err)
				s.logf("command: %s", stmt)
			}
		}
		add(line)
	}
	if err := sc.Err(); err != nil {
		st = s.finish(st, firstBlock)
		return st, fmt.Errorf("%w: read script: %v", ErrIO, err)
	}
	if rest := strings.TrimSpace(pending.String()); rest != "" {
		st.Statements++
		st.Failed++
		s.logf("line %d: %v: statement is missing its terminating ';'", lineNo, ErrMalformed)
		s.logf("command: %s", rest)
	}
	return s.finish(st, firstBlock), nil
}

func (s *Session) finish(st Stats, firstBlock int) Stats {
	st.Results = s.sink.Blocks() - firstBlock
	s.logf("run %s: %d statements, %d failed, %d result blocks", s.id, st.Statements, st.Failed, st.Results)
	return st
}
