package callconv

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"go.uber.org/zap"
)

// maxLineSize bounds a single disassembly line read by PatchStream.
const maxLineSize = 16 * 1024 * 1024

// Patcher inserts the calling-convention modifier into marked scopes of a
// textual disassembly. A Patcher is stateless between calls and safe for
// concurrent use.
type Patcher struct {
	dialect Dialect
}

// New creates a Patcher for the dialect. Empty dialect fields fall back to
// DefaultDialect.
func New(d Dialect) *Patcher {
	return &Patcher{dialect: d.withDefaults()}
}

// Dialect returns the effective dialect.
func (p *Patcher) Dialect() Dialect {
	return p.dialect
}

// Patch rewrites lines and returns the result with the number of modifier
// lines inserted. Lines outside a marked scope are returned unchanged and
// in order.
func (p *Patcher) Patch(lines []string) ([]string, int) {
	out := make([]string, 0, len(lines)+4)
	s := newScanner(p.dialect, func(line string) {
		out = append(out, line)
	})
	for _, line := range lines {
		s.feed(line)
	}
	s.finish()
	return out, s.inserted
}

// PatchStream reads lines from r and writes the patched text to w. Line
// terminators ("\n" or "\r\n") are written back as read, including a
// missing final one; inserted modifier lines reuse the most recent
// terminator. It returns the number of modifier lines inserted.
func (p *Patcher) PatchStream(r io.Reader, w io.Writer) (int, error) {
	bw := bufio.NewWriter(w)
	s := newScanner(p.dialect, func(line string) {
		bw.WriteString(line)
	})
	s.eol = "\n"

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	sc.Split(scanRawLines)
	for sc.Scan() {
		s.feed(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return s.inserted, err
	}
	s.finish()
	return s.inserted, bw.Flush()
}

// scanRawLines is bufio.ScanLines without stripping the terminator.
func scanRawLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i+1], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// lineEnding returns the terminator line ends with, or "".
func lineEnding(line string) string {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return "\r\n"
	case strings.HasSuffix(line, "\n"):
		return "\n"
	}
	return ""
}

type frameKind uint8

const (
	frameType frameKind = iota
	frameMethod
)

// frame is one open scope: a type or a method body. Type frames buffer
// lines until they can be emitted; method frames hold their header back
// until they know whether the marker precedes it.
type frame struct {
	header  string
	pending []string
	kind    frameKind
	marked  bool
	patched bool
}

type scanner struct {
	emit     func(string)
	stack    []*frame
	dialect  Dialect
	eol      string // appended to inserted lines
	lineNo   int
	inserted int
}

func newScanner(d Dialect, emit func(string)) *scanner {
	return &scanner{dialect: d, emit: emit}
}

func (s *scanner) top() *frame {
	return s.stack[len(s.stack)-1]
}

func (s *scanner) push(f *frame) {
	s.stack = append(s.stack, f)
}

func (s *scanner) pop() {
	s.stack = s.stack[:len(s.stack)-1]
}

func (s *scanner) flush(f *frame) {
	for _, line := range f.pending {
		s.emit(line)
	}
	f.pending = f.pending[:0]
}

func (s *scanner) insert() {
	s.emit(s.dialect.Modifier + s.eol)
	s.inserted++
	Logger().Debug("inserted calling convention modifier", zap.Int("line", s.lineNo))
}

func (s *scanner) feed(line string) {
	s.lineNo++
	if e := lineEnding(line); e != "" {
		s.eol = e
	}
	trimmed := strings.TrimSpace(line)
	d := s.dialect

	if len(s.stack) == 0 {
		s.emit(line)
		if strings.HasPrefix(trimmed, d.TypeOpen) {
			s.push(&frame{kind: frameType})
		}
		return
	}

	f := s.top()
	if f.kind == frameMethod {
		switch {
		case strings.HasPrefix(trimmed, d.Marker):
			s.emit(f.header)
			s.insert()
			s.flush(f)
			s.emit(line)
			s.pop()
		case strings.HasPrefix(trimmed, d.MethodClose):
			s.emit(f.header)
			s.flush(f)
			s.emit(line)
			s.pop()
		default:
			f.pending = append(f.pending, line)
		}
		return
	}

	switch {
	case strings.HasPrefix(trimmed, d.TypeOpen):
		s.flush(f)
		s.emit(line)
		s.push(&frame{kind: frameType})
	case strings.HasPrefix(trimmed, d.Marker):
		f.marked = true
		f.pending = append(f.pending, line)
	case !f.marked && strings.HasPrefix(trimmed, d.MethodOpen):
		s.flush(f)
		s.push(&frame{kind: frameMethod, header: line})
	case strings.HasPrefix(trimmed, d.TypeClose):
		s.flush(f)
		s.emit(line)
		s.pop()
	case f.marked && !f.patched && strings.HasPrefix(trimmed, d.Trampoline):
		s.flush(f)
		s.insert()
		s.emit(line)
		f.patched = true
	default:
		f.pending = append(f.pending, line)
	}
}

// finish emits every open frame verbatim, innermost last, so truncated
// input loses nothing.
func (s *scanner) finish() {
	for _, f := range s.stack {
		if f.kind == frameMethod {
			s.emit(f.header)
		}
		s.flush(f)
	}
	s.stack = nil
}
