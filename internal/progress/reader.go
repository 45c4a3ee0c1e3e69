package progress

import (
	"bytes"
	"errors"
	"io"
)

// ChunkSize is the number of bytes requested from the underlying reader per read.
const ChunkSize = 1024

// LineReader yields lines from a byte stream where any run of '\r' or '\n'
// ends a line. Empty lines are never produced. The output is independent of
// how the underlying reader splits its data.
//
// bufio.Scanner is not used because its token limit fails on long redraw
// sequences that never contain a newline.
type LineReader struct {
	src  io.Reader
	buf  []byte
	next [][]byte
	err  error
}

// NewLineReader wraps src.
func NewLineReader(src io.Reader) *LineReader {
	return &LineReader{src: src}
}

// ReadLine returns the next line without its terminator. At end of stream it
// returns any non-empty partial line first, then io.EOF. Read errors other
// than io.EOF are returned once buffered lines are exhausted.
func (r *LineReader) ReadLine() (string, error) {
	for {
		if len(r.next) > 0 {
			line := r.next[0]
			r.next = r.next[1:]
			return string(line), nil
		}
		if r.err != nil {
			if len(r.buf) > 0 {
				line := r.buf
				r.buf = nil
				return string(line), nil
			}
			return "", r.err
		}
		r.fill()
	}
}

func (r *LineReader) fill() {
	chunk := make([]byte, ChunkSize)
	n, err := r.src.Read(chunk)
	if n > 0 {
		r.buf = append(r.buf, chunk[:n]...)
		r.split()
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.EOF
		}
		r.err = err
	}
}

// split moves every terminated line out of buf, leaving the unterminated tail.
func (r *LineReader) split() {
	for {
		idx := bytes.IndexAny(r.buf, "\r\n")
		if idx < 0 {
			return
		}
		if idx > 0 {
			line := make([]byte, idx)
			copy(line, r.buf[:idx])
			r.next = append(r.next, line)
		}
		end := idx
		for end < len(r.buf) && (r.buf[end] == '\r' || r.buf[end] == '\n') {
			end++
		}
		r.buf = r.buf[end:]
	}
}

// Each calls fn for every line in src until EOF or a read error.
func Each(src io.Reader, fn func(line string)) error {
	reader := NewLineReader(src)
	for {
		line, err := reader.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		fn(line)
	}
}
