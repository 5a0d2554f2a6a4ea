package sidecar

import (
	"bufio"
	"bytes"
	"io"
)

const framerInitialBufferSize = 64 * 1024

// lineFramer splits an arbitrarily chunked byte stream into complete
// lines. A read chunk may contain zero, one, or many newlines; bytes
// of a partial line are carried over until the newline arrives.
type lineFramer struct {
	scanner *bufio.Scanner
}

// newLineFramer creates a framer over r. maxLineBytes bounds the size
// of a single line; longer lines surface bufio.ErrTooLong. Simulation
// results are large, so the bound is configurable.
func newLineFramer(r io.Reader, maxLineBytes int) *lineFramer {
	// the scanner treats the larger of cap(buf) and max as its limit,
	// so the initial buffer must not exceed maxLineBytes
	initial := framerInitialBufferSize
	if maxLineBytes > 0 && maxLineBytes < initial {
		initial = maxLineBytes
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initial), maxLineBytes)

	return &lineFramer{scanner: scanner}
}

// next returns the next non-blank line, with surrounding whitespace
// trimmed. It returns io.EOF when the stream ends, and the underlying
// read or scan error otherwise. The returned slice is only valid
// until the next call.
func (f *lineFramer) next() ([]byte, error) {
	for f.scanner.Scan() {
		line := bytes.TrimSpace(f.scanner.Bytes())
		if len(line) == 0 {
			// the engine may emit blank lines between payloads
			continue
		}

		return line, nil
	}

	if err := f.scanner.Err(); err != nil {
		return nil, err
	}

	return nil, io.EOF
}
