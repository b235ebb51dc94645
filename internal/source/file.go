package source

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nucleus/harvest-core/pkg/harvest"
)

// MaxLineLength bounds a single record id line. Longer lines are yielded as
// holes.
const MaxLineLength = 1024 * 1024

// FileEnumerator iterates over a line oriented file of record ids. It is
// forward only; reopen the file to start over.
type FileEnumerator struct {
	reader *bufio.Reader
	closer io.Closer
	eof    bool

	current *harvest.RecordRef
	line    string
	lineNo  int
	err     error
}

// NewFileEnumerator reads record ids from r. Closing the enumerator closes r
// when it implements io.Closer.
func NewFileEnumerator(r io.Reader) *FileEnumerator {
	e := &FileEnumerator{reader: bufio.NewReaderSize(r, 64*1024)}
	if c, ok := r.(io.Closer); ok {
		e.closer = c
	}
	return e
}

// OpenFile opens path for enumeration.
func OpenFile(path string) (*FileEnumerator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open record id file: %w", err)
	}
	return NewFileEnumerator(f), nil
}

// Next advances to the next non-blank line.
func (e *FileEnumerator) Next() bool {
	for !e.eof {
		raw, tooLong, err := e.readLine()
		if err != nil {
			e.err = fmt.Errorf("read record id file at line %d: %w", e.lineNo+1, err)
			break
		}
		if raw == nil && e.eof {
			break
		}
		e.lineNo++
		if tooLong {
			e.line = string(raw[:min(len(raw), 64)]) + "..."
			e.current = nil
			return true
		}
		line := strings.TrimSpace(string(raw))
		if line == "" {
			continue
		}
		e.line = line
		ref, err := harvest.ParseRecordRef(line)
		if err != nil {
			e.current = nil
		} else {
			e.current = &ref
		}
		return true
	}
	e.current = nil
	return false
}

// readLine returns the next line without its terminator. Bytes past
// MaxLineLength are discarded and tooLong is set. A nil line with e.eof set
// means the input is exhausted.
func (e *FileEnumerator) readLine() (line []byte, tooLong bool, err error) {
	for {
		chunk, err := e.reader.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > MaxLineLength+1 {
				tooLong = true
				line = append(line, chunk[:min(len(chunk), 64)]...)
			} else {
				line = append(line, chunk...)
			}
		}
		switch {
		case err == nil:
			return trimEOL(line, tooLong), tooLong, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			e.eof = true
			if len(line) == 0 {
				return nil, false, nil
			}
			return trimEOL(line, tooLong), tooLong, nil
		default:
			return nil, false, err
		}
	}
}

func trimEOL(line []byte, tooLong bool) []byte {
	if tooLong {
		return line
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r"))
}

// Value returns the current ref, or nil when the current line is malformed.
func (e *FileEnumerator) Value() *harvest.RecordRef { return e.current }

// Line returns the raw text of the current line.
func (e *FileEnumerator) Line() string { return e.line }

// LineNumber returns the 1-based number of the current line.
func (e *FileEnumerator) LineNumber() int { return e.lineNo }

// Err returns the first read error.
func (e *FileEnumerator) Err() error { return e.err }

// Close releases the underlying file.
func (e *FileEnumerator) Close() error {
	if e.closer == nil {
		return nil
	}
	err := e.closer.Close()
	e.closer = nil
	return err
}
