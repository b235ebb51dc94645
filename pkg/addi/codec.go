package addi

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// MaxBlockSize bounds a single metadata or content block read from a stream.
const MaxBlockSize = 64 << 20

// Bytes returns the framed form of the envelope.
func (e *Envelope) Bytes() []byte {
	buf := &bytes.Buffer{}
	writeBlock(buf, e.Metadata)
	writeBlock(buf, e.Content)
	return buf.Bytes()
}

func writeBlock(buf *bytes.Buffer, block []byte) {
	buf.WriteString(strconv.Itoa(len(block)))
	buf.WriteByte('\n')
	buf.Write(block)
	buf.WriteByte('\n')
}

// Reader reads framed envelopes from a stream.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next envelope, or io.EOF when the stream is exhausted.
func (r *Reader) Next() (*Envelope, error) {
	meta, err := r.readBlock()
	if err != nil {
		return nil, err
	}
	content, err := r.readBlock()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return &Envelope{Metadata: meta, Content: content}, nil
}

func (r *Reader) readBlock() ([]byte, error) {
	line, err := r.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line == "" {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read addi length: %w", err)
	}
	size, err := strconv.Atoi(line[:len(line)-1])
	if err != nil || size < 0 {
		return nil, fmt.Errorf("invalid addi length %q", line[:len(line)-1])
	}
	if size > MaxBlockSize {
		return nil, fmt.Errorf("addi block of %d bytes exceeds limit of %d", size, MaxBlockSize)
	}
	block := make([]byte, size+1)
	if _, err := io.ReadFull(r.r, block); err != nil {
		return nil, fmt.Errorf("read addi block: %w", err)
	}
	if block[size] != '\n' {
		return nil, fmt.Errorf("addi block not newline terminated")
	}
	return block[:size], nil
}
