package worker

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/phargogh/taskgraph/internal/core/domain"
)

func init() {
	gob.Register(domain.ScalarValue{})
	gob.Register(domain.SeqValue{})
	gob.Register(domain.MapValue{})
	gob.Register(domain.PathValue{})
}

// WorkUnit is what the parent process sends a child worker: which
// registered function to call and its normalized arguments. The frames are
// gob: the protocol never leaves the host's own process tree or Go
// version, so a cross-language wire format would buy nothing.
type WorkUnit struct {
	FuncName string
	Args     domain.Value
	Kwargs   domain.Value
}

// WorkResult is what a child worker sends back. Err is the empty string on
// success; a non-empty Err carries the user function's error message
// (Go has no portable way to gob-encode an arbitrary error value, so the
// message crosses the wire as a string and is re-wrapped by the caller).
type WorkResult struct {
	Err string
}

const maxFrameLen = 64 * 1024 * 1024

// WriteFrame gob-encodes v and writes it as a 4-byte big-endian
// length-prefixed frame.
func WriteFrame(w io.Writer, v any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return err
	}

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(buf.Len()))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// ReadFrame reads one length-prefixed frame from r and gob-decodes it into
// v.
func ReadFrame(r io.Reader, v any) error {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return err
	}

	n := binary.BigEndian.Uint32(lenPrefix[:])
	if n > maxFrameLen {
		return fmt.Errorf("worker: frame of %d bytes exceeds %d byte limit", n, maxFrameLen)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	return gob.NewDecoder(bytes.NewReader(buf)).Decode(v)
}
