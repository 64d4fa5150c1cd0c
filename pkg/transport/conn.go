package transport

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/mikrotik-fleet/routerproxy/pkg/wire"
)

// ErrClosed is returned by ReadSentence/WriteSentence after Close.
var ErrClosed = errors.New("transport: connection closed")

// defaultReadBufSize is the chunk size read from the socket on each read
// in ReadSentence.
const defaultReadBufSize = 4096

// Conn wraps a net.Conn with sentence-level framing. It is not safe for
// concurrent ReadSentence calls, nor for concurrent WriteSentence calls;
// callers serialize reads and writes independently (pkg/upstream does this
// with its serializing lock, pkg/listener with one goroutine per
// connection).
type Conn struct {
	nc      net.Conn
	r       *bufio.Reader
	dec     *wire.SentenceDecoder
	readBuf []byte
	closed  bool
}

// NewConn wraps an established net.Conn for sentence-level I/O.
func NewConn(nc net.Conn) *Conn {
	return &Conn{
		nc:      nc,
		r:       bufio.NewReader(nc),
		dec:     wire.NewSentenceDecoder(),
		readBuf: make([]byte, defaultReadBufSize),
	}
}

// RemoteAddr returns the underlying connection's remote address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// SetDeadline sets both read and write deadlines on the underlying socket.
func (c *Conn) SetDeadline(t time.Time) error {
	return c.nc.SetDeadline(t)
}

// ReadSentence blocks until a complete sentence has been read from the
// socket, reading and decoding as many chunks as necessary. A non-nil
// error (other than io.EOF) indicates a fatal framing or I/O error; the
// connection must be closed by the caller.
func (c *Conn) ReadSentence() (wire.Sentence, error) {
	if c.closed {
		return nil, ErrClosed
	}
	for {
		sentence, ok, err := c.dec.Next()
		if err != nil {
			return nil, fmt.Errorf("transport: framing error: %w", err)
		}
		if ok {
			return sentence, nil
		}

		n, err := c.r.Read(c.readBuf)
		if n > 0 {
			c.dec.Write(c.readBuf[:n])
		}
		if err != nil {
			return nil, err
		}
	}
}

// WriteSentence encodes and writes a complete sentence to the socket.
func (c *Conn) WriteSentence(s wire.Sentence) error {
	if c.closed {
		return ErrClosed
	}
	_, err := c.nc.Write(wire.EncodeSentence(s))
	return err
}

// Close closes the underlying socket. Safe to call more than once.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.nc.Close()
}
