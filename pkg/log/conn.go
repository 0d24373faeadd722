package log

import (
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"
)

// Transcript is an append-only record of the traffic of many connections.
// Entries of concurrent connections are written whole, one per line.
type Transcript struct {
	w  io.Writer
	c  io.Closer
	mu sync.Mutex
}

// OpenTranscript creates or appends to the transcript file at path.
func OpenTranscript(path string) (*Transcript, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening transcript %s: %w", path, err)
	}
	return &Transcript{w: f, c: f}, nil
}

// NewTranscript records to w. Close does not close w.
func NewTranscript(w io.Writer) *Transcript {
	return &Transcript{w: w}
}

// Close closes the underlying file, if the transcript owns one.
func (t *Transcript) Close() error {
	if t.c == nil {
		return nil
	}
	return t.c.Close()
}

func (t *Transcript) record(id, dir string, b []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := fmt.Fprintf(t.w, "%s %s %s %q\n", time.Now().UTC().Format(time.RFC3339Nano), id, dir, b)
	return err
}

// Wrap returns a net.Conn that records all data read from and written
// to conn under the given connection id.
func (t *Transcript) Wrap(conn net.Conn, id string) net.Conn {
	return &loggedConn{Conn: conn, t: t, id: id}
}

// loggedConn records reads and writes of a net.Conn into a Transcript.
type loggedConn struct {
	net.Conn
	t  *Transcript
	id string
}

func (lc *loggedConn) Read(b []byte) (int, error) {
	n, err := lc.Conn.Read(b)
	if n > 0 {
		if lerr := lc.t.record(lc.id, "<", b[:n]); lerr != nil {
			return n, fmt.Errorf("recording read: %w", lerr)
		}
	}
	return n, err
}

func (lc *loggedConn) Write(b []byte) (int, error) {
	n, err := lc.Conn.Write(b)
	if n > 0 {
		if lerr := lc.t.record(lc.id, ">", b[:n]); lerr != nil {
			return n, fmt.Errorf("recording write: %w", lerr)
		}
	}
	return n, err
}
