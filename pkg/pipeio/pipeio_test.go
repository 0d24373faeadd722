package pipeio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"
)

func TestPipe_BidirectionalCopy(t *testing.T) {
	t.Parallel()

	// a1 <-> a2 piped to b1 <-> b2
	a1, a2 := net.Pipe()
	b1, b2 := net.Pipe()

	done := make(chan struct{})
	go func() {
		Pipe(context.Background(), a2, b1, func(err error) {})
		close(done)
	}()

	go func() { _, _ = a1.Write([]byte("to b")) }()
	buf := make([]byte, 4)
	if _, err := io.ReadFull(b2, buf); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	if string(buf) != "to b" {
		t.Errorf("b2 got %q", buf)
	}

	go func() { _, _ = b2.Write([]byte("to a")) }()
	if _, err := io.ReadFull(a1, buf); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	if string(buf) != "to a" {
		t.Errorf("a1 got %q", buf)
	}

	a1.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Pipe() did not return after one side closed")
	}

	// the other side must have been closed by Pipe
	if _, err := b2.Read(buf); err == nil {
		t.Error("b2 still readable after Pipe returned")
	}
}

func TestPipe_ContextCancel(t *testing.T) {
	t.Parallel()

	a1, a2 := net.Pipe()
	defer a1.Close()
	b1, b2 := net.Pipe()
	defer b2.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Pipe(ctx, a2, b1, func(err error) {})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Pipe() did not return after cancel")
	}
}

// failingRWC fails every read with err.
type failingRWC struct {
	err    error
	mu     sync.Mutex
	closed bool
}

func (f *failingRWC) Read([]byte) (int, error)    { return 0, f.err }
func (f *failingRWC) Write(p []byte) (int, error) { return len(p), nil }
func (f *failingRWC) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestPipe_LogsErrors(t *testing.T) {
	t.Parallel()

	errBroken := errors.New("broken")
	f := &failingRWC{err: errBroken}
	a1, a2 := net.Pipe()
	defer a1.Close()

	var logged []error
	var mu sync.Mutex
	Pipe(context.Background(), f, a2, func(err error) {
		mu.Lock()
		defer mu.Unlock()
		logged = append(logged, err)
	})

	mu.Lock()
	defer mu.Unlock()
	if len(logged) != 1 || !errors.Is(logged[0], errBroken) {
		t.Errorf("logged = %v, want one %v", logged, errBroken)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		t.Error("failing side was not closed")
	}
}

func TestStdio(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	s := NewStdio(bytes.NewReader([]byte("input")), &out)

	buf := make([]byte, 16)
	n, err := s.Read(buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(buf[:n]) != "input" {
		t.Errorf("Read() = %q", buf[:n])
	}

	if _, err := s.Write([]byte("output")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if out.String() != "output" {
		t.Errorf("stdout = %q", out.String())
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewStdio_Defaults(t *testing.T) {
	t.Parallel()

	s := NewStdio(nil, nil)
	if s.in == nil || s.out == nil || s.cancel == nil {
		t.Error("NewStdio(nil, nil) left stdin or stdout unset")
	}
}
