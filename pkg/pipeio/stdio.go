package pipeio

import (
	"io"
	"os"

	"github.com/muesli/cancelreader"
)

// Stdio joins a reader and a writer, usually the terminal, into one
// io.ReadWriteCloser. Close interrupts a pending Read where the platform
// can cancel reads on stdin.
type Stdio struct {
	in     io.Reader
	out    io.Writer
	cancel func() bool
}

// NewStdio returns a Stdio over stdin and stdout. Nil arguments default
// to os.Stdin and os.Stdout.
func NewStdio(stdin io.Reader, stdout io.Writer) *Stdio {
	if stdin == nil {
		stdin = os.Stdin
	}
	if stdout == nil {
		stdout = os.Stdout
	}

	s := &Stdio{in: stdin, out: stdout, cancel: func() bool { return false }}
	if cr, err := cancelreader.NewReader(stdin); err == nil {
		s.in = cr
		s.cancel = cr.Cancel
	}
	return s
}

func (s *Stdio) Read(p []byte) (int, error) {
	return s.in.Read(p)
}

func (s *Stdio) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

// Close cancels a pending Read. It never closes the underlying streams.
func (s *Stdio) Close() error {
	s.cancel()
	return nil
}
