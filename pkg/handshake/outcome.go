package handshake

import (
	"errors"
	"fmt"
	"net"
	"time"

	"dominicbreuker/flexserve/pkg/stream"
)

var (
	// ErrClosed is returned by Submit and Poll once the manager is closed.
	ErrClosed = errors.New("handshake manager closed")

	// ErrTimeout is the error of a TimedOut outcome.
	ErrTimeout = errors.New("handshake timed out")

	// ErrTooManyHandshakes is the error of a submission rejected because
	// the in-flight bound was reached.
	ErrTooManyHandshakes = errors.New("too many handshakes in flight")
)

// Result classifies how a handshake ended.
type Result int

const (
	// Succeeded means Outcome.Stream is a usable secure stream.
	Succeeded Result = iota
	// Failed means TLS negotiation failed or the submission was rejected.
	Failed
	// TimedOut means the deadline expired before the handshake finished.
	TimedOut
)

func (r Result) String() string {
	switch r {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Outcome reports one finished handshake. The connection of a Failed or
// TimedOut outcome has already been closed; the Stream of a Succeeded one
// now belongs to whoever polled it.
type Outcome struct {
	Result   Result
	Stream   *stream.Stream
	Addr     net.Addr
	Err      error
	Duration time.Duration
}

// Stats are cumulative counters of a manager.
type Stats struct {
	Submitted uint64
	Succeeded uint64
	Failed    uint64
	TimedOut  uint64
	InFlight  int
	Queued    int
}
