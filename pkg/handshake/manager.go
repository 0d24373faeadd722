// Package handshake runs server-side TLS handshakes for accepted raw
// connections. Every handshake runs in its own goroutine under its own
// deadline, so a slow client never holds up other handshakes or the accept
// loop feeding the manager. Finished handshakes queue up in completion
// order until polled.
package handshake

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"dominicbreuker/flexserve/pkg/log"
	"dominicbreuker/flexserve/pkg/metrics"
	"dominicbreuker/flexserve/pkg/semaphore"
	"dominicbreuker/flexserve/pkg/stream"
)

// DefaultTimeout is the handshake deadline used by DefaultOptions.
const DefaultTimeout = 10 * time.Second

// Options configure a Manager.
type Options struct {
	// Timeout bounds each handshake, measured from Submit. Zero or less
	// expires every handshake immediately; the handshake is never run.
	Timeout time.Duration

	// MaxInFlight bounds the number of concurrent handshakes. Zero means
	// unbounded. Submissions over the bound are rejected; use
	// WaitCapacity to apply back-pressure instead.
	MaxInFlight int

	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// DefaultOptions returns a 10s timeout without an in-flight bound.
func DefaultOptions() Options {
	return Options{Timeout: DefaultTimeout}
}

// Manager tracks the in-flight set of handshakes.
type Manager struct {
	cfg   *tls.Config
	opts  Options
	slots *semaphore.Slots

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	ready    []Outcome
	inFlight int
	closed   bool
	notify   chan struct{}

	submitted atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	timedOut  atomic.Uint64
}

// New creates a manager that handshakes with cfg. cfg is shared by all
// handshakes and must not be modified afterwards.
func New(cfg *tls.Config, opts Options) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:    cfg,
		opts:   opts,
		slots:  semaphore.New(opts.MaxInFlight),
		ctx:    ctx,
		cancel: cancel,
		notify: make(chan struct{}, 1),
	}
}

// Submit starts a handshake on conn and returns immediately. The manager
// owns conn from now on. Every accepted submission produces exactly one
// Outcome. Submit only fails once the manager is closed.
func (m *Manager) Submit(conn net.Conn) error {
	addr := conn.RemoteAddr()
	start := time.Now()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	m.submitted.Add(1)
	m.opts.Metrics.HandshakeStarted()

	if m.opts.Timeout <= 0 {
		m.mu.Unlock()
		_ = conn.Close()
		m.finish(Outcome{Result: TimedOut, Addr: addr, Err: ErrTimeout}, start, false)
		return nil
	}

	if !m.slots.TryAcquire() {
		m.mu.Unlock()
		_ = conn.Close()
		m.finish(Outcome{Result: Failed, Addr: addr, Err: ErrTooManyHandshakes}, start, false)
		return nil
	}

	m.inFlight++
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(conn, addr, start)
	return nil
}

// WaitCapacity blocks until a handshake slot is free or ctx is done. With
// a single submitting goroutine, a Submit following a successful
// WaitCapacity is never rejected.
func (m *Manager) WaitCapacity(ctx context.Context) error {
	if err := m.slots.Acquire(ctx); err != nil {
		return err
	}
	m.slots.Release()
	return nil
}

func (m *Manager) run(conn net.Conn, addr net.Addr, start time.Time) {
	defer m.wg.Done()
	defer m.slots.Release()

	m.opts.Logger.VerboseMsg("Starting TLS handshake with %s", addr)

	ctx, cancel := context.WithTimeout(m.ctx, m.opts.Timeout)
	defer cancel()

	tlsConn := tls.Server(conn, m.cfg)
	err := tlsConn.HandshakeContext(ctx)

	switch {
	case err == nil:
		m.finish(Outcome{Result: Succeeded, Stream: stream.NewSecure(tlsConn), Addr: addr}, start, true)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		_ = tlsConn.Close()
		m.finish(Outcome{Result: TimedOut, Addr: addr, Err: ErrTimeout}, start, true)
	case m.ctx.Err() != nil:
		// manager closed underneath us; nobody polls anymore
		_ = tlsConn.Close()
		m.finish(Outcome{Result: Failed, Addr: addr, Err: ErrClosed}, start, true)
	default:
		_ = tlsConn.Close()
		m.finish(Outcome{Result: Failed, Addr: addr, Err: err}, start, true)
	}
}

// finish counts the outcome and queues it for Poll. tracked is set for
// handshakes that were part of the in-flight set.
func (m *Manager) finish(o Outcome, start time.Time, tracked bool) {
	o.Duration = time.Since(start)

	switch o.Result {
	case Succeeded:
		m.succeeded.Add(1)
		m.opts.Metrics.HandshakeDone(metrics.OutcomeSucceeded, o.Duration)
		m.opts.Logger.VerboseMsg("TLS handshake with %s completed after %s", o.Addr, o.Duration)
	case TimedOut:
		m.timedOut.Add(1)
		m.opts.Metrics.HandshakeDone(metrics.OutcomeTimedOut, o.Duration)
		m.opts.Logger.VerboseMsg("TLS handshake with %s timed out after %s", o.Addr, o.Duration)
	default:
		m.failed.Add(1)
		m.opts.Metrics.HandshakeDone(metrics.OutcomeFailed, o.Duration)
		m.opts.Logger.VerboseMsg("TLS handshake with %s failed: %v", o.Addr, o.Err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if tracked {
		m.inFlight--
	}
	if m.closed {
		if o.Stream != nil {
			_ = o.Stream.Close()
		}
		return
	}
	m.ready = append(m.ready, o)
	m.signal()
}

func (m *Manager) signal() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Ready receives a value whenever an outcome is queued, so a single
// consumer can wait for outcomes in a select and fetch them with TryPoll.
func (m *Manager) Ready() <-chan struct{} {
	return m.notify
}

// TryPoll returns the oldest finished outcome without waiting.
func (m *Manager) TryPoll() (Outcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pop()
}

// pop must be called with m.mu held.
func (m *Manager) pop() (Outcome, bool) {
	if len(m.ready) == 0 {
		return Outcome{}, false
	}
	o := m.ready[0]
	m.ready[0] = Outcome{}
	m.ready = m.ready[1:]
	if len(m.ready) > 0 {
		m.signal()
	}
	return o, true
}

// Poll waits for the next finished outcome. Outcomes that finished
// together stay queued for later calls. It returns ErrClosed once the
// manager is closed and drained, or ctx.Err() when ctx is done first.
func (m *Manager) Poll(ctx context.Context) (Outcome, error) {
	for {
		m.mu.Lock()
		if o, ok := m.pop(); ok {
			m.mu.Unlock()
			return o, nil
		}
		closed := m.closed
		m.mu.Unlock()

		if closed {
			return Outcome{}, ErrClosed
		}

		select {
		case <-m.notify:
		case <-m.ctx.Done():
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		}
	}
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	inFlight, queued := m.inFlight, len(m.ready)
	m.mu.Unlock()

	return Stats{
		Submitted: m.submitted.Load(),
		Succeeded: m.succeeded.Load(),
		Failed:    m.failed.Load(),
		TimedOut:  m.timedOut.Load(),
		InFlight:  inFlight,
		Queued:    queued,
	}
}

// Close aborts all running handshakes, closing their connections, and
// closes the streams of successful handshakes nobody polled yet.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.ready {
		if o.Stream != nil {
			_ = o.Stream.Close()
		}
	}
	m.ready = nil
	return nil
}
