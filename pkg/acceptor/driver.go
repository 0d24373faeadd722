package acceptor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"dominicbreuker/flexserve/pkg/log"
	"dominicbreuker/flexserve/pkg/metrics"
	"dominicbreuker/flexserve/pkg/stream"

	"github.com/google/uuid"
)

// Handler drives the application protocol over one accepted stream. ctx is
// cancelled, and the stream closed, when the acceptor force-closes live
// connections. The stream is closed after Handler returns.
type Handler func(ctx context.Context, s *stream.Stream) error

type connIDKey struct{}

// ConnID returns the id the driver assigned to the connection whose
// handler received ctx.
func ConnID(ctx context.Context) string {
	id, _ := ctx.Value(connIDKey{}).(string)
	return id
}

// ErrorSink receives per-connection failures. It may be called from the
// accept loop and from connection goroutines, so it must be safe for
// concurrent use and return quickly.
type ErrorSink func(err error)

// LogSink returns an ErrorSink that logs errors to l. Handshake timeouts
// are routine and only show up in verbose mode.
func LogSink(l *log.Logger) ErrorSink {
	return func(err error) {
		if errors.Is(err, ErrHandshakeTimeout) {
			l.VerboseMsg("%s", err)
			return
		}
		l.ErrorMsg("%s", err)
	}
}

// driver runs every accepted connection in its own goroutine and keeps
// track of the live ones for shutdown.
type driver struct {
	logger  *log.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	live map[string]*stream.Stream
}

func newDriver(logger *log.Logger, m *metrics.Metrics) *driver {
	ctx, cancel := context.WithCancel(context.Background())
	return &driver{
		logger:  logger,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
		live:    make(map[string]*stream.Stream),
	}
}

// spawn starts driving s and returns its connection id without waiting.
func (d *driver) spawn(s *stream.Stream, h Handler, sink ErrorSink) string {
	id := uuid.New().String()

	d.mu.Lock()
	d.live[id] = s
	d.wg.Add(1)
	d.mu.Unlock()

	d.metrics.ConnectionOpened(s.Kind().String())
	go d.drive(id, s, h, sink)
	return id
}

func (d *driver) drive(id string, s *stream.Stream, h Handler, sink ErrorSink) {
	defer d.wg.Done()
	defer d.metrics.ConnectionClosed()
	defer func() {
		d.mu.Lock()
		delete(d.live, id)
		d.mu.Unlock()
	}()
	defer s.Close()

	addr := s.RemoteAddr()
	d.logger.VerboseMsg("Driving %s connection %s from %s", s.Kind(), id, addr)
	defer d.logger.VerboseMsg("Connection %s from %s closed", id, addr)

	ctx, cancel := context.WithCancel(context.WithValue(d.ctx, connIDKey{}, id))
	defer cancel()
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	if err := d.run(ctx, s, h); err != nil {
		sink(&Error{Kind: ErrProtocol, Addr: addr, ConnID: id, Err: err})
	}
}

// run calls the handler and turns a panic into an error.
func (d *driver) run(ctx context.Context, s *stream.Stream, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.VerboseMsg("Handler panic: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, s)
}

// active returns the number of live connections.
func (d *driver) active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

// shutdown waits for live connections to finish. After timeout it cancels
// their contexts, which closes their streams, and returns ErrShutdownTimeout.
func (d *driver) shutdown(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
	}

	d.logger.WarnMsg("Shutdown timeout exceeded, closing %d connections", d.active())
	d.cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
	}
	return ErrShutdownTimeout
}
