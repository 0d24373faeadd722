// Package acceptor accepts connections on one listening socket and hands
// them to a protocol handler as *stream.Stream values, either as they are
// (Plain mode) or after a TLS handshake (Secure mode).
//
// In Secure mode a dedicated goroutine owns the socket and keeps taking
// raw connections off it, submitting each to a handshake.Manager. Accept
// only waits for finished handshakes, so a slow or silent client never
// delays other clients. Every connection that becomes usable is driven by
// its own goroutine; Accept returns its peer address right away.
package acceptor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"dominicbreuker/flexserve/pkg/handshake"
	"dominicbreuker/flexserve/pkg/stream"

	"golang.org/x/sync/errgroup"
)

// acceptErrBuffer is how many raw accept errors are kept for Accept to
// report. Further errors are logged and dropped so the socket keeps being
// drained.
const acceptErrBuffer = 16

// Acceptor owns a listening socket.
type Acceptor struct {
	l      net.Listener
	cfg    Config
	driver *driver

	// Secure mode only.
	hs         *handshake.Manager
	pumpOnce   sync.Once
	pumpDone   chan struct{}
	acceptErrs chan error

	closeOnce sync.Once
	closed    chan struct{}

	mu        sync.Mutex
	listenErr error
}

// New creates an acceptor on l. It takes ownership of l.
func New(l net.Listener, cfg Config) (*Acceptor, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid acceptor config: %w", errors.Join(errs...))
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.ErrorSink == nil {
		cfg.ErrorSink = LogSink(cfg.Logger)
	}

	a := &Acceptor{
		l:      l,
		cfg:    cfg,
		driver: newDriver(cfg.Logger, cfg.Metrics),
		closed: make(chan struct{}),
	}

	if cfg.Mode == Secure {
		a.hs = handshake.New(cfg.TLSConfig, handshake.Options{
			Timeout:     cfg.HandshakeTimeout,
			MaxInFlight: cfg.MaxHandshakes,
			Logger:      cfg.Logger,
			Metrics:     cfg.Metrics,
		})
		a.pumpDone = make(chan struct{})
		a.acceptErrs = make(chan error, acceptErrBuffer)
	}

	return a, nil
}

// Addr returns the listener's address.
func (a *Acceptor) Addr() net.Addr {
	return a.l.Addr()
}

// Mode returns the transport mode.
func (a *Acceptor) Mode() Mode {
	return a.cfg.Mode
}

// HandshakeStats returns the handshake counters. It is zero in Plain mode.
func (a *Acceptor) HandshakeStats() handshake.Stats {
	if a.hs == nil {
		return handshake.Stats{}
	}
	return a.hs.Stats()
}

// ActiveConnections returns the number of connections currently driven.
func (a *Acceptor) ActiveConnections() int {
	return a.driver.active()
}

// Accept waits for the next usable connection, starts driving it with h
// in a new goroutine and returns the peer address without waiting for h.
// Errors of the spawned connection go to Config.ErrorSink.
//
// A returned *Error concerns a single connection attempt and the caller
// should simply call Accept again. ErrClosed means the acceptor or its
// listener is gone. In Plain mode a cancelled ctx only interrupts a
// waiting Accept if the listener supports SetDeadline, as TCP listeners do.
func (a *Acceptor) Accept(ctx context.Context, h Handler) (net.Addr, error) {
	return a.accept(ctx, h, a.cfg.ErrorSink)
}

func (a *Acceptor) accept(ctx context.Context, h Handler, sink ErrorSink) (net.Addr, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		s   *stream.Stream
		err error
	)
	if a.cfg.Mode == Secure {
		s, err = a.acceptSecure(ctx)
	} else {
		s, err = a.acceptPlain(ctx)
	}
	if err != nil {
		return nil, err
	}

	addr := s.RemoteAddr()
	a.driver.spawn(s, h, a.countingSink(sink))
	return addr, nil
}

// deadliner is implemented by *net.TCPListener and *net.UnixListener.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// interruptOnCancel makes a pending Accept on dl fail once ctx is done.
// The returned func undoes it. When it returns, dl has no deadline left,
// even if the cancellation raced with its call.
func interruptOnCancel(ctx context.Context, dl deadliner) func() {
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(fired)
		_ = dl.SetDeadline(time.Unix(1, 0))
	})

	return func() {
		if !stop() {
			<-fired
			_ = dl.SetDeadline(time.Time{})
		}
	}
}

func (a *Acceptor) acceptPlain(ctx context.Context) (*stream.Stream, error) {
	if dl, ok := a.l.(deadliner); ok && ctx.Done() != nil {
		defer interruptOnCancel(ctx, dl)()
	}

	conn, err := a.l.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if a.listenerGone(err) {
			return nil, a.closedErr()
		}
		a.cfg.Metrics.AcceptError()
		return nil, &Error{Kind: ErrTransportAccept, Err: err}
	}

	return stream.NewPlain(conn), nil
}

func (a *Acceptor) acceptSecure(ctx context.Context) (*stream.Stream, error) {
	a.pumpOnce.Do(func() { go a.pump() })

	for {
		if o, ok := a.hs.TryPoll(); ok {
			s, err := a.outcome(o)
			if s != nil || err != nil {
				return s, err
			}
			continue
		}

		select {
		case err := <-a.acceptErrs:
			return nil, &Error{Kind: ErrTransportAccept, Err: err}
		case <-a.hs.Ready():
		case <-a.pumpDone:
			return nil, a.closedErr()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// outcome turns a handshake outcome into a stream, an error, or neither
// when the outcome is dropped.
func (a *Acceptor) outcome(o handshake.Outcome) (*stream.Stream, error) {
	switch o.Result {
	case handshake.Succeeded:
		return o.Stream, nil

	case handshake.TimedOut:
		if a.cfg.ReportHandshakeTimeouts {
			return nil, &Error{Kind: ErrHandshakeTimeout, Addr: o.Addr, Err: o.Err}
		}
		return nil, nil

	default:
		if errors.Is(o.Err, handshake.ErrClosed) {
			return nil, nil
		}
		if a.cfg.IgnoreHandshakeErrors {
			a.cfg.Logger.VerboseMsg("Dropping failed handshake with %s: %v", o.Addr, o.Err)
			return nil, nil
		}
		return nil, &Error{Kind: ErrHandshake, Addr: o.Addr, Err: o.Err}
	}
}

// pump owns the socket in Secure mode. It takes raw connections off the
// socket as fast as they come, bounded only by MaxHandshakes, and never
// waits for a handshake.
func (a *Acceptor) pump() {
	defer close(a.pumpDone)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-a.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	var bo backoff
	for {
		if err := a.hs.WaitCapacity(ctx); err != nil {
			return
		}

		conn, err := a.l.Accept()
		if err != nil {
			if a.listenerGone(err) {
				return
			}
			a.cfg.Metrics.AcceptError()
			select {
			case a.acceptErrs <- err:
			default:
				a.cfg.Logger.VerboseMsg("Dropping accept error: %v", err)
			}

			select {
			case <-time.After(bo.next()):
			case <-a.closed:
				return
			}
			continue
		}
		bo.reset()

		if err := a.hs.Submit(conn); err != nil {
			return
		}
	}
}

// listenerGone reports whether err means the listener will never accept
// again. It remembers the cause if the acceptor was not closed by Close.
func (a *Acceptor) listenerGone(err error) bool {
	select {
	case <-a.closed:
		return true
	default:
	}

	if !errors.Is(err, net.ErrClosed) {
		return false
	}

	a.mu.Lock()
	if a.listenErr == nil {
		a.listenErr = err
	}
	a.mu.Unlock()
	return true
}

func (a *Acceptor) closedErr() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listenErr != nil {
		return fmt.Errorf("%w: %w", ErrClosed, a.listenErr)
	}
	return ErrClosed
}

// countingSink wraps sink so every reported error is counted.
func (a *Acceptor) countingSink(sink ErrorSink) ErrorSink {
	return func(err error) {
		a.cfg.Metrics.ConnectionError(kindLabel(err))
		sink(err)
	}
}

// Serve accepts connections until ctx is cancelled or the listener fails,
// then closes the acceptor and waits up to Config.ShutdownTimeout for live
// connections to finish. Per-connection errors go to sink, or to
// Config.ErrorSink if sink is nil. It returns nil after a cancellation or
// Close, the listener error if the socket broke, or ErrShutdownTimeout.
func (a *Acceptor) Serve(ctx context.Context, h Handler, sink ErrorSink) error {
	if sink == nil {
		sink = a.cfg.ErrorSink
	}
	report := a.countingSink(sink)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return a.Close()
	})

	g.Go(func() error {
		var bo backoff
		for {
			addr, err := a.accept(gctx, h, sink)
			if err == nil {
				bo.reset()
				a.cfg.Logger.InfoMsg("New %s connection from %s", a.cfg.Mode, addr)
				continue
			}

			var connErr *Error
			if !errors.As(err, &connErr) {
				// closed listener or cancelled context
				return err
			}
			report(err)

			if errors.Is(err, ErrTransportAccept) && a.cfg.Mode == Plain {
				select {
				case <-time.After(bo.next()):
				case <-gctx.Done():
				}
			}
		}
	})

	err := g.Wait()
	if derr := a.driver.shutdown(a.cfg.ShutdownTimeout); derr != nil {
		return derr
	}

	a.mu.Lock()
	listenErr := a.listenErr
	a.mu.Unlock()
	if listenErr != nil {
		return fmt.Errorf("listener failed: %w", listenErr)
	}
	if err != nil && !errors.Is(err, ErrClosed) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// Close stops accepting: it closes the listener and aborts in-flight
// handshakes. Connections already handed to a handler keep running; use
// Shutdown to wait for them.
func (a *Acceptor) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.closed)
		err = a.l.Close()
		if a.hs != nil {
			if a.pumpDone != nil {
				a.pumpOnce.Do(func() { close(a.pumpDone) })
			}
			_ = a.hs.Close()
		}
	})
	return err
}

// Shutdown closes the acceptor and waits up to Config.ShutdownTimeout for
// live connections to finish before closing them.
func (a *Acceptor) Shutdown() error {
	err := a.Close()
	if derr := a.driver.shutdown(a.cfg.ShutdownTimeout); derr != nil {
		return derr
	}
	return err
}
