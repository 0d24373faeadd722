// Package mux runs many independent streams over one connection using
// yamux.
package mux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.com/hashicorp/yamux"
)

// Server starts the accepting side of a session over conn.
func Server(conn io.ReadWriteCloser) (*yamux.Session, error) {
	sess, err := yamux.Server(conn, config())
	if err != nil {
		return nil, fmt.Errorf("yamux.Server(conn): %w", err)
	}
	return sess, nil
}

// Client starts the opening side of a session over conn.
func Client(conn io.ReadWriteCloser) (*yamux.Session, error) {
	sess, err := yamux.Client(conn, config())
	if err != nil {
		return nil, fmt.Errorf("yamux.Client(conn): %w", err)
	}
	return sess, nil
}

// StreamFunc serves one stream of a session.
type StreamFunc func(ctx context.Context, stream net.Conn) error

// Serve runs handle for every stream the peer opens, each in its own
// goroutine, until the session ends or ctx is done. Stream errors go to
// logfunc. It closes the session and waits for all handlers before it
// returns.
func Serve(ctx context.Context, sess *yamux.Session, handle StreamFunc, logfunc func(error)) error {
	stop := context.AfterFunc(ctx, func() { _ = sess.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	defer sess.Close()

	for {
		stream, err := sess.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, yamux.ErrSessionShutdown) {
				return nil
			}
			return fmt.Errorf("session.Accept(): %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer stream.Close()

			if err := handle(ctx, stream); err != nil {
				logfunc(fmt.Errorf("stream %s: %w", stream.RemoteAddr(), err))
			}
		}()
	}
}

func config() *yamux.Config {
	cfg := yamux.DefaultConfig()
	cfg.LogOutput = nil
	cfg.Logger = log.New(io.Discard, "", log.LstdFlags) // discard all console logging in yamux
	return cfg
}
