package handler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"dominicbreuker/flexserve/pkg/log"
	"dominicbreuker/flexserve/pkg/stream"

	"github.com/coder/websocket"
)

// HTTP serves a hello world page on / and a websocket echo on /ws. Each
// connection gets its own HTTP/1.x server loop, so keep-alive requests
// stay on the connection they arrived on.
func HTTP(logger *log.Logger) Func {
	mux := http.NewServeMux()
	mux.HandleFunc("/", hello)
	mux.HandleFunc("/ws", wsEcho(logger))

	return func(ctx context.Context, conn net.Conn) error {
		var wg sync.WaitGroup
		l := newConnListener(conn)

		srv := &http.Server{
			Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				wg.Add(1)
				defer wg.Done()
				mux.ServeHTTP(w, r)
			}),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
			ConnState: func(_ net.Conn, state http.ConnState) {
				// websockets hijack the connection, their handler keeps running
				if state == http.StateClosed || state == http.StateHijacked {
					l.Close()
				}
			},
		}

		err := srv.Serve(l)
		wg.Wait()
		if errors.Is(err, errListenerDone) {
			return nil
		}
		return fmt.Errorf("http: %w", err)
	}
}

func hello(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	transport := "plain"
	if s, ok := stream.FromContext(r.Context()); ok {
		if cs, ok := s.ConnectionState(); ok {
			transport = fmt.Sprintf("%s, %s", s.Kind(), tls.VersionName(cs.Version))
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Hello, world! (%s)\n", transport)
}

func wsEcho(logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			logger.VerboseMsg("websocket.Accept(): %s", err)
			return
		}
		defer c.CloseNow()

		ctx := r.Context()
		for {
			typ, data, err := c.Read(ctx)
			if err != nil {
				if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
					logger.VerboseMsg("websocket read: %s", err)
				}
				return
			}
			if err := c.Write(ctx, typ, data); err != nil {
				logger.VerboseMsg("websocket write: %s", err)
				return
			}
		}
	}
}

var errListenerDone = errors.New("connection done")

// connListener hands out a single connection, then blocks until closed.
type connListener struct {
	conn net.Conn
	ch   chan net.Conn
	done chan struct{}
	once sync.Once
}

func newConnListener(conn net.Conn) *connListener {
	ch := make(chan net.Conn, 1)
	ch <- conn
	return &connListener{conn: conn, ch: ch, done: make(chan struct{})}
}

func (l *connListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.ch:
		return c, nil
	default:
	}

	<-l.done
	return nil, errListenerDone
}

func (l *connListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func (l *connListener) Addr() net.Addr {
	return l.conn.LocalAddr()
}
