package handler

import (
	"context"
	"fmt"
	"net"

	"dominicbreuker/flexserve/pkg/log"
	"dominicbreuker/flexserve/pkg/mux"
)

// Mux runs a yamux session over the connection and echoes every stream
// the client opens.
func Mux(logger *log.Logger) Func {
	return func(ctx context.Context, conn net.Conn) error {
		sess, err := mux.Server(conn)
		if err != nil {
			return err
		}

		logfunc := func(err error) {
			logger.VerboseMsg("Mux %s: %s", conn.RemoteAddr(), err)
		}
		if err := mux.Serve(ctx, sess, mux.StreamFunc(Echo), logfunc); err != nil {
			return fmt.Errorf("mux: %w", err)
		}
		return nil
	}
}
