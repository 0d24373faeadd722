// Package pipeio connects two byte streams to each other.
package pipeio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// Pipe copies data in both directions between rwc1 and rwc2 until either
// direction ends or ctx is done. Both are closed before Pipe returns.
// Copy errors other than closed connections are passed to logfunc.
func Pipe(ctx context.Context, rwc1, rwc2 io.ReadWriteCloser, logfunc func(error)) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	copyFn := func(dst, src io.ReadWriteCloser, name string) {
		defer wg.Done()
		defer cancel()

		if _, err := io.Copy(dst, src); err != nil && !isClosed(err) && ctx.Err() == nil {
			logfunc(fmt.Errorf("io.Copy(%s): %w", name, err))
		}
	}

	wg.Add(2)
	go copyFn(rwc1, rwc2, "rwc1, rwc2")
	go copyFn(rwc2, rwc1, "rwc2, rwc1")

	<-ctx.Done()
	rwc1.Close()
	rwc2.Close()
	wg.Wait()
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
