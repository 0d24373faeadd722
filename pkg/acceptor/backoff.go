package acceptor

import "time"

const (
	minBackoff = 5 * time.Millisecond
	maxBackoff = time.Second
)

// backoff paces retries after failed accepts so a broken socket (e.g. out
// of file descriptors) does not turn the accept loop into a busy loop.
type backoff struct {
	d time.Duration
}

func (b *backoff) next() time.Duration {
	if b.d == 0 {
		b.d = minBackoff
	} else {
		b.d *= 2
	}
	if b.d > maxBackoff {
		b.d = maxBackoff
	}
	return b.d
}

func (b *backoff) reset() {
	b.d = 0
}
