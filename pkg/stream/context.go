package stream

import "context"

type ctxKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Stream) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the stream stored in ctx, if any.
func FromContext(ctx context.Context) (*Stream, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Stream)
	return s, ok
}
