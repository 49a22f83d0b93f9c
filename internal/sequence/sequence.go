package sequence

import (
	"context"
	"sync/atomic"
)

// Sequencer hands out strictly increasing receipt sequence numbers.
type Sequencer interface {
	Next(ctx context.Context) (int64, error)
}

// LocalSequencer counts in process. Numbers restart after a restart, so receipt
// ids combine it with a timestamp and a random token.
type LocalSequencer struct {
	n atomic.Int64
}

func NewLocal() *LocalSequencer {
	return &LocalSequencer{}
}

func (s *LocalSequencer) Next(_ context.Context) (int64, error) {
	return s.n.Add(1), nil
}
