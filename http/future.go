package http

import (
	"context"
	"sync"
)

// Future is the pending result of Client.ExecuteAsync. It completes exactly
// once, with the first of: the execution's outcome, the async timeout, or a
// forced client shutdown.
type Future struct {
	id   string
	done chan struct{}
	once sync.Once
	resp *Response
	err  error
}

func newFuture(id string) *Future {
	return &Future{id: id, done: make(chan struct{})}
}

// complete reports whether this call was the one that completed the future.
func (f *Future) complete(resp *Response, err error) bool {
	completed := false
	f.once.Do(func() {
		f.resp, f.err = resp, err
		completed = true
		close(f.done)
	})
	return completed
}

// ID returns the correlation id used in the client's log events.
func (f *Future) ID() string {
	return f.id
}

// Done is closed once the future has completed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future completes and returns its outcome.
func (f *Future) Wait() (*Response, error) {
	<-f.done
	return f.resp, f.err
}

// Get waits for the future like Wait, but gives up when ctx is done. Giving
// up does not complete the future.
func (f *Future) Get(ctx context.Context) (*Response, error) {
	select {
	case <-f.done:
		return f.resp, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
