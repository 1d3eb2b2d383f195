package http

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

const (
	// DefaultAsyncTimeout bounds how long a Future waits for its execution.
	DefaultAsyncTimeout = 60 * time.Second

	// DefaultShutdownTimeout bounds how long Shutdown waits for in-flight
	// executions before terminating them.
	DefaultShutdownTimeout = 60 * time.Second
)

// Client executes connections and normalizes their outcome into a Response
// or an *HTTPError. A Client owns the worker pool used by ExecuteAsync; create
// one at startup, share it, and call Shutdown at teardown.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	logger          zerolog.Logger
	asyncTimeout    time.Duration
	shutdownTimeout time.Duration
	lineSeparator   string

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	workers conc.WaitGroup
	pending map[*Future]struct{}

	shutdownOnce sync.Once
	shutdownDone chan struct{}
	shutdownErr  error
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// WithLogger sets the logger for execution and lifecycle events.
// The default logger discards everything.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithAsyncTimeout sets the deadline of futures returned by ExecuteAsync,
// measured from scheduling.
func WithAsyncTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.asyncTimeout = timeout
	}
}

// WithShutdownTimeout sets how long Shutdown waits for in-flight work.
func WithShutdownTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.shutdownTimeout = timeout
	}
}

// WithLineSeparator sets the separator used to join response body lines.
func WithLineSeparator(sep string) ClientOption {
	return func(c *Client) {
		c.lineSeparator = sep
	}
}

// NewClient creates a new Client with the given options
func NewClient(options ...ClientOption) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		logger:          zerolog.Nop(),
		asyncTimeout:    DefaultAsyncTimeout,
		shutdownTimeout: DefaultShutdownTimeout,
		lineSeparator:   "\n",
		ctx:             ctx,
		cancel:          cancel,
		pending:         make(map[*Future]struct{}),
		shutdownDone:    make(chan struct{}),
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// Context is cancelled when Shutdown has to terminate in-flight work.
// Connections opened with it are aborted at that point.
func (c *Client) Context() context.Context {
	return c.ctx
}

// Build opens a Connection for b bound to the client's context.
func (c *Client) Build(b *RequestBuilder) (*Connection, error) {
	return b.Build(c.ctx)
}

// Execute sends conn, if it has not been sent yet, and reads the whole
// response on the calling goroutine. A status of 400 or above yields an
// *HTTPError carrying that status; a failure while reading the status or
// body yields an *HTTPError with StatusTransportFailure and the original
// cause. conn is disconnected before Execute returns, on every path.
func (c *Client) Execute(conn Conn) (resp *Response, err error) {
	start := time.Now()
	defer func() {
		if derr := conn.Disconnect(); derr != nil {
			c.logger.Debug().Err(derr).Msg("disconnect failed")
		}
	}()

	status, err := conn.StatusCode()
	if err != nil {
		return nil, ioError(err)
	}

	stream, err := conn.Body()
	if err != nil {
		return nil, ioError(err)
	}

	body, err := readLines(stream, c.lineSeparator)
	if err != nil {
		return nil, ioError(err)
	}

	c.logger.Debug().
		Int("status", status).
		Int("bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("request executed")

	if status >= 400 {
		return nil, statusError(status)
	}
	return NewResponse(status, body), nil
}

// ExecuteAsync schedules Execute on the client's worker pool. The pool has no
// fixed size: every submission runs on its own goroutine.
//
// The future fails with an error wrapping ErrAsyncTimeout if the execution
// has not finished within the async timeout. The timeout only fails the
// future; the request keeps running until its own connect and read timeouts
// stop it.
//
// Execution failures are delivered wrapped in an *AsyncError. After Shutdown
// the future fails immediately with ErrClientClosed.
func (c *Client) ExecuteAsync(conn Conn) *Future {
	f := newFuture(uuid.NewString())
	log := c.logger.With().Str("execution", f.ID()).Logger()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		if err := conn.Disconnect(); err != nil {
			log.Debug().Err(err).Msg("disconnect failed")
		}
		f.complete(nil, ErrClientClosed)
		return f
	}

	c.pending[f] = struct{}{}
	timeout := c.asyncTimeout
	timer := time.AfterFunc(timeout, func() {
		if f.complete(nil, fmt.Errorf("%w after %s", ErrAsyncTimeout, timeout)) {
			log.Warn().Dur("timeout", timeout).Msg("async execution timed out")
		}
	})

	c.workers.Go(func() {
		defer c.forget(f)

		resp, err := c.safeExecute(conn)
		timer.Stop()
		if err != nil {
			err = &AsyncError{Err: err}
		}
		if !f.complete(resp, err) {
			log.Debug().Msg("execution finished after its future completed")
		}
	})

	log.Debug().Msg("async execution scheduled")
	return f
}

func (c *Client) safeExecute(conn Conn) (resp *Response, err error) {
	var catcher panics.Catcher
	catcher.Try(func() {
		resp, err = c.Execute(conn)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		return nil, WrapHTTPError(StatusTransportFailure, "execution panicked", recovered.AsError())
	}
	return resp, err
}

func (c *Client) forget(f *Future) {
	c.mu.Lock()
	delete(c.pending, f)
	c.mu.Unlock()
}

// Shutdown stops accepting work and waits for in-flight executions. When they
// do not finish within the shutdown timeout, or ctx is done first, the client
// context is cancelled, outstanding futures fail with ErrClientClosed, and
// ErrShutdownTimeout is returned.
//
// Shutdown may be called more than once; every call returns the result of the
// first.
func (c *Client) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() {
		defer close(c.shutdownDone)

		c.mu.Lock()
		c.closed = true
		inFlight := len(c.pending)
		c.mu.Unlock()

		c.logger.Debug().Int("in_flight", inFlight).Msg("shutting down client")

		drained := make(chan struct{})
		go func() {
			c.workers.Wait()
			close(drained)
		}()

		timer := time.NewTimer(c.shutdownTimeout)
		defer timer.Stop()

		select {
		case <-drained:
			c.cancel()
			return
		case <-timer.C:
		case <-ctx.Done():
		}

		c.logger.Warn().Msg("in-flight executions did not finish, terminating")

		c.mu.Lock()
		for f := range c.pending {
			f.complete(nil, ErrClientClosed)
		}
		c.mu.Unlock()
		c.cancel()

		c.shutdownErr = ErrShutdownTimeout
	})

	<-c.shutdownDone
	return c.shutdownErr
}

// readLines decodes the body as text lines, accepting \n, \r\n and \r as
// terminators, and joins them with sep. A trailing terminator does not start
// a new line.
func readLines(r io.Reader, sep string) (string, error) {
	if r == nil {
		return "", nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	text := strings.ToValidUTF8(string(data), "\uFFFD")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	if sep != "\n" {
		text = strings.ReplaceAll(text, "\n", sep)
	}
	return text, nil
}
