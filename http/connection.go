package http

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"strings"
	"sync"
	"time"
)

// Conn is a single-use request in flight, as consumed by Client.Execute.
// *Connection is the implementation backed by net/http.
type Conn interface {
	// StatusCode sends the request if it has not been sent yet and returns
	// the response status code.
	StatusCode() (int, error)

	// Body returns the response stream. It is the success stream for 2xx
	// responses and the error stream otherwise; nil means there is none.
	Body() (io.Reader, error)

	// Disconnect releases the connection. It is safe to call more than once.
	Disconnect() error
}

// TimingInfo contains detailed timing information for a request
type TimingInfo struct {
	// StartTime is when the request was sent
	StartTime time.Time

	// DNSLookupTime is the time spent looking up the DNS address
	DNSLookupTime time.Duration

	// TCPConnectTime is the time spent establishing a TCP connection
	TCPConnectTime time.Duration

	// TLSHandshakeTime is the time spent performing the TLS handshake (for HTTPS)
	TLSHandshakeTime time.Duration

	// TimeToFirstByte is the time from the last connection phase to the first response byte
	TimeToFirstByte time.Duration

	// HeaderTime is the time from sending the request to receiving the response headers
	HeaderTime time.Duration
}

var errReadTimeout = errors.New("read timed out")

// Connection is a live, single-use request produced by Open. Nothing is sent
// until StatusCode or Body is first called.
type Connection struct {
	req       *Request
	httpReq   *http.Request
	client    *http.Client
	transport *http.Transport
	cancel    context.CancelFunc

	sendOnce sync.Once
	mu       sync.Mutex
	resp     *http.Response
	body     io.Reader
	err      error
	closed   bool

	// timingMu guards timing, which trace callbacks write from transport
	// goroutines.
	timingMu sync.Mutex
	timing   TimingInfo
}

// Open turns a validated Request into a Connection. The connection owns a
// dedicated transport configured from the request:
//   - the connect timeout bounds dialing and the TLS handshake
//   - the read timeout bounds the wait for response headers and every
//     individual body read
//
// Cancelling ctx aborts the request at any stage.
func Open(ctx context.Context, req *Request) (*Connection, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidArgument)
	}

	ctx, cancel := context.WithCancel(ctx)

	dialer := &net.Dialer{Timeout: req.ConnectTimeout()}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   req.ConnectTimeout(),
		ResponseHeaderTimeout: req.ReadTimeout(),
		DisableKeepAlives:     true,
		ForceAttemptHTTP2:     true,
	}

	var body io.Reader
	if req.HasBody() {
		body = strings.NewReader(req.Body())
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method(), req.url.String(), body)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	for key, value := range req.headers {
		if strings.EqualFold(key, "Host") {
			httpReq.Host = value
			continue
		}
		httpReq.Header[key] = []string{value}
	}

	conn := &Connection{
		req:       req,
		transport: transport,
		client:    &http.Client{Transport: transport},
		cancel:    cancel,
	}
	conn.httpReq = httpReq.WithContext(httptrace.WithClientTrace(ctx, conn.trace()))

	return conn, nil
}

// trace captures connection phase timings.
func (c *Connection) trace() *httptrace.ClientTrace {
	var dnsStart, connectStart, tlsStart, lastPhaseEnd time.Time

	return &httptrace.ClientTrace{
		GetConn: func(string) {
			c.timingMu.Lock()
			defer c.timingMu.Unlock()
			lastPhaseEnd = time.Now()
		},
		DNSStart: func(httptrace.DNSStartInfo) {
			c.timingMu.Lock()
			defer c.timingMu.Unlock()
			dnsStart = time.Now()
		},
		DNSDone: func(httptrace.DNSDoneInfo) {
			c.timingMu.Lock()
			defer c.timingMu.Unlock()
			lastPhaseEnd = time.Now()
			c.timing.DNSLookupTime = lastPhaseEnd.Sub(dnsStart)
		},
		ConnectStart: func(string, string) {
			c.timingMu.Lock()
			defer c.timingMu.Unlock()
			connectStart = time.Now()
		},
		ConnectDone: func(_, _ string, err error) {
			if err != nil {
				return
			}
			c.timingMu.Lock()
			defer c.timingMu.Unlock()
			lastPhaseEnd = time.Now()
			c.timing.TCPConnectTime = lastPhaseEnd.Sub(connectStart)
		},
		TLSHandshakeStart: func() {
			c.timingMu.Lock()
			defer c.timingMu.Unlock()
			tlsStart = time.Now()
		},
		TLSHandshakeDone: func(_ tls.ConnectionState, err error) {
			if err != nil {
				return
			}
			c.timingMu.Lock()
			defer c.timingMu.Unlock()
			lastPhaseEnd = time.Now()
			c.timing.TLSHandshakeTime = lastPhaseEnd.Sub(tlsStart)
		},
		GotFirstResponseByte: func() {
			c.timingMu.Lock()
			defer c.timingMu.Unlock()
			c.timing.TimeToFirstByte = time.Since(lastPhaseEnd)
		},
	}
}

func (c *Connection) send() {
	c.sendOnce.Do(func() {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			c.err = fmt.Errorf("%w: connection already disconnected", ErrIllegalState)
			return
		}

		started := time.Now()
		c.timingMu.Lock()
		c.timing.StartTime = started
		c.timingMu.Unlock()

		resp, err := c.client.Do(c.httpReq)

		c.timingMu.Lock()
		c.timing.HeaderTime = time.Since(started)
		c.timingMu.Unlock()

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.err = err
			return
		}
		if c.closed {
			resp.Body.Close()
			c.err = fmt.Errorf("%w: connection already disconnected", ErrIllegalState)
			return
		}
		c.resp = resp
		if resp.Body != nil && resp.Body != http.NoBody {
			c.body = &readTimeoutReader{r: resp.Body, timeout: c.req.ReadTimeout(), abort: c.cancel}
		}
	})
}

// StatusCode sends the request on first use and returns the status code.
func (c *Connection) StatusCode() (int, error) {
	c.send()
	if c.err != nil {
		return 0, c.err
	}
	return c.resp.StatusCode, nil
}

// Body sends the request on first use and returns the response stream.
// net/http exposes a single stream for both successful and failed
// responses, so the success and error streams are the same reader here.
func (c *Connection) Body() (io.Reader, error) {
	c.send()
	if c.err != nil {
		return nil, c.err
	}
	return c.body, nil
}

// Disconnect closes the response body, aborts the request if it is still in
// progress, and releases the transport.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var err error
	if c.resp != nil {
		err = c.resp.Body.Close()
	}
	c.cancel()
	c.transport.CloseIdleConnections()
	return err
}

// DoOutput reports whether the request writes a body.
func (c *Connection) DoOutput() bool {
	return c.req.HasBody()
}

// Request returns the descriptor the connection was opened from.
func (c *Connection) Request() *Request {
	return c.req
}

// Timing returns the phase timings collected while sending the request.
// It is meaningful once StatusCode or Body has returned.
func (c *Connection) Timing() TimingInfo {
	c.timingMu.Lock()
	defer c.timingMu.Unlock()
	return c.timing
}

// readTimeoutReader aborts the request when a single Read blocks longer than
// timeout.
type readTimeoutReader struct {
	r       io.Reader
	timeout time.Duration
	abort   context.CancelFunc
}

func (r *readTimeoutReader) Read(p []byte) (int, error) {
	if r.timeout <= 0 {
		return r.r.Read(p)
	}
	timer := time.AfterFunc(r.timeout, r.abort)
	n, err := r.r.Read(p)
	if !timer.Stop() && err != nil {
		err = fmt.Errorf("%w after %s: %w", errReadTimeout, r.timeout, err)
	}
	return n, err
}
