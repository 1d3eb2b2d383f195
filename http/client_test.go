package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is a scripted Conn that counts disconnects.
type fakeConn struct {
	status      int
	statusErr   error
	body        io.Reader
	bodyErr     error
	release     chan struct{}
	panicMsg    string
	disconnects atomic.Int32
}

func (c *fakeConn) StatusCode() (int, error) {
	if c.release != nil {
		<-c.release
	}
	if c.panicMsg != "" {
		panic(c.panicMsg)
	}
	return c.status, c.statusErr
}

func (c *fakeConn) Body() (io.Reader, error) {
	return c.body, c.bodyErr
}

func (c *fakeConn) Disconnect() error {
	c.disconnects.Add(1)
	return nil
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func newJSONServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func mustBuild(t *testing.T, client *Client, url string) *Connection {
	t.Helper()
	conn, err := client.Build(NewRequestBuilder().URL(url).Method("GET"))
	require.NoError(t, err)
	return conn
}

func TestClient_ExecuteSuccess(t *testing.T) {
	server := newJSONServer(t, http.StatusOK, `{"userId":1}`)
	client := NewClient()
	defer client.Shutdown(context.Background())

	resp, err := client.Execute(mustBuild(t, client, server.URL+"/posts/1"))
	require.NoError(t, err)

	assert.True(t, resp.Equal(NewResponse(200, `{"userId":1}`)))
	assert.Equal(t, `HttpResponse{statusCode=200, body='{"userId":1}'}`, resp.String())
}

func TestClient_ExecuteStatusErrors(t *testing.T) {
	for _, status := range []int{400, 401, 404, 418, 500, 503} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			server := newJSONServer(t, status, `{"error":"nope"}`)
			client := NewClient()

			resp, err := client.Execute(mustBuild(t, client, server.URL))
			assert.Nil(t, resp)

			var httpErr *HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, status, httpErr.StatusCode)
			assert.Nil(t, httpErr.Cause)
			assert.Equal(t, "HTTP request failed with status code: "+strconv.Itoa(status), httpErr.Message)
		})
	}
}

func TestClient_ExecuteNon2xxBelow400(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	client := NewClient()
	resp, err := client.Execute(mustBuild(t, client, server.URL))
	require.NoError(t, err)
	assert.Equal(t, 304, resp.StatusCode())
	assert.Empty(t, resp.Body())
}

func TestClient_ExecuteTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient()
	conn := mustBuild(t, client, url)

	resp, err := client.Execute(conn)
	assert.Nil(t, resp)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 500, httpErr.StatusCode)
	assert.Equal(t, "I/O error occurred while processing the request", httpErr.Message)
	assert.NotNil(t, httpErr.Cause)

	_, err = conn.StatusCode()
	assert.Error(t, err)
}

func TestClient_ExecuteJoinsLines(t *testing.T) {
	tests := []struct {
		name string
		body string
		sep  string
		want string
	}{
		{"single line", "hello", "\n", "hello"},
		{"trailing newline dropped", "hello\n", "\n", "hello"},
		{"crlf", "a\r\nb\r\n", "\n", "a\nb"},
		{"bare cr", "a\rb", "\n", "a\nb"},
		{"blank line kept", "a\n\nb", "\n", "a\n\nb"},
		{"only trailing blank line", "a\n\n", "\n", "a\n"},
		{"custom separator", "a\nb\r\nc", "\r\n", "a\r\nb\r\nc"},
		{"empty", "", "\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{status: 200, body: strings.NewReader(tt.body)}
			resp, err := NewClient(WithLineSeparator(tt.sep)).Execute(conn)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Body())
		})
	}
}

func TestClient_ExecuteNilBody(t *testing.T) {
	for _, status := range []int{204, 404} {
		conn := &fakeConn{status: status}
		resp, err := NewClient().Execute(conn)
		if status < 400 {
			require.NoError(t, err)
			assert.Equal(t, "", resp.Body())
		} else {
			code, ok := StatusCode(err)
			require.True(t, ok)
			assert.Equal(t, status, code)
		}
	}
}

func TestClient_ExecuteDisconnectsOnce(t *testing.T) {
	statusFailure := errors.New("connection refused")
	bodyFailure := errors.New("stream closed")
	readFailure := errors.New("connection reset")

	tests := []struct {
		name       string
		conn       *fakeConn
		wantStatus int
		wantCause  error
	}{
		{"success", &fakeConn{status: 200, body: strings.NewReader("ok")}, 0, nil},
		{"http error", &fakeConn{status: 404, body: strings.NewReader("missing")}, 404, nil},
		{"status failure", &fakeConn{statusErr: statusFailure}, 500, statusFailure},
		{"body failure", &fakeConn{status: 200, bodyErr: bodyFailure}, 500, bodyFailure},
		{"read failure", &fakeConn{status: 200, body: failingReader{readFailure}}, 500, readFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient().Execute(tt.conn)
			assert.Equal(t, int32(1), tt.conn.disconnects.Load())

			if tt.wantStatus == 0 {
				require.NoError(t, err)
				return
			}
			code, ok := StatusCode(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, code)
			if tt.wantCause != nil {
				assert.ErrorIs(t, err, tt.wantCause)
			}
		})
	}
}

func TestClient_ExecuteDisconnectsOnPanic(t *testing.T) {
	conn := &fakeConn{panicMsg: "boom"}
	assert.Panics(t, func() { _, _ = NewClient().Execute(conn) })
	assert.Equal(t, int32(1), conn.disconnects.Load())
}

func TestClient_ExecuteAsyncMatchesExecute(t *testing.T) {
	server := newJSONServer(t, http.StatusOK, `{"userId":1}`)
	client := NewClient()
	defer client.Shutdown(context.Background())

	syncResp, err := client.Execute(mustBuild(t, client, server.URL))
	require.NoError(t, err)

	future := client.ExecuteAsync(mustBuild(t, client, server.URL))
	asyncResp, err := future.Wait()
	require.NoError(t, err)

	assert.True(t, asyncResp.Equal(syncResp))
	assert.NotEmpty(t, future.ID())
}

func TestClient_ExecuteAsyncFailure(t *testing.T) {
	server := newJSONServer(t, http.StatusNotFound, "")
	client := NewClient()
	defer client.Shutdown(context.Background())

	resp, err := client.ExecuteAsync(mustBuild(t, client, server.URL)).Wait()
	assert.Nil(t, resp)

	var asyncErr *AsyncError
	require.True(t, errors.As(err, &asyncErr))

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 404, httpErr.StatusCode)
	assert.Equal(t, "HTTP request failed with status code: 404", httpErr.Message)
}

func TestClient_ExecuteAsyncPanic(t *testing.T) {
	client := NewClient()
	defer client.Shutdown(context.Background())

	conn := &fakeConn{panicMsg: "boom"}
	_, err := client.ExecuteAsync(conn).Wait()

	code, ok := StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, StatusTransportFailure, code)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, int32(1), conn.disconnects.Load())
}

func TestClient_ExecuteAsyncTimeout(t *testing.T) {
	client := NewClient(WithAsyncTimeout(50 * time.Millisecond))
	conn := &fakeConn{status: 200, body: strings.NewReader("late"), release: make(chan struct{})}

	start := time.Now()
	resp, err := client.ExecuteAsync(conn).Wait()
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrAsyncTimeout)
	assert.Less(t, time.Since(start), time.Second)

	// the execution itself keeps running until its connection returns
	assert.Equal(t, int32(0), conn.disconnects.Load())
	close(conn.release)
	require.NoError(t, client.Shutdown(context.Background()))
	assert.Equal(t, int32(1), conn.disconnects.Load())
}

func TestClient_DefaultTimeouts(t *testing.T) {
	client := NewClient()
	assert.Equal(t, 60*time.Second, client.asyncTimeout)
	assert.Equal(t, 60*time.Second, client.shutdownTimeout)
	assert.Equal(t, DefaultAsyncTimeout, client.asyncTimeout)
}

func TestClient_ExecuteAsyncConcurrent(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte(r.URL.Query().Get("n")))
	}))
	defer server.Close()

	client := NewClient()
	defer client.Shutdown(context.Background())

	const n = 50
	conns := make([]*Connection, n)
	for i := range conns {
		conns[i] = mustBuild(t, client, server.URL+"/?n="+strconv.Itoa(i))
	}

	futures := make([]*Future, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			futures[i] = client.ExecuteAsync(conns[i])
		}(i)
	}
	wg.Wait()

	for i, f := range futures {
		resp, err := f.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(i), resp.Body())
	}
	assert.Equal(t, int32(n), hits.Load())
}

func TestClient_ShutdownRejectsNewWork(t *testing.T) {
	client := NewClient()
	require.NoError(t, client.Shutdown(context.Background()))

	conn := &fakeConn{status: 200}
	_, err := client.ExecuteAsync(conn).Wait()
	assert.ErrorIs(t, err, ErrClientClosed)
	assert.Equal(t, int32(1), conn.disconnects.Load())
}

func TestClient_ShutdownWaitsForInFlight(t *testing.T) {
	client := NewClient()
	conn := &fakeConn{status: 200, body: strings.NewReader("done"), release: make(chan struct{})}
	future := client.ExecuteAsync(conn)

	time.AfterFunc(50*time.Millisecond, func() { close(conn.release) })
	require.NoError(t, client.Shutdown(context.Background()))

	resp, err := future.Wait()
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Body())
	assert.ErrorIs(t, client.Context().Err(), context.Canceled)
}

func TestClient_ShutdownForcesAfterTimeout(t *testing.T) {
	client := NewClient(WithShutdownTimeout(50 * time.Millisecond))
	conn := &fakeConn{status: 200, release: make(chan struct{})}
	defer close(conn.release)

	future := client.ExecuteAsync(conn)

	start := time.Now()
	err := client.Shutdown(context.Background())
	assert.ErrorIs(t, err, ErrShutdownTimeout)
	assert.Less(t, time.Since(start), time.Second)

	_, err = future.Wait()
	assert.ErrorIs(t, err, ErrClientClosed)
	assert.Error(t, client.Context().Err())

	// later calls return the first result without waiting again
	assert.ErrorIs(t, client.Shutdown(context.Background()), ErrShutdownTimeout)
}

func TestClient_ShutdownHonoursContext(t *testing.T) {
	client := NewClient()
	conn := &fakeConn{status: 200, release: make(chan struct{})}
	defer close(conn.release)
	client.ExecuteAsync(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, client.Shutdown(ctx), ErrShutdownTimeout)
}

func TestClient_ShutdownAbortsClientConnections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(WithShutdownTimeout(50 * time.Millisecond))
	conn, err := client.Build(NewRequestBuilder().URL(server.URL).ReadTimeout(0))
	require.NoError(t, err)

	future := client.ExecuteAsync(conn)
	time.Sleep(20 * time.Millisecond)
	assert.ErrorIs(t, client.Shutdown(context.Background()), ErrShutdownTimeout)

	_, err = future.Wait()
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClient_ShutdownConcurrentCalls(t *testing.T) {
	client := NewClient()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, client.Shutdown(context.Background()))
		}()
	}
	wg.Wait()
}
