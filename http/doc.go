// Package http provides a thin request/response layer over net/http: a
// validating request builder, a single-use Connection, and a Client that
// executes connections synchronously or on a worker pool.
//
// The package does not implement any protocol itself. Dialing, TLS,
// redirects and header transmission are left to net/http.
//
// Basic Usage:
//
//	client := http.NewClient()
//	defer client.Shutdown(context.Background())
//
//	conn, err := client.Build(http.NewRequestBuilder().
//	    URL("https://api.example.com/users/1").
//	    Method("GET").
//	    Header("Accept", "application/json"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := client.Execute(conn)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(resp.StatusCode(), resp.Body())
//
// Asynchronous Execution:
//
//	future := client.ExecuteAsync(conn)
//	resp, err := future.Wait()
//
// A future fails with ErrAsyncTimeout after 60 seconds by default. This only
// bounds the wait: the request itself is bounded by the connect and read
// timeouts configured on the builder, and may keep running after its future
// has failed.
//
// Errors:
//
// Configuration errors wrap ErrInvalidArgument or ErrIllegalState and are
// reported by the builder before anything is sent. Execution failures are
// *HTTPError values: a status of 400 or above carries the server's status,
// while transport failures carry StatusTransportFailure and the original
// cause.
//
//	var httpErr *http.HTTPError
//	if errors.As(err, &httpErr) {
//	    fmt.Println(httpErr.StatusCode)
//	}
//
// Thread Safety:
//
// Client is safe for concurrent use. A RequestBuilder belongs to the
// goroutine that creates it; the Request it produces is immutable.
package http
