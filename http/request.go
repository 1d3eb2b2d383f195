package http

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultConnectTimeoutMillis is the connect timeout of a new builder.
	DefaultConnectTimeoutMillis = 10000
	// DefaultReadTimeoutMillis is the read timeout of a new builder.
	DefaultReadTimeoutMillis = 10000
)

var validMethods = map[string]struct{}{
	"GET":     {},
	"POST":    {},
	"PUT":     {},
	"DELETE":  {},
	"HEAD":    {},
	"OPTIONS": {},
	"PATCH":   {},
}

// ParseURL parses raw as an absolute http or https URL.
// The returned error wraps ErrInvalidArgument.
func ParseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: Invalid URL: %s: %w", ErrInvalidArgument, raw, err)
	}
	// url.Parse lowercases the scheme, so match the raw prefix.
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return nil, fmt.Errorf("%w: URL must start with http or https: %s", ErrInvalidArgument, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: Invalid URL: %s: missing host", ErrInvalidArgument, raw)
	}
	if i := strings.IndexFunc(raw, forbiddenURLRune); i >= 0 {
		return nil, fmt.Errorf("%w: Invalid URL: %s: illegal character %q at index %d", ErrInvalidArgument, raw, raw[i], i)
	}
	return u, nil
}

// forbiddenURLRune reports characters that may not appear unescaped in a
// URI (RFC 3986 section 2). url.Parse tolerates them in paths and queries.
func forbiddenURLRune(r rune) bool {
	if r <= 0x20 || r == 0x7f {
		return true
	}
	return strings.ContainsRune("\"<>\\^`{|}", r)
}

// ParseMethod matches method case-insensitively against GET, POST, PUT,
// DELETE, HEAD, OPTIONS and PATCH and returns it in upper case.
// The returned error wraps ErrInvalidArgument.
func ParseMethod(method string) (string, error) {
	upper := strings.ToUpper(method)
	if _, ok := validMethods[upper]; !ok {
		return "", fmt.Errorf("%w: Unsupported HTTP method: %s", ErrInvalidArgument, method)
	}
	return upper, nil
}

// Request is an immutable, validated description of an HTTP request.
// It is produced by RequestBuilder.Spec and consumed by Open.
type Request struct {
	url            *url.URL
	method         string
	headers        map[string]string
	body           string
	connectTimeout int
	readTimeout    int
}

// URL returns a copy of the request URL.
func (r *Request) URL() *url.URL {
	u := *r.url
	return &u
}

// Method returns the upper-case request method.
func (r *Request) Method() string { return r.method }

// Headers returns a copy of the request headers, keyed exactly as they were added.
func (r *Request) Headers() map[string]string {
	headers := make(map[string]string, len(r.headers))
	for k, v := range r.headers {
		headers[k] = v
	}
	return headers
}

// Body returns the raw body text. An empty string means no body.
func (r *Request) Body() string { return r.body }

// HasBody reports whether the request carries a body.
func (r *Request) HasBody() bool { return r.body != "" }

// ConnectTimeout returns the connect timeout. Zero or less means no timeout.
func (r *Request) ConnectTimeout() time.Duration {
	return millis(r.connectTimeout)
}

// ReadTimeout returns the read timeout. Zero or less means no timeout.
func (r *Request) ReadTimeout() time.Duration {
	return millis(r.readTimeout)
}

func millis(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

// RequestBuilder accumulates request parameters with validation. A builder is
// meant to be owned by a single goroutine; the Request it produces is
// immutable and may be shared.
//
// Configuration errors are detected when the offending setter is called. The
// first one is kept and reported by Err, Spec and Build; later setters do not
// clear it.
//
// Example:
//
//	conn, err := http.NewRequestBuilder().
//	    URL("https://api.example.com/users").
//	    Method("post").
//	    Header("Content-Type", "application/json").
//	    Body(`{"name":"John"}`).
//	    Build(ctx)
type RequestBuilder struct {
	url            *url.URL
	method         string
	headers        map[string]string
	body           string
	connectTimeout int
	readTimeout    int
	err            error
}

// NewRequestBuilder creates a builder for a GET request with the default
// connect and read timeouts.
func NewRequestBuilder() *RequestBuilder {
	return &RequestBuilder{
		method:         "GET",
		headers:        make(map[string]string),
		connectTimeout: DefaultConnectTimeoutMillis,
		readTimeout:    DefaultReadTimeoutMillis,
	}
}

func (b *RequestBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// URL sets the request URL. It must be an absolute http or https URL.
func (b *RequestBuilder) URL(raw string) *RequestBuilder {
	u, err := ParseURL(raw)
	if err != nil {
		b.fail(err)
		return b
	}
	b.url = u
	return b
}

// Method sets the request method, matched case-insensitively.
func (b *RequestBuilder) Method(method string) *RequestBuilder {
	m, err := ParseMethod(method)
	if err != nil {
		b.fail(err)
		return b
	}
	b.method = m
	return b
}

// Header sets a request header, replacing any value previously set for the
// same key. Keys are case-sensitive as stored.
func (b *RequestBuilder) Header(key, value string) *RequestBuilder {
	b.headers[key] = value
	return b
}

// Body sets the raw request body. An empty body sends no body at all.
func (b *RequestBuilder) Body(text string) *RequestBuilder {
	b.body = text
	return b
}

// ConnectTimeout sets the connect timeout in milliseconds.
func (b *RequestBuilder) ConnectTimeout(ms int) *RequestBuilder {
	b.connectTimeout = ms
	return b
}

// ReadTimeout sets the read timeout in milliseconds.
func (b *RequestBuilder) ReadTimeout(ms int) *RequestBuilder {
	b.readTimeout = ms
	return b
}

// Err returns the first configuration error, if any.
func (b *RequestBuilder) Err() error {
	return b.err
}

// Spec validates the builder state and returns the immutable Request.
func (b *RequestBuilder) Spec() (*Request, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.url == nil {
		return nil, fmt.Errorf("%w: URL must be set before building the request.", ErrIllegalState)
	}
	u := *b.url
	req := &Request{
		url:            &u,
		method:         b.method,
		headers:        make(map[string]string, len(b.headers)),
		body:           b.body,
		connectTimeout: b.connectTimeout,
		readTimeout:    b.readTimeout,
	}
	for k, v := range b.headers {
		req.headers[k] = v
	}
	return req, nil
}

// Build validates the builder state and opens a Connection for it. The
// returned Connection has not been sent yet.
func (b *RequestBuilder) Build(ctx context.Context) (*Connection, error) {
	req, err := b.Spec()
	if err != nil {
		return nil, err
	}
	return Open(ctx, req)
}
