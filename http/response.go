package http

import "fmt"

// Response is the immutable result of a successful execution: the status
// code and the decoded body text.
type Response struct {
	statusCode int
	body       string
}

// NewResponse creates a Response.
func NewResponse(statusCode int, body string) *Response {
	return &Response{statusCode: statusCode, body: body}
}

// StatusCode returns the HTTP status code.
func (r *Response) StatusCode() int {
	return r.statusCode
}

// Body returns the response body as text.
func (r *Response) Body() string {
	return r.body
}

// IsSuccess returns true if the response status code is in the 2xx range
func (r *Response) IsSuccess() bool {
	return r.statusCode >= 200 && r.statusCode < 300
}

// IsRedirect returns true if the response status code is in the 3xx range
func (r *Response) IsRedirect() bool {
	return r.statusCode >= 300 && r.statusCode < 400
}

// Equal reports whether r and other carry the same status code and body.
func (r *Response) Equal(other *Response) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.statusCode == other.statusCode && r.body == other.body
}

// String renders the response as HttpResponse{statusCode=200, body='...'}.
func (r *Response) String() string {
	return fmt.Sprintf("HttpResponse{statusCode=%d, body='%s'}", r.statusCode, r.body)
}
