package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/revere-dev/webrequest/http"
	"github.com/revere-dev/webrequest/internal/output"
	"github.com/revere-dev/webrequest/pkg/jsonpath"
	"github.com/revere-dev/webrequest/pkg/jsonschema"
)

// checks are applied to a successful response.
type checks struct {
	extract map[string]string
	schema  *jsonschema.Schema
}

// newResult describes req before it is sent.
func newResult(name string, req *http.Request) *output.Result {
	return &output.Result{
		ID:          uuid.NewString(),
		Name:        name,
		Method:      req.Method(),
		URL:         req.URL().String(),
		Headers:     req.Headers(),
		RequestBody: req.Body(),
	}
}

// finish records the outcome of an execution and applies c.
func finish(result *output.Result, conn *http.Connection, resp *http.Response, err error, elapsed time.Duration, c checks) {
	result.Response = resp
	result.Err = err
	result.Duration = elapsed
	// A future that timed out or was closed may still be running.
	if !errors.Is(err, http.ErrAsyncTimeout) && !errors.Is(err, http.ErrClientClosed) {
		result.Timing = conn.Timing()
	}
	if err != nil {
		return
	}

	if len(c.extract) > 0 {
		values, err := jsonpath.FromResponse(resp, c.extract)
		result.Extracted = values
		if err != nil {
			result.Failures = append(result.Failures, err.Error())
		}
	}

	if c.schema != nil {
		for _, violation := range c.schema.ValidateResponse(resp) {
			result.Failures = append(result.Failures, "schema: "+violation.Error())
		}
	}
}

// parseHeader splits "Key: Value".
func parseHeader(raw string) (string, string, error) {
	key, value, ok := strings.Cut(raw, ":")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid header %q, expected \"Key: Value\"", raw)
	}
	return key, strings.TrimSpace(value), nil
}

// parseAssignments splits name=value pairs.
func parseAssignments(flag string, raw []string) (map[string]string, error) {
	values := make(map[string]string, len(raw))
	for _, item := range raw {
		name, value, ok := strings.Cut(item, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --%s %q, expected name=value", flag, item)
		}
		values[name] = value
	}
	return values, nil
}
