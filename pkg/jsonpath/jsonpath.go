// Package jsonpath extracts values from JSON response bodies using a subset
// of JSONPath ($.a.b, $.list[0], $['key']).
package jsonpath

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/revere-dev/webrequest/http"
)

// ErrNotFound is returned when a path does not match anything.
var ErrNotFound = errors.New("path not found")

// Extract evaluates path against the JSON document body. Scalars are
// returned as their text, objects and arrays as raw JSON, and null as
// "null".
func Extract(body string, path string) (string, error) {
	if body == "" {
		return "", fmt.Errorf("empty JSON document")
	}
	if path == "" {
		return "", fmt.Errorf("empty JSONPath expression")
	}
	if !gjson.Valid(body) {
		return "", fmt.Errorf("response body is not valid JSON")
	}

	result := gjson.Get(body, toGjsonPath(path))
	if !result.Exists() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if result.Type == gjson.Null {
		return "null", nil
	}
	return result.String(), nil
}

// FromResponse evaluates every named path against the response body.
// Values that could be extracted are returned even when others failed; the
// error then lists each failure by name.
func FromResponse(resp *http.Response, paths map[string]string) (map[string]string, error) {
	values := make(map[string]string, len(paths))
	if len(paths) == 0 {
		return values, nil
	}

	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)

	var failures []string
	for _, name := range names {
		value, err := Extract(resp.Body(), paths[name])
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		values[name] = value
	}

	if len(failures) > 0 {
		return values, fmt.Errorf("extraction errors: %s", strings.Join(failures, "; "))
	}
	return values, nil
}

// toGjsonPath converts a JSONPath expression to gjson syntax:
// $.users[0]['name'] becomes users.0.name.
func toGjsonPath(path string) string {
	path = strings.TrimPrefix(strings.TrimSpace(path), "$")
	if path == "" {
		return "@this"
	}

	var b strings.Builder
	for i := 0; i < len(path); i++ {
		switch c := path[i]; c {
		case '[':
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				b.WriteString(path[i:])
				i = len(path)
				continue
			}
			key := strings.Trim(path[i+1:i+end], `'"`)
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(key)
			i += end
		case '.':
			if b.Len() > 0 {
				b.WriteByte('.')
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
