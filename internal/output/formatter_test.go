package output

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/revere-dev/webrequest/http"
	"github.com/revere-dev/webrequest/internal/stats"
)

func successResult() *Result {
	return &Result{
		ID:          "4f1c",
		Name:        "getUser",
		Method:      "GET",
		URL:         "https://api.example.com/users/1",
		Headers:     map[string]string{"Accept": "application/json"},
		RequestBody: "",
		Response:    http.NewResponse(200, `{"id":1,"name":"Ada"}`),
		Duration:    42 * time.Millisecond,
		Timing:      http.TimingInfo{DNSLookupTime: 3 * time.Millisecond, HeaderTime: 40 * time.Millisecond},
		Extracted:   map[string]string{"name": "Ada"},
	}
}

func TestFormatter_FormatResult(t *testing.T) {
	f := NewFormatter(false, true)
	out := f.FormatResult(successResult())

	expected := []string{
		"▶ REQUEST: GET https://api.example.com/users/1",
		"◀ RESPONSE: 200 (42ms)",
		`"name": "Ada"`,
		"Extracted:",
		"name = Ada",
	}
	for _, want := range expected {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Timing:") || strings.Contains(out, "Headers:") {
		t.Errorf("Did not expect verbose sections, got:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("Expected no ANSI escapes with colors disabled")
	}
}

func TestFormatter_Verbose(t *testing.T) {
	r := successResult()
	r.Method = "POST"
	r.RequestBody = `{"name":"Ada"}`

	out := NewFormatter(true, true).FormatResult(r)
	for _, want := range []string{"Headers:", "Accept: application/json", "Body: {", "Timing:", "DNS Lookup:         3ms", "Headers Received:   40ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestFormatter_Errors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		contains    []string
		notContains []string
	}{
		{
			name:     "status failure",
			err:      http.NewHTTPError(404, "HTTP request failed with status code: 404"),
			contains: []string{"◀ RESPONSE: 404", "✗ HTTP request failed with status code: 404"},
		},
		{
			name:        "transport failure",
			err:         http.WrapHTTPError(500, "I/O error occurred while processing the request", errors.New("connection refused")),
			contains:    []string{"✗ I/O error occurred while processing the request: connection refused"},
			notContains: []string{"◀ RESPONSE"},
		},
		{
			name:        "async timeout",
			err:         http.ErrAsyncTimeout,
			contains:    []string{"✗ "},
			notContains: []string{"◀ RESPONSE"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewFormatter(false, true).FormatResult(&Result{Method: "GET", URL: "http://x", Err: tt.err})
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("Expected %q in:\n%s", want, out)
				}
			}
			for _, unwanted := range tt.notContains {
				if strings.Contains(out, unwanted) {
					t.Errorf("Did not expect %q in:\n%s", unwanted, out)
				}
			}
		})
	}
}

func TestFormatter_Failures(t *testing.T) {
	r := successResult()
	r.Failures = []string{"schema: validation error at /id: expected string"}

	if r.Passed() {
		t.Error("Expected result with failures not to pass")
	}
	out := NewFormatter(false, true).FormatResult(r)
	if !strings.Contains(out, "⚠ schema: validation error at /id") {
		t.Errorf("Expected failure line, got:\n%s", out)
	}
}

func TestFormatter_FormatRun(t *testing.T) {
	rec := stats.NewRecorder()
	rec.Record(10*time.Millisecond, 200, true)
	rec.Record(30*time.Millisecond, 404, false)

	failed := &Result{Name: "missing", Method: "GET", URL: "http://x/missing", Err: http.NewHTTPError(404, "HTTP request failed with status code: 404")}
	out := NewFormatter(false, true).FormatRun([]*Result{successResult(), failed}, rec.Summary())

	for _, want := range []string{
		"✓ getUser",
		"✗ missing",
		"SUMMARY: 2 requests, 1 succeeded, 1 failed (50.0% success)",
		"Latency: min 10ms",
		"Status codes: 200 x1, 404 x1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in:\n%s", want, out)
		}
	}
}

func TestFormatter_EmptySummary(t *testing.T) {
	out := NewFormatter(false, true).FormatSummary(stats.Summary{})
	if !strings.Contains(out, "0 requests") || strings.Contains(out, "Latency") {
		t.Errorf("Unexpected summary:\n%s", out)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		0:                       "0ms",
		250 * time.Microsecond:  "250µs",
		1500 * time.Microsecond: "1ms",
		2 * time.Second:         "2000ms",
	}
	for d, want := range tests {
		if got := formatDuration(d); got != want {
			t.Errorf("formatDuration(%v) = %s, want %s", d, got, want)
		}
	}
}

func TestFormatJSONString(t *testing.T) {
	if got := formatJSONString("not json"); got != "not json" {
		t.Errorf("Expected input unchanged, got %q", got)
	}
	if got := formatJSONString(`{"a":1}`); got != "{\n    \"a\": 1\n  }" {
		t.Errorf("Unexpected pretty output %q", got)
	}
}
