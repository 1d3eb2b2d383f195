package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/revere-dev/webrequest/http"
	"github.com/revere-dev/webrequest/internal/stats"
)

// Formatter is responsible for formatting results in text format
type Formatter struct {
	Verbose bool
	NoColor bool
	colors  *ColorScheme
}

// NewFormatter creates a new formatter with the given options
func NewFormatter(verbose, noColor bool) *Formatter {
	return &Formatter{
		Verbose: verbose,
		NoColor: noColor,
		colors:  SchemeFor(noColor),
	}
}

// FormatResult formats a single result for display
func (f *Formatter) FormatResult(result *Result) string {
	var buf strings.Builder
	f.writeRequest(&buf, result)
	f.writeOutcome(&buf, result)
	return buf.String()
}

// FormatRun formats every result under its name, then the summary
func (f *Formatter) FormatRun(results []*Result, summary stats.Summary) string {
	var buf strings.Builder
	for _, result := range results {
		icon := SuccessIcon(f.NoColor)
		if !result.Passed() {
			icon = ErrorIcon(f.NoColor)
		}
		buf.WriteString(fmt.Sprintf("%s %s\n", icon, f.colors.Name.Sprint(result.Name)))
		f.writeRequest(&buf, result)
		f.writeOutcome(&buf, result)
		buf.WriteString("\n")
	}
	buf.WriteString(f.FormatSummary(summary))
	return buf.String()
}

// FormatSummary formats the outcome and latency distribution of a run
func (f *Formatter) FormatSummary(s stats.Summary) string {
	var buf strings.Builder

	failed := fmt.Sprintf("%d failed", s.Failed)
	if s.Failed > 0 {
		failed = f.colors.Error.Sprint(failed)
	}
	buf.WriteString(fmt.Sprintf("%s %d requests, %s, %s (%.1f%% success)\n",
		f.colors.Highlight.Sprint("SUMMARY:"),
		s.Total,
		f.colors.Success.Sprintf("%d succeeded", s.Success),
		failed,
		s.SuccessRate()*100))

	if s.Total == 0 {
		return buf.String()
	}

	buf.WriteString(fmt.Sprintf("  Latency: min %s, p50 %s, p90 %s, p99 %s, max %s, mean %s\n",
		formatDuration(s.Min), formatDuration(s.P50), formatDuration(s.P90),
		formatDuration(s.P99), formatDuration(s.Max), formatDuration(s.Mean)))

	if len(s.Statuses) > 0 {
		parts := make([]string, 0, len(s.Statuses))
		for _, sc := range s.Statuses {
			parts = append(parts, fmt.Sprintf("%s x%d", f.colors.Status(sc.Status).Sprint(sc.Status), sc.Count))
		}
		buf.WriteString(fmt.Sprintf("  Status codes: %s\n", strings.Join(parts, ", ")))
	}

	return buf.String()
}

func (f *Formatter) writeRequest(buf *strings.Builder, r *Result) {
	buf.WriteString(fmt.Sprintf("▶ REQUEST: %s %s\n", f.colors.Method.Sprint(r.Method), f.colors.URL.Sprint(r.URL)))
	if !f.Verbose {
		return
	}

	if len(r.Headers) > 0 {
		buf.WriteString("  Headers:\n")
		writeHeaders(buf, r.Headers, f.colors)
	}
	if r.RequestBody != "" {
		buf.WriteString("  Body: ")
		buf.WriteString(formatJSONString(r.RequestBody))
		buf.WriteString("\n")
	}
}

func (f *Formatter) writeOutcome(buf *strings.Builder, r *Result) {
	if r.Response != nil {
		code := r.Response.StatusCode()
		buf.WriteString(fmt.Sprintf("◀ RESPONSE: %s (%s)\n",
			f.colors.Status(code).Sprint(code), formatDuration(r.Duration)))
		f.writeTiming(buf, r.Timing)

		if body := r.Response.Body(); body != "" {
			buf.WriteString("  Body:\n  ")
			buf.WriteString(formatJSONString(body))
			buf.WriteString("\n")
		}
	} else if r.Err != nil {
		f.writeError(buf, r)
	}

	if len(r.Extracted) > 0 {
		buf.WriteString("  Extracted:\n")
		names := make([]string, 0, len(r.Extracted))
		for name := range r.Extracted {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			buf.WriteString(fmt.Sprintf("    %s = %s\n", f.colors.HeaderKey.Sprint(name), r.Extracted[name]))
		}
	}

	for _, failure := range r.Failures {
		buf.WriteString(fmt.Sprintf("  %s %s\n", WarningIcon(f.NoColor), failure))
	}
}

func (f *Formatter) writeError(buf *strings.Builder, r *Result) {
	// Only a status failure has a response; transport failures carry a cause.
	var httpErr *http.HTTPError
	if errors.As(r.Err, &httpErr) && httpErr.Cause == nil {
		buf.WriteString(fmt.Sprintf("◀ RESPONSE: %s (%s)\n",
			f.colors.Status(httpErr.StatusCode).Sprint(httpErr.StatusCode), formatDuration(r.Duration)))
		f.writeTiming(buf, r.Timing)
	}
	buf.WriteString(fmt.Sprintf("%s %s\n", ErrorIcon(f.NoColor), f.colors.Error.Sprint(r.Err.Error())))
}

func (f *Formatter) writeTiming(buf *strings.Builder, t http.TimingInfo) {
	if !f.Verbose {
		return
	}
	buf.WriteString("  Timing:\n")
	buf.WriteString(fmt.Sprintf("    DNS Lookup:         %s\n", formatDuration(t.DNSLookupTime)))
	buf.WriteString(fmt.Sprintf("    TCP Connection:     %s\n", formatDuration(t.TCPConnectTime)))
	buf.WriteString(fmt.Sprintf("    TLS Handshake:      %s\n", formatDuration(t.TLSHandshakeTime)))
	buf.WriteString(fmt.Sprintf("    Time to First Byte: %s\n", formatDuration(t.TimeToFirstByte)))
	buf.WriteString(fmt.Sprintf("    Headers Received:   %s\n", formatDuration(t.HeaderTime)))
}

func writeHeaders(buf *strings.Builder, headers map[string]string, colors *ColorScheme) {
	keys := make([]string, 0, len(headers))
	for key := range headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		buf.WriteString(fmt.Sprintf("    %s: %s\n", colors.HeaderKey.Sprint(key), headers[key]))
	}
}

// formatDuration renders d in milliseconds, or microseconds below 1ms
func formatDuration(d time.Duration) string {
	if d > 0 && d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}

// formatJSONString attempts to pretty-print a JSON string
func formatJSONString(s string) string {
	var prettyJSON bytes.Buffer
	err := json.Indent(&prettyJSON, []byte(s), "  ", "  ")
	if err != nil {
		return s
	}
	return prettyJSON.String()
}
