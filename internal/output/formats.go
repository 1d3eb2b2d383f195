package output

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/revere-dev/webrequest/http"
	"github.com/revere-dev/webrequest/internal/stats"
)

// OutputFormat represents the available output formats
type OutputFormat string

const (
	// FormatText is the default human-readable text format
	FormatText OutputFormat = "text"
	// FormatJSON outputs in JSON format
	FormatJSON OutputFormat = "json"
	// FormatYAML outputs in YAML format
	FormatYAML OutputFormat = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(name string) (OutputFormat, error) {
	switch f := OutputFormat(name); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s (expected text, json or yaml)", name)
	}
}

// Result is the outcome of one execution, as shown to the user.
type Result struct {
	// ID correlates the result with log lines.
	ID          string
	Name        string
	Method      string
	URL         string
	Headers     map[string]string
	RequestBody string

	Response *http.Response
	Err      error
	Duration time.Duration
	Timing   http.TimingInfo

	Extracted map[string]string
	// Failures lists extraction and schema problems found in a response
	// that was otherwise successful.
	Failures []string
}

// Passed reports whether the execution succeeded and every check held.
func (r *Result) Passed() bool {
	return r.Err == nil && len(r.Failures) == 0
}

// StatusCode returns the response status, the status carried by an
// HTTPError, or 0.
func (r *Result) StatusCode() int {
	if r.Response != nil {
		return r.Response.StatusCode()
	}
	if code, ok := http.StatusCode(r.Err); ok {
		return code
	}
	return 0
}

// FormatProvider is an interface for different output formatters
type FormatProvider interface {
	// FormatResult renders one result.
	FormatResult(result *Result) string
	// FormatRun renders the results of a batch followed by its summary.
	FormatRun(results []*Result, summary stats.Summary) string
}

// GetFormatter returns the appropriate formatter for the given format
func GetFormatter(format OutputFormat, verbose bool, noColor bool) FormatProvider {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Verbose: verbose, Pretty: true}
	case FormatYAML:
		return &YAMLFormatter{Verbose: verbose}
	default:
		return NewFormatter(verbose, noColor)
	}
}

// TimingData represents detailed timing information for an HTTP request
type TimingData struct {
	DNSLookup       int64 `json:"dnsLookupMs" yaml:"dnsLookupMs"`
	TCPConnection   int64 `json:"tcpConnectionMs" yaml:"tcpConnectionMs"`
	TLSHandshake    int64 `json:"tlsHandshakeMs" yaml:"tlsHandshakeMs"`
	TimeToFirstByte int64 `json:"timeToFirstByteMs" yaml:"timeToFirstByteMs"`
	Headers         int64 `json:"headersMs" yaml:"headersMs"`
}

// ErrorData represents a failed execution
type ErrorData struct {
	StatusCode int    `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	Message    string `json:"message" yaml:"message"`
}

// ResultData represents the structured data of a Result
type ResultData struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name,omitempty" yaml:"name,omitempty"`
	Method      string            `json:"method" yaml:"method"`
	URL         string            `json:"url" yaml:"url"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	RequestBody string            `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Passed      bool              `json:"passed" yaml:"passed"`
	StatusCode  int               `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	Body        interface{}       `json:"body,omitempty" yaml:"body,omitempty"`
	Error       *ErrorData        `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMs  int64             `json:"durationMs" yaml:"durationMs"`
	Timing      *TimingData       `json:"timing,omitempty" yaml:"timing,omitempty"`
	Extracted   map[string]string `json:"extracted,omitempty" yaml:"extracted,omitempty"`
	Failures    []string          `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// SummaryData represents the structured data of a run summary
type SummaryData struct {
	Total       int                 `json:"total" yaml:"total"`
	Success     int                 `json:"success" yaml:"success"`
	Failed      int                 `json:"failed" yaml:"failed"`
	SuccessRate float64             `json:"successRate" yaml:"successRate"`
	MinMs       float64             `json:"minMs" yaml:"minMs"`
	MeanMs      float64             `json:"meanMs" yaml:"meanMs"`
	P50Ms       float64             `json:"p50Ms" yaml:"p50Ms"`
	P90Ms       float64             `json:"p90Ms" yaml:"p90Ms"`
	P99Ms       float64             `json:"p99Ms" yaml:"p99Ms"`
	MaxMs       float64             `json:"maxMs" yaml:"maxMs"`
	Statuses    []stats.StatusCount `json:"statuses,omitempty" yaml:"statuses,omitempty"`
}

// RunData represents the structured data of a batch run
type RunData struct {
	Results []ResultData `json:"results" yaml:"results"`
	Summary SummaryData  `json:"summary" yaml:"summary"`
}

// NewResultData converts a Result for serialization. Request headers, the
// request body and timings are only included when verbose is set.
func NewResultData(r *Result, verbose bool) ResultData {
	data := ResultData{
		ID:         r.ID,
		Name:       r.Name,
		Method:     r.Method,
		URL:        r.URL,
		Passed:     r.Passed(),
		StatusCode: r.StatusCode(),
		DurationMs: r.Duration.Milliseconds(),
		Extracted:  r.Extracted,
		Failures:   r.Failures,
	}

	if r.Response != nil && r.Response.Body() != "" {
		var body interface{}
		if err := json.Unmarshal([]byte(r.Response.Body()), &body); err != nil {
			body = r.Response.Body()
		}
		data.Body = body
	}

	if r.Err != nil {
		data.Error = &ErrorData{Message: r.Err.Error()}
		if code, ok := http.StatusCode(r.Err); ok {
			data.Error.StatusCode = code
		}
	}

	if verbose {
		data.Headers = r.Headers
		data.RequestBody = r.RequestBody
		data.Timing = &TimingData{
			DNSLookup:       r.Timing.DNSLookupTime.Milliseconds(),
			TCPConnection:   r.Timing.TCPConnectTime.Milliseconds(),
			TLSHandshake:    r.Timing.TLSHandshakeTime.Milliseconds(),
			TimeToFirstByte: r.Timing.TimeToFirstByte.Milliseconds(),
			Headers:         r.Timing.HeaderTime.Milliseconds(),
		}
	}

	return data
}

// NewSummaryData converts a Summary for serialization.
func NewSummaryData(s stats.Summary) SummaryData {
	return SummaryData{
		Total:       s.Total,
		Success:     s.Success,
		Failed:      s.Failed,
		SuccessRate: s.SuccessRate(),
		MinMs:       millis(s.Min),
		MeanMs:      millis(s.Mean),
		P50Ms:       millis(s.P50),
		P90Ms:       millis(s.P90),
		P99Ms:       millis(s.P99),
		MaxMs:       millis(s.Max),
		Statuses:    s.Statuses,
	}
}

func newRunData(results []*Result, summary stats.Summary, verbose bool) RunData {
	run := RunData{
		Results: make([]ResultData, 0, len(results)),
		Summary: NewSummaryData(summary),
	}
	for _, r := range results {
		run.Results = append(run.Results, NewResultData(r, verbose))
	}
	return run
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	Verbose bool
	Pretty  bool
}

// FormatResult formats a result as JSON
func (f *JSONFormatter) FormatResult(result *Result) string {
	return f.marshal(NewResultData(result, f.Verbose))
}

// FormatRun formats a batch of results as one JSON document
func (f *JSONFormatter) FormatRun(results []*Result, summary stats.Summary) string {
	return f.marshal(newRunData(results, summary, f.Verbose))
}

func (f *JSONFormatter) marshal(v interface{}) string {
	var output []byte
	var err error
	if f.Pretty {
		output, err = json.MarshalIndent(v, "", "  ")
	} else {
		output, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Sprintf(`{"error":"Failed to marshal output: %s"}`, err)
	}
	return string(output) + "\n"
}

// YAMLFormatter formats output as YAML
type YAMLFormatter struct {
	Verbose bool
}

// FormatResult formats a result as YAML
func (f *YAMLFormatter) FormatResult(result *Result) string {
	return marshalYAML(NewResultData(result, f.Verbose))
}

// FormatRun formats a batch of results as one YAML document
func (f *YAMLFormatter) FormatRun(results []*Result, summary stats.Summary) string {
	return marshalYAML(newRunData(results, summary, f.Verbose))
}

func marshalYAML(v interface{}) string {
	output, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("error: Failed to marshal output: %s\n", err)
	}
	return string(output)
}
