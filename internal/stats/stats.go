// Package stats aggregates the outcome and latency of a batch of executions.
package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	// Latencies are recorded in microseconds between 1µs and 10 minutes.
	histogramMin     = 1
	histogramMax     = int64(10 * time.Minute / time.Microsecond)
	histogramSigFigs = 3
)

// Recorder collects execution results. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	hist     *hdrhistogram.Histogram
	success  int
	failed   int
	statuses map[int]int
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		hist:     hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs),
		statuses: make(map[int]int),
	}
}

// Record adds one execution. status is the HTTP status, or 0 when none was
// received.
func (r *Recorder) Record(latency time.Duration, status int, ok bool) {
	micros := latency.Microseconds()
	if micros < histogramMin {
		micros = histogramMin
	}
	if micros > histogramMax {
		micros = histogramMax
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// HDR histograms are not safe for concurrent writers. RecordValue only
	// fails for values outside the trackable range, which the clamp above
	// rules out.
	_ = r.hist.RecordValue(micros)
	if ok {
		r.success++
	} else {
		r.failed++
	}
	if status > 0 {
		r.statuses[status]++
	}
}

// StatusCount is the number of executions that ended with a status code.
type StatusCount struct {
	Status int `json:"status" yaml:"status"`
	Count  int `json:"count" yaml:"count"`
}

// Summary is a point-in-time view of a Recorder.
type Summary struct {
	Total    int           `json:"total" yaml:"total"`
	Success  int           `json:"success" yaml:"success"`
	Failed   int           `json:"failed" yaml:"failed"`
	Min      time.Duration `json:"min" yaml:"min"`
	Max      time.Duration `json:"max" yaml:"max"`
	Mean     time.Duration `json:"mean" yaml:"mean"`
	P50      time.Duration `json:"p50" yaml:"p50"`
	P90      time.Duration `json:"p90" yaml:"p90"`
	P99      time.Duration `json:"p99" yaml:"p99"`
	Statuses []StatusCount `json:"statuses,omitempty" yaml:"statuses,omitempty"`
}

// SuccessRate returns the fraction of successful executions, or 0 when
// nothing was recorded.
func (s Summary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Success) / float64(s.Total)
}

// Summary snapshots the recorded executions.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Summary{
		Total:   r.success + r.failed,
		Success: r.success,
		Failed:  r.failed,
	}
	if s.Total == 0 {
		return s
	}

	s.Min = micros(r.hist.Min())
	s.Max = micros(r.hist.Max())
	s.Mean = time.Duration(r.hist.Mean() * float64(time.Microsecond))
	s.P50 = micros(r.hist.ValueAtQuantile(50))
	s.P90 = micros(r.hist.ValueAtQuantile(90))
	s.P99 = micros(r.hist.ValueAtQuantile(99))

	for status, count := range r.statuses {
		s.Statuses = append(s.Statuses, StatusCount{Status: status, Count: count})
	}
	sort.Slice(s.Statuses, func(i, j int) bool { return s.Statuses[i].Status < s.Statuses[j].Status })

	return s
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
