package common

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks the progress of one index scan. Counters may be bumped
// from the scanning goroutine while a progress printer reads them.
type Metrics struct {
	records  atomic.Int64
	bytes    atomic.Int64
	total    atomic.Int64
	reorders atomic.Int64

	mu      sync.Mutex
	started time.Time
	stopped time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// Start marks the beginning of the scan. Later calls are ignored.
func (m *Metrics) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started.IsZero() {
		m.started = time.Now()
	}
}

func (m *Metrics) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started.IsZero() && m.stopped.IsZero() {
		m.stopped = time.Now()
	}
}

// AddRecord counts one indexed record of size bytes.
func (m *Metrics) AddRecord(size int64) {
	if size > 0 {
		m.records.Add(1)
		m.bytes.Add(size)
	}
}

// IncReorder counts a record kind whose entries had to be re-sorted by time.
func (m *Metrics) IncReorder() { m.reorders.Add(1) }

// SetTotalBytes sets the file size the scan is working through.
func (m *Metrics) SetTotalBytes(total int64) {
	m.total.Store(max(total, 0))
}

func (m *Metrics) elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.started.IsZero():
		return 0
	case m.stopped.IsZero():
		return time.Since(m.started)
	default:
		return m.stopped.Sub(m.started)
	}
}

// Snapshot is a consistent-enough copy of the counters for display.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Duration:   m.elapsed(),
		Records:    m.records.Load(),
		Bytes:      m.bytes.Load(),
		TotalBytes: m.total.Load(),
		Reorders:   m.reorders.Load(),
	}
}

type MetricsSnapshot struct {
	Duration   time.Duration
	Records    int64
	Bytes      int64
	TotalBytes int64
	Reorders   int64
}

func (s MetricsSnapshot) ThroughputBytesPerSecond() float64 {
	secs := s.Duration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.Bytes) / secs
}

// Completion is the scanned fraction of TotalBytes, clamped to [0, 1].
func (s MetricsSnapshot) Completion() float64 {
	if s.TotalBytes <= 0 || s.Bytes <= 0 {
		return 0
	}
	return min(float64(s.Bytes)/float64(s.TotalBytes), 1)
}

var byteUnits = []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}

// FormatBytes renders b with a binary unit, e.g. "1.50 KiB".
func FormatBytes(b int64) string {
	if b < 1024 {
		return fmt.Sprintf("%d B", b)
	}
	v := float64(b) / 1024
	i := 0
	for v >= 1024 && i < len(byteUnits)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%.2f %s", v, byteUnits[i])
}

func formatProgressLine(s MetricsSnapshot) string {
	var b strings.Builder
	b.WriteString("Indexed: ")
	if s.TotalBytes > 0 {
		fmt.Fprintf(&b, "%6.2f%% (%s / %s)", s.Completion()*100, FormatBytes(s.Bytes), FormatBytes(s.TotalBytes))
	} else {
		b.WriteString(FormatBytes(s.Bytes))
	}
	fmt.Fprintf(&b, " %d records %.2f MiB/s", s.Records, s.ThroughputBytesPerSecond()/(1<<20))
	return b.String()
}

// StartProgressPrinter rewrites a single progress line on w every interval
// until the returned stop function is called. Stop clears the line and
// waits for the printer goroutine to exit.
func StartProgressPrinter(w io.Writer, m *Metrics, interval time.Duration) (stop func()) {
	if w == nil || m == nil {
		return func() {}
	}
	if interval <= 0 {
		interval = time.Second
	}
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		width := 0
		for {
			select {
			case <-done:
				if width > 0 {
					fmt.Fprint(w, "\r"+strings.Repeat(" ", width)+"\r\n")
				}
				return
			case <-ticker.C:
				line := formatProgressLine(m.Snapshot())
				if n := width - len(line); n > 0 {
					line += strings.Repeat(" ", n)
				}
				width = len(line)
				fmt.Fprint(w, "\r"+line)
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		<-exited
	}
}
