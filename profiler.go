package backdrop

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/stat"
)

// Profiler times named scopes inside a frame and keeps a rolling window of
// whole-frame durations.
type Profiler struct {
	Scopes     map[string]time.Duration
	StartTimes map[string]time.Time
	Counts     map[string]int
	Order      []string

	window int
	frames []float64
	now    func() time.Time
}

func NewProfiler(window int) *Profiler {
	if window <= 0 {
		window = 120
	}
	return &Profiler{
		Scopes:     make(map[string]time.Duration),
		StartTimes: make(map[string]time.Time),
		Counts:     make(map[string]int),
		Order:      make([]string, 0),
		window:     window,
		frames:     make([]float64, 0, window),
		now:        time.Now,
	}
}

func (p *Profiler) BeginScope(name string) {
	p.StartTimes[name] = p.now()
	for _, n := range p.Order {
		if n == name {
			return
		}
	}
	p.Order = append(p.Order, name)
}

func (p *Profiler) EndScope(name string) {
	if start, ok := p.StartTimes[name]; ok {
		p.Scopes[name] = p.now().Sub(start)
	}
}

func (p *Profiler) SetCount(name string, count int) {
	p.Counts[name] = count
}

// RecordFrame adds one frame interval. It reports true when the window is
// full, after which the caller reads Summary and calls ResetWindow.
func (p *Profiler) RecordFrame(d time.Duration) bool {
	p.frames = append(p.frames, float64(d.Microseconds())/1000.0)
	return len(p.frames) >= p.window
}

func (p *Profiler) ResetWindow() {
	p.frames = p.frames[:0]
}

// FrameStats summarises a window of frame intervals, in milliseconds.
type FrameStats struct {
	Frames   int     `csv:"frames"`
	MeanMS   float64 `csv:"mean_ms"`
	StdDevMS float64 `csv:"stddev_ms"`
	P50MS    float64 `csv:"p50_ms"`
	P95MS    float64 `csv:"p95_ms"`
	MaxMS    float64 `csv:"max_ms"`
	FPS      float64 `csv:"fps"`
}

func (p *Profiler) Summary() FrameStats {
	n := len(p.frames)
	if n == 0 {
		return FrameStats{}
	}
	sorted := make([]float64, n)
	copy(sorted, p.frames)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	fs := FrameStats{
		Frames:   n,
		MeanMS:   mean,
		StdDevMS: std,
		P50MS:    stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95MS:    stat.Quantile(0.95, stat.Empirical, sorted, nil),
		MaxMS:    sorted[n-1],
	}
	if n == 1 {
		fs.StdDevMS = 0
	}
	if mean > 0 {
		fs.FPS = 1000.0 / mean
	}
	return fs
}

func (p *Profiler) GetStatsString() string {
	var sb strings.Builder

	sb.WriteString("Timings (CPU):\n")
	for _, name := range p.Order {
		ms := float64(p.Scopes[name].Microseconds()) / 1000.0
		sb.WriteString(fmt.Sprintf("  %-15s: %.2f ms\n", name, ms))
	}

	sb.WriteString("\nStats:\n")
	keys := make([]string, 0, len(p.Counts))
	for k := range p.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %-15s: %d\n", k, p.Counts[k]))
	}
	return sb.String()
}

// StatsWriter appends FrameStats rows to a CSV stream, writing the header
// with the first row only.
type StatsWriter struct {
	w             io.Writer
	headerWritten bool
}

func NewStatsWriter(w io.Writer) *StatsWriter {
	return &StatsWriter{w: w}
}

func (sw *StatsWriter) Write(fs FrameStats) error {
	if sw == nil || sw.w == nil {
		return nil
	}
	records := []FrameStats{fs}
	if !sw.headerWritten {
		if err := gocsv.Marshal(records, sw.w); err != nil {
			return fmt.Errorf("writing frame stats: %w", err)
		}
		sw.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, sw.w); err != nil {
		return fmt.Errorf("writing frame stats: %w", err)
	}
	return nil
}
