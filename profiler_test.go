package backdrop

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfiler_Scopes(t *testing.T) {
	p := NewProfiler(10)
	clock := time.Unix(0, 0)
	p.now = func() time.Time { return clock }

	p.BeginScope("simulate")
	clock = clock.Add(3 * time.Millisecond)
	p.EndScope("simulate")
	p.BeginScope("draw")
	clock = clock.Add(time.Millisecond)
	p.EndScope("draw")
	p.BeginScope("simulate")
	p.EndScope("simulate")
	p.EndScope("never-started")

	assert.Equal(t, []string{"simulate", "draw"}, p.Order)
	assert.Equal(t, time.Duration(0), p.Scopes["simulate"])
	assert.Equal(t, time.Millisecond, p.Scopes["draw"])

	p.SetCount("particles", 4200)
	s := p.GetStatsString()
	assert.Contains(t, s, "draw")
	assert.Contains(t, s, "1.00 ms")
	assert.Contains(t, s, "4200")
}

func TestProfiler_Summary(t *testing.T) {
	p := NewProfiler(4)
	assert.Equal(t, FrameStats{}, p.Summary())

	for i, ms := range []int{10, 20, 30} {
		full := p.RecordFrame(time.Duration(ms) * time.Millisecond)
		assert.False(t, full, "frame %d", i)
	}
	assert.True(t, p.RecordFrame(40*time.Millisecond))

	fs := p.Summary()
	assert.Equal(t, 4, fs.Frames)
	assert.InDelta(t, 25, fs.MeanMS, 1e-9)
	assert.InDelta(t, 40, fs.MaxMS, 1e-9)
	assert.InDelta(t, 40, fs.FPS, 1e-9)
	assert.Greater(t, fs.StdDevMS, 0.0)
	assert.LessOrEqual(t, fs.P50MS, fs.P95MS)

	p.ResetWindow()
	assert.Equal(t, 0, p.Summary().Frames)
}

func TestStatsWriter_HeaderOnce(t *testing.T) {
	var buf bytes.Buffer
	w := NewStatsWriter(&buf)
	require.NoError(t, w.Write(FrameStats{Frames: 2, MeanMS: 16.6, FPS: 60}))
	require.NoError(t, w.Write(FrameStats{Frames: 2, MeanMS: 33.3, FPS: 30}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "frames,mean_ms,stddev_ms,p50_ms,p95_ms,max_ms,fps", lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "2,33.3,"))

	var nilWriter *StatsWriter
	assert.NoError(t, nilWriter.Write(FrameStats{}))
}
