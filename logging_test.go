package backdrop

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriterLogger_Levels(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewWriterLogger(&out, &errOut, "bd", false)

	l.Debugf("hidden %d", 1)
	l.Infof("hello %s", "world")
	l.Warnf("careful")
	l.Errorf("broken")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "hello world")
	assert.Contains(t, out.String(), "bd")
	assert.Contains(t, errOut.String(), "careful")
	assert.Contains(t, errOut.String(), "broken")

	l.SetDebug(true)
	assert.True(t, l.DebugEnabled())
	l.Debugf("shown %d", 2)
	assert.Contains(t, out.String(), "shown 2")
}

func TestLoggerOr(t *testing.T) {
	assert.NotNil(t, loggerOr(nil))
	l := NewNopLogger()
	assert.Same(t, l, loggerOr(l))
}

func TestWithScope(t *testing.T) {
	var out, errOut bytes.Buffer
	base := NewWriterLogger(&out, &errOut, "bd", false)
	l := WithScope(WithScope(base, "session 1234"), "gpu")

	l.Infof("ready: %d groups", 4)
	l.Errorf("lost device")
	l.Debugf("hidden")
	assert.Contains(t, out.String(), "[bd] INFO: session 1234/gpu: ready: 4 groups")
	assert.Contains(t, errOut.String(), "session 1234/gpu: lost device")
	assert.NotContains(t, out.String(), "hidden")

	base.SetDebug(true)
	assert.True(t, l.DebugEnabled(), "debug state follows the wrapped logger")
	l.Debugf("shown")
	assert.Contains(t, out.String(), "session 1234/gpu: shown")

	assert.Same(t, base, WithScope(base, ""))
	assert.NotNil(t, WithScope(nil, "x"))
}
