package eventfmt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartLine(t *testing.T) {
	var buf bytes.Buffer
	f := New(&buf, TimestampOff)
	f.Start("0", []string{"echo", "hi"})
	assert.Equal(t, "$│0│echo hi\n", buf.String())
}

func TestOutSplitsOnNewlineAndDropsTrailingEmpty(t *testing.T) {
	var buf bytes.Buffer
	f := New(&buf, TimestampOff)
	f.Out("B", []byte("one\ntwo\n"))
	assert.Equal(t, "<│B│one\n<│B│two\n", buf.String())
}

func TestOutWithoutTrailingNewlineEmitsOneLine(t *testing.T) {
	var buf bytes.Buffer
	f := New(&buf, TimestampOff)
	f.Out("B", []byte("partial"))
	assert.Equal(t, "<│B│partial\n", buf.String())
}

func TestEndEmitsDecimalExitCode(t *testing.T) {
	var buf bytes.Buffer
	f := New(&buf, TimestampOff)
	f.End("0", 137)
	assert.Equal(t, "=│0│137\n", buf.String())
}

func TestErrSigil(t *testing.T) {
	var buf bytes.Buffer
	f := New(&buf, TimestampOff)
	f.Err("0", []byte("boom"))
	assert.Equal(t, "!│0│boom\n", buf.String())
}

func TestRelativeTimestampStartsAtZero(t *testing.T) {
	var buf bytes.Buffer
	f := New(&buf, TimestampRelative)
	f.Start("0", []string{"echo", "hi"})
	require.True(t, strings.HasPrefix(buf.String(), "00:00:0"))
	assert.Contains(t, buf.String(), "|$│0│echo hi")
}

func TestInvalidColorNameDisablesColoring(t *testing.T) {
	var buf bytes.Buffer
	f := New(&buf, TimestampOff)
	f.SetColor("0", "not-a-real-color")
	f.Start("0", []string{"echo"})
	assert.Equal(t, "$│0│echo\n", buf.String())
}

func TestHexColorAppliesSGR(t *testing.T) {
	var buf bytes.Buffer
	f := New(&buf, TimestampOff)
	f.SetColor("0", "00ff00")
	f.Start("0", []string{"echo"})
	// The key is wrapped in an SGR truecolor escape; the plain text is gone
	// from a literal match but the sigils and separators remain.
	out := buf.String()
	assert.Contains(t, out, "$│")
	assert.Contains(t, out, "│echo\n")
	assert.NotEqual(t, "$│0│echo\n", out)
}
