// Package eventfmt is a stateless-per-call translator from (stream-kind,
// key, payload) tuples into a byte stream, per SPEC_FULL.md §4.2. It holds
// only its own configuration (timestamp mode, color palette); it never
// observes supervisor state.
package eventfmt

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// TimestampMode selects how (or whether) each line is time-prefixed.
type TimestampMode int

const (
	TimestampOff TimestampMode = iota
	TimestampAbsolute
	TimestampRelative
)

// sep is the single Unicode box-drawing light vertical used between fields.
const sep = "│"

var sigils = map[string]string{
	"start": "$",
	"out":   "<",
	"err":   "!",
	"end":   "=",
}

// Formatter renders start/out/err/end events as
// "[HH:MM:SS|]SIGIL│KEY│PAYLOAD\n" lines, per SPEC_FULL.md §6.2. Writes to
// the sink are serialized: the mutex is held across the prefix+payload+"\n"
// writes that compose one emitted line, so concurrent callers never
// interleave a partial line.
type Formatter struct {
	mu        sync.Mutex
	writer    io.Writer
	mode      TimestampMode
	start     time.Time
	colorOf   map[string]*color.Color
	noColorOf map[string]bool
}

// New constructs a Formatter writing to w. The relative-timestamp clock
// starts now.
func New(w io.Writer, mode TimestampMode) *Formatter {
	return &Formatter{
		writer:    w,
		mode:      mode,
		start:     time.Now(),
		colorOf:   map[string]*color.Color{},
		noColorOf: map[string]bool{},
	}
}

// SetColor assigns a named or 6-hex-RGB color to a key. An unrecognized
// value disables coloring for that key rather than erroring, per §4.2.
func (f *Formatter) SetColor(key, spec string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := resolveColor(spec)
	if !ok {
		f.noColorOf[key] = true
		delete(f.colorOf, key)
		return
	}
	f.colorOf[key] = c
}

// Start emits the $ (start) line for a child about to run argv.
func (f *Formatter) Start(key string, argv []string) {
	f.emit("start", key, []byte(strings.Join(argv, " ")))
}

// Out emits < (stdout) lines for chunk.
func (f *Formatter) Out(key string, chunk []byte) {
	f.emit("out", key, chunk)
}

// Err emits ! (stderr) lines for chunk.
func (f *Formatter) Err(key string, chunk []byte) {
	f.emit("err", key, chunk)
}

// End emits the = (end) line carrying the decimal exit code.
func (f *Formatter) End(key string, exitCode int) {
	f.emit("end", key, []byte(strconv.Itoa(exitCode)))
}

// emit splits payload on '\n' (discarding a trailing empty element produced
// by a terminal newline) and writes one prefixed line per piece.
func (f *Formatter) emit(stream, key string, payload []byte) {
	lines := strings.Split(string(payload), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		lines = []string{""}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := f.timestampPrefix() + sigils[stream] + sep + f.coloredKey(key) + sep
	for _, line := range lines {
		fmt.Fprint(f.writer, prefix)
		fmt.Fprint(f.writer, line)
		fmt.Fprint(f.writer, "\n")
	}
}

func (f *Formatter) timestampPrefix() string {
	switch f.mode {
	case TimestampAbsolute:
		return time.Now().Format("15:04:05") + "|"
	case TimestampRelative:
		elapsed := time.Since(f.start)
		if elapsed < 0 {
			elapsed = 0
		}
		return formatHMS(elapsed) + "|"
	default:
		return ""
	}
}

func formatHMS(d time.Duration) string {
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func (f *Formatter) coloredKey(key string) string {
	if f.noColorOf[key] {
		return key
	}
	if c, ok := f.colorOf[key]; ok {
		return c.Sprint(key)
	}
	return key
}
