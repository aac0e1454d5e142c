// Package supervisor owns the command table, the dependency gate, the
// output router, the redirect fabric, and the termination state machine —
// components 4.3 through 4.7 of SPEC_FULL.md. They share one package
// because they all operate directly on ManagedChild's internal state; the
// file split below mirrors the spec's component boundaries even though the
// Go compiler sees one package.
package supervisor

import (
	"os"
	"os/exec"
	"sync"

	"github.com/sebastien/multiplex/internal/cmdspec"
	"github.com/sebastien/multiplex/internal/latch"
)

// State is one of a ManagedChild's monotone lifecycle states. Transitions
// never go backward: pending -> delayed? -> waiting_deps? -> launching ->
// running -> ending -> ended.
type State int

const (
	StatePending State = iota
	StateDelayed
	StateWaitingDeps
	StateLaunching
	StateRunning
	StateEnding
	StateEnded
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDelayed:
		return "delayed"
	case StateWaitingDeps:
		return "waiting_deps"
	case StateLaunching:
		return "launching"
	case StateRunning:
		return "running"
	case StateEnding:
		return "ending"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// ManagedChild is the supervisor-owned bookkeeping record for one child
// process, per SPEC_FULL.md §3.
type ManagedChild struct {
	Key  string
	Spec *cmdspec.CommandSpec

	mu         sync.Mutex
	state      State
	pid        int
	pgid       int
	exitStatus int
	cmd        *exec.Cmd
	stdinRead  *os.File // read end of the redirect pipe, set only when this child consumes a Redirect

	startedLatch       *latch.Latch
	endedLatch         *latch.Latch
	firstOutputLatch   *latch.Latch
	startOnOutputLatch *latch.Latch // fires once this child's own >sources trigger

	onStart []func()
	onOut   []func([]byte)
	onErr   []func([]byte)
	onEnd   []func(int)

	stdoutBuf *ringBuffer // allocated only once a consumer registers
	stderrBuf *ringBuffer
}

func newManagedChild(key string, spec *cmdspec.CommandSpec) *ManagedChild {
	return &ManagedChild{
		Key:                key,
		Spec:               spec,
		state:              StatePending,
		startedLatch:       latch.New(),
		endedLatch:         latch.New(),
		firstOutputLatch:   latch.New(),
		startOnOutputLatch: latch.New(),
	}
}

func (c *ManagedChild) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *ManagedChild) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// PID returns the child's process ID, or 0 before it has launched.
func (c *ManagedChild) PID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pid
}

// PGID returns the child's process-group ID. Every child is its own session
// and process-group leader, so PGID() == PID() once running.
func (c *ManagedChild) PGID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pgid
}

// ExitStatus is valid only once State() == StateEnded.
func (c *ManagedChild) ExitStatus() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitStatus
}

// Started returns the channel that closes once this child enters running.
func (c *ManagedChild) Started() <-chan struct{} { return c.startedLatch.Wait() }

// Ended returns the channel that closes once this child enters ended.
func (c *ManagedChild) Ended() <-chan struct{} { return c.endedLatch.Wait() }

func (c *ManagedChild) applySilent() {
	if len(c.onStart) == 0 {
		c.onStart = append(c.onStart, func() {})
	}
	if len(c.onOut) == 0 {
		c.onOut = append(c.onOut, func([]byte) {})
	}
	if len(c.onErr) == 0 {
		c.onErr = append(c.onErr, func([]byte) {})
	}
	if len(c.onEnd) == 0 {
		c.onEnd = append(c.onEnd, func(int) {})
	}
}

func (c *ManagedChild) addOutCallback(cb func([]byte)) {
	c.mu.Lock()
	c.onOut = append(c.onOut, cb)
	c.mu.Unlock()
}

func (c *ManagedChild) addErrCallback(cb func([]byte)) {
	c.mu.Lock()
	c.onErr = append(c.onErr, cb)
	c.mu.Unlock()
}

func (c *ManagedChild) registerStdoutConsumer() {
	c.mu.Lock()
	if c.stdoutBuf == nil {
		c.stdoutBuf = newRingBuffer()
	}
	c.mu.Unlock()
}

func (c *ManagedChild) registerStderrConsumer() {
	c.mu.Lock()
	if c.stderrBuf == nil {
		c.stderrBuf = newRingBuffer()
	}
	c.mu.Unlock()
}

func (c *ManagedChild) bufferForStream(stream int) *ringBuffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if stream == 2 {
		return c.stderrBuf
	}
	return c.stdoutBuf
}

func (c *ManagedChild) closeBufferForStream(stream int) {
	if buf := c.bufferForStream(stream); buf != nil {
		buf.Close()
	}
}

// dispatchOut performs the router's fan-out order for a stdout chunk: (i)
// buffer append if a consumer registered, (ii) callbacks, (iii) formatter if
// no callback is registered — per SPEC_FULL.md §4.3.
func (c *ManagedChild) dispatchOut(chunk []byte, onFormatter func([]byte)) {
	if buf := c.bufferForStream(1); buf != nil {
		buf.Append(chunk)
	}
	c.firstOutputLatch.Fire()
	c.mu.Lock()
	callbacks := append([]func([]byte){}, c.onOut...)
	c.mu.Unlock()
	if len(callbacks) > 0 {
		for _, cb := range callbacks {
			cb(chunk)
		}
		return
	}
	onFormatter(chunk)
}

func (c *ManagedChild) dispatchErr(chunk []byte, onFormatter func([]byte)) {
	if buf := c.bufferForStream(2); buf != nil {
		buf.Append(chunk)
	}
	c.firstOutputLatch.Fire()
	c.mu.Lock()
	callbacks := append([]func([]byte){}, c.onErr...)
	c.mu.Unlock()
	if len(callbacks) > 0 {
		for _, cb := range callbacks {
			cb(chunk)
		}
		return
	}
	onFormatter(chunk)
}

func (c *ManagedChild) fireStart() {
	c.mu.Lock()
	callbacks := append([]func(){}, c.onStart...)
	c.mu.Unlock()
	for _, cb := range callbacks {
		cb()
	}
}

// endCallbacksSnapshot returns the current onEnd callback list so the
// caller can decide, outside any lock, whether to fall back to the
// formatter.
func (c *ManagedChild) endCallbacksSnapshot() []func(int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]func(int){}, c.onEnd...)
}
