package supervisor

import (
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// runLifecycle drives one child from pending through ended: the
// registration barrier, start_delay, the dependency gate, start-on-output,
// launch, and the router's end-of-stream reap. It runs for the whole life
// of the child in its own goroutine.
func (s *Supervisor) runLifecycle(c *ManagedChild) {
	select {
	case <-s.registrationGate.Wait():
	case <-s.stop:
		return
	}

	if c.Spec.StartDelay > 0 {
		c.setState(StateDelayed)
		if !s.sleepInterruptible(secondsToDuration(c.Spec.StartDelay)) {
			return
		}
	}

	if len(c.Spec.Dependencies) > 0 || len(c.Spec.StartOnOutput) > 0 {
		c.setState(StateWaitingDeps)
	}

	for _, dep := range c.Spec.Dependencies {
		src, ok := s.lookup(dep.Key)
		if !ok {
			// Unknown key: permanently unsatisfiable. Block until global
			// stop rather than launching — see DESIGN.md's Open Question
			// decision on unknown dependency/redirect keys.
			<-s.stop
			return
		}
		var wait <-chan struct{}
		if dep.WaitForStart {
			wait = src.Started()
		} else {
			wait = src.Ended()
		}
		select {
		case <-wait:
		case <-s.stop:
			return
		}
		if dep.TotalDelay() > 0 {
			if !s.sleepInterruptible(secondsToDuration(dep.TotalDelay())) {
				return
			}
		}
	}

	if len(c.Spec.StartOnOutput) > 0 {
		select {
		case <-c.startOnOutputLatch.Wait():
		case <-s.stop:
			return
		}
	}

	c.setState(StateLaunching)
	s.launch(c)
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// sleepInterruptible sleeps for d, returning false if the global stop flag
// fires first.
func (s *Supervisor) sleepInterruptible(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-s.stop:
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.stop:
		return false
	}
}

// launch spawns the child's argv in its own session (so pgid == pid),
// wires its stdin to a redirect pipe if one was wired in, and starts the
// router's pair of stream pumps.
func (s *Supervisor) launch(c *ManagedChild) {
	cmd := exec.Command(c.Spec.Argv[0], c.Spec.Argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if c.stdinRead != nil {
		cmd.Stdin = c.stdinRead
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.handleSpawnError(c, err)
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.handleSpawnError(c, err)
		return
	}

	if err := cmd.Start(); err != nil {
		s.handleSpawnError(c, err)
		return
	}
	if c.stdinRead != nil {
		c.stdinRead.Close()
	}

	c.mu.Lock()
	c.pid = cmd.Process.Pid
	c.pgid = c.pid
	c.cmd = cmd
	c.state = StateRunning
	c.mu.Unlock()

	c.startedLatch.Fire()
	c.mu.Lock()
	hasStartCallbacks := len(c.onStart) > 0
	c.mu.Unlock()
	c.fireStart()
	if !hasStartCallbacks {
		s.formatter.Start(c.Key, c.Spec.Argv)
	}
	s.log.Infow("child started", "key", c.Key, "pid", c.pid, "argv", c.Spec.Argv)

	var wg sync.WaitGroup
	wg.Add(2)
	go s.pumpStream(c, stdout, 1, &wg)
	go s.pumpStream(c, stderr, 2, &wg)
	go func() {
		wg.Wait()
		s.reap(c)
	}()
}

// handleSpawnError handles SpawnError per SPEC_FULL.md §7's Open Question
// decision: no start event, an immediate synthetic end at exit code 127.
func (s *Supervisor) handleSpawnError(c *ManagedChild, err error) {
	c.mu.Lock()
	c.state = StateEnded
	c.exitStatus = 127
	c.mu.Unlock()
	s.log.Warnw("spawn failed", "key", c.Key, "argv", c.Spec.Argv, "error", err)

	callbacks := c.endCallbacksSnapshot()
	if len(callbacks) > 0 {
		for _, cb := range callbacks {
			cb(127)
		}
	} else {
		s.formatter.End(c.Key, 127)
	}
	c.endedLatch.Fire()
	s.maybeTriggerEndAction(c)
}

// pumpStream reads r in 64 KiB chunks until EOF, dispatching each chunk
// through the router's fan-out. EOF on this stream only closes this
// stream's buffer; the process isn't reaped until both streams are done.
func (s *Supervisor) pumpStream(c *ManagedChild, r io.Reader, stream int, wg *sync.WaitGroup) {
	defer wg.Done()
	buf := make([]byte, 64*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if stream == 2 {
				c.dispatchErr(chunk, func(b []byte) { s.formatter.Err(c.Key, b) })
			} else {
				c.dispatchOut(chunk, func(b []byte) { s.formatter.Out(c.Key, b) })
			}
		}
		if err != nil {
			break
		}
	}
	c.closeBufferForStream(stream)
}

// reap waits for the process to exit, records its exit status, and fires
// the end transition once both stream pumps have finished.
func (s *Supervisor) reap(c *ManagedChild) {
	c.setState(StateEnding)
	err := c.cmd.Wait()
	code := exitCodeOf(err)

	c.mu.Lock()
	c.exitStatus = code
	c.state = StateEnded
	c.mu.Unlock()
	s.log.Infow("child ended", "key", c.Key, "exit_code", code)

	callbacks := c.endCallbacksSnapshot()
	if len(callbacks) > 0 {
		for _, cb := range callbacks {
			cb(code)
		}
	} else {
		s.formatter.End(c.Key, code)
	}
	c.endedLatch.Fire()
	s.maybeTriggerEndAction(c)
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
