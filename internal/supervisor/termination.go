package supervisor

import (
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sebastien/multiplex/internal/procprobe"
)

const (
	defaultGracefulTimeout = 5 * time.Second
	defaultForceTimeout    = 2 * time.Second
	deadPollInterval       = 100 * time.Millisecond
)

// Terminate runs the two-phase shutdown of SPEC_FULL.md §4.7. When graceful
// is true it first sends SIGTERM to every pgid (with a direct kill(pid)
// fallback and a kill per discovered descendant) and waits up to
// gracefulTimeout; if anything survives, or when graceful is false (which
// skips the SIGTERM phase), it sends SIGKILL the same way and waits up to
// forceTimeout. children == nil
// means every registered child. Returns whether everything targeted is dead
// by the time it returns.
func (s *Supervisor) Terminate(children []*ManagedChild, graceful bool, gracefulTimeout, forceTimeout time.Duration) bool {
	if children == nil {
		children = s.allChildren()
	}
	if gracefulTimeout <= 0 {
		gracefulTimeout = defaultGracefulTimeout
	}
	if forceTimeout <= 0 {
		forceTimeout = defaultForceTimeout
	}

	if graceful {
		s.signalPhase(children, syscall.SIGTERM)
		if s.waitUntilDead(children, gracefulTimeout) {
			return true
		}
	}
	s.signalPhase(children, syscall.SIGKILL)
	return s.waitUntilDead(children, forceTimeout)
}

// signalPhase sends sig to every live child: killpg(pgid, sig) first, then
// kill(pid, sig) as a fallback, then kill(sig) on every discovered
// descendant individually — covering descendants that escaped the
// process group (e.g. via their own setsid). ESRCH ("already gone") is
// treated as success throughout.
func (s *Supervisor) signalPhase(children []*ManagedChild, sig syscall.Signal) {
	for _, c := range children {
		pid := c.PID()
		if pid <= 0 {
			continue
		}
		if pgid := c.PGID(); pgid > 0 {
			signalIgnoreESRCH(-pgid, sig)
		}
		signalIgnoreESRCH(pid, sig)
		for _, d := range procprobe.Descendants(pid) {
			signalIgnoreESRCH(d, sig)
		}
	}
}

func signalIgnoreESRCH(pid int, sig syscall.Signal) {
	if err := unix.Kill(pid, sig); err != nil && err != unix.ESRCH {
		// Any other error (EPERM, etc.) is not actionable here; the
		// subsequent waitUntilDead poll is the source of truth.
		_ = err
	}
}

// waitUntilDead polls every target's liveness at deadPollInterval until
// none remain alive or timeout elapses.
func (s *Supervisor) waitUntilDead(children []*ManagedChild, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		allDead := true
		for _, c := range children {
			if pid := c.PID(); pid > 0 && procprobe.IsAlive(pid) {
				allDead = false
				break
			}
		}
		if allDead {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(deadPollInterval)
	}
}

// Join waits until every child in children (or, if nil, every registered
// child) reaches ended, or until timeout elapses (timeout <= 0 means wait
// forever). It returns the children still not ended when it returns.
func (s *Supervisor) Join(children []*ManagedChild, timeout time.Duration) []*ManagedChild {
	if children == nil {
		children = s.allChildren()
	}
	hasDeadline := timeout > 0
	var deadline time.Time
	if hasDeadline {
		deadline = time.Now().Add(timeout)
	}

	for {
		active := activeOf(children)
		if len(active) == 0 {
			return nil
		}
		if hasDeadline && !time.Now().Before(deadline) {
			return active
		}

		wait := time.Second
		if hasDeadline {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return active
			}
			wait = remaining / time.Duration(len(active))
			if wait > time.Second {
				wait = time.Second
			}
		}

		select {
		case <-active[0].Ended():
		case <-time.After(wait):
		}
	}
}

func activeOf(children []*ManagedChild) []*ManagedChild {
	out := make([]*ManagedChild, 0, len(children))
	for _, c := range children {
		if c.State() != StateEnded {
			out = append(out, c)
		}
	}
	return out
}
