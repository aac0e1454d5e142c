package supervisor

import (
	"os"
	"os/signal"
	"syscall"
	"time"
)

// ListenForSignals wires SIGINT/SIGTERM/SIGHUP to the shutdown sequence of
// SPEC_FULL.md §4.7: propagate the received signal, run the normal
// graceful-then-force Terminate, join with a bounded timeout, then exit.
// SIGCHLD is accepted (so it's not left at its default disposition) and
// otherwise ignored — reaping happens in the router's own cmd.Wait, not
// here.
func (s *Supervisor) ListenForSignals() {
	ch := make(chan os.Signal, 8)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGCHLD)
	go func() {
		for sig := range ch {
			sysSig, ok := sig.(syscall.Signal)
			if !ok || sysSig == syscall.SIGCHLD {
				continue
			}
			s.handleTerminationSignal(sysSig)
			return
		}
	}()
}

func (s *Supervisor) handleTerminationSignal(sig syscall.Signal) {
	children := s.allChildren()
	s.signalPhase(children, sig)

	s.stopOnce.Do(func() { close(s.stop) })
	if !s.Terminate(children, true, 0, 0) {
		s.Terminate(children, false, 0, 0)
	}
	s.Join(children, defaultForceTimeout+time.Second)
	os.Exit(0)
}
