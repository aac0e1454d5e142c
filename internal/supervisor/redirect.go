package supervisor

import (
	"os"
	"time"
)

// pumpSource is one entry of a redirect's source list resolved against the
// command table. child is nil when the key never resolves — per
// SPEC_FULL.md's Open Question decision, such a source never reports
// "ended", so the pump (and the consumer's stdin) never sees EOF from it.
type pumpSource struct {
	child  *ManagedChild
	stream int
}

// wireRedirect gives consumer a stdin pipe fed by its declared sources, per
// SPEC_FULL.md §4.4. Must run after every sibling in the batch is
// registered (see Supervisor.ReleaseAll), since Redirects may name a
// forward reference.
func (s *Supervisor) wireRedirect(consumer *ManagedChild) {
	if len(consumer.Spec.Redirects) == 0 {
		return
	}
	r, w, err := os.Pipe()
	if err != nil {
		s.log.Errorw("redirect pipe creation failed", "key", consumer.Key, "error", err)
		return
	}
	consumer.stdinRead = r

	sources := make([]pumpSource, 0, len(consumer.Spec.Redirects))
	for _, ref := range consumer.Spec.Redirects {
		child, ok := s.lookup(ref.Key)
		if ok {
			if ref.Stream == 2 {
				child.registerStderrConsumer()
			} else {
				child.registerStdoutConsumer()
			}
		}
		sources = append(sources, pumpSource{child: child, stream: ref.Stream})
	}

	go s.runRedirectPump(sources, w)
}

// runRedirectPump visits every source once per tick in declared order,
// draining whatever has accumulated and writing it to w. It exits (closing
// w, which signals EOF to the consumer's stdin) once every resolved source
// has both closed and drained empty; an unresolved source keeps the pump
// alive until the supervisor's global stop fires.
func (s *Supervisor) runRedirectPump(sources []pumpSource, w *os.File) {
	defer w.Close()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			allDone := true
			for _, src := range sources {
				if src.child == nil {
					allDone = false
					continue
				}
				buf := src.child.bufferForStream(src.stream)
				if buf == nil {
					continue
				}
				chunk, closed := buf.Drain()
				if len(chunk) > 0 {
					if _, err := w.Write(chunk); err != nil {
						return // consumer's stdin pipe is gone; nothing left to do
					}
				}
				if !closed {
					allDone = false
				}
			}
			if allDone {
				return
			}
		}
	}
}

// wireStartOnOutput subscribes a one-shot callback on every (key, stream)
// consumer.Spec.StartOnOutput names. The first such callback to fire
// releases consumer from waiting_deps, per SPEC_FULL.md §4.5. An unknown
// key is simply skipped, which leaves the consumer blocked forever if it
// was the only listed source — the same unsatisfiable-dependency semantics
// as §4.6.
func (s *Supervisor) wireStartOnOutput(consumer *ManagedChild) {
	if len(consumer.Spec.StartOnOutput) == 0 {
		return
	}
	for _, ref := range consumer.Spec.StartOnOutput {
		source, ok := s.lookup(ref.Key)
		if !ok {
			continue
		}
		cb := makeStartOnOutputCallback(source, consumer)
		if ref.Stream == 2 {
			source.addErrCallback(cb)
		} else {
			source.addOutCallback(cb)
		}
	}
}

func makeStartOnOutputCallback(source, consumer *ManagedChild) func([]byte) {
	return func([]byte) {
		source.firstOutputLatch.Fire()
		consumer.startOnOutputLatch.Fire()
	}
}
