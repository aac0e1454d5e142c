package supervisor

import (
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/sebastien/multiplex/internal/cmdspec"
	"github.com/sebastien/multiplex/internal/eventfmt"
	"github.com/sebastien/multiplex/internal/latch"
)

// Supervisor is the command table plus the coordination primitives shared
// by the gate, router, redirect fabric and termination state machine — the
// Runner of SPEC_FULL.md §4.7, minus the signal plumbing (signals.go) and
// CLI wiring (cmd/multiplex).
type Supervisor struct {
	mu      sync.Mutex
	order   []string
	byKey   map[string]*ManagedChild
	ordinal int

	formatter *eventfmt.Formatter
	log       *zap.SugaredLogger

	registrationGate *latch.Latch
	stopOnce         sync.Once
	stop             chan struct{}
}

// New builds a Supervisor that renders through formatter and logs through
// log. A nil log uses zap's no-op logger.
func New(formatter *eventfmt.Formatter, log *zap.SugaredLogger) *Supervisor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Supervisor{
		byKey:            map[string]*ManagedChild{},
		formatter:        formatter,
		log:              log,
		registrationGate: latch.New(),
		stop:             make(chan struct{}),
	}
}

// Run registers spec's child and spawns its lifecycle goroutine. The
// goroutine blocks on the registration gate before doing anything else, so
// Run itself returns immediately and siblings registered later in the same
// batch are still visible to it — see ReleaseAll.
func (s *Supervisor) Run(spec *cmdspec.CommandSpec) *ManagedChild {
	s.mu.Lock()
	key := spec.Key
	if key == "" {
		key = strconv.Itoa(s.ordinal)
	}
	s.ordinal++
	c := newManagedChild(key, spec)
	s.byKey[key] = c
	s.order = append(s.order, key)
	s.mu.Unlock()

	if spec.Color != "" {
		s.formatter.SetColor(key, spec.Color)
	}
	if spec.HasAction("silent") {
		c.applySilent()
	}

	go s.runLifecycle(c)
	return c
}

// ReleaseAll wires cross-child references (redirects, start-on-output) —
// which require every key in the batch to already be registered — and then
// opens the registration gate so every pending lifecycle goroutine
// proceeds. Call it once, after every Run call in a batch.
func (s *Supervisor) ReleaseAll() {
	for _, c := range s.allChildren() {
		s.wireRedirect(c)
		s.wireStartOnOutput(c)
	}
	s.registrationGate.Fire()
}

func (s *Supervisor) lookup(key string) (*ManagedChild, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byKey[key]
	return c, ok
}

func (s *Supervisor) allChildren() []*ManagedChild {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ManagedChild, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.byKey[key])
	}
	return out
}

// Shutdown triggers the global stop flag and a graceful-then-force
// termination of every registered child, without exiting the process. It's
// used by the `end` action and by the CLI's -t deadline.
func (s *Supervisor) Shutdown() {
	s.stopOnce.Do(func() { close(s.stop) })
	children := s.allChildren()
	if !s.Terminate(children, true, 0, 0) {
		s.Terminate(children, false, 0, 0)
	}
}

func (s *Supervisor) maybeTriggerEndAction(c *ManagedChild) {
	if c.Spec.HasAction("end") {
		go s.Shutdown()
	}
}
