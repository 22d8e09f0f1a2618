package hook

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/stopsign/internal/signal"
)

var _ signal.Emitter = (*Emitter)(nil)

// Emitter runs subscribed hooks for every Stop and Go transition. Idle Go
// signals are ignored. Hooks run in the background so the frame loop is
// never blocked.
type Emitter struct {
	manager  *Manager
	executor *Executor
	log      logrus.FieldLogger

	wg sync.WaitGroup
	mu sync.Mutex
	ok int
	ko int
}

// NewEmitter creates an Emitter over the hooks known to manager.
func NewEmitter(manager *Manager, executor *Executor, log logrus.FieldLogger) *Emitter {
	if executor == nil {
		executor = NewExecutor(0)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Emitter{
		manager:  manager,
		executor: executor,
		log:      log.WithField("component", "hook"),
	}
}

// Emit starts every hook subscribed to sig.
func (e *Emitter) Emit(sig signal.Signal, reason string) {
	if reason == signal.ReasonClear {
		return
	}

	req := &Request{
		Signal: int(sig),
		Name:   sig.String(),
		Reason: reason,
		Time:   time.Now(),
	}

	for _, h := range e.manager.List() {
		if !h.Wants(req.Name) {
			continue
		}
		e.wg.Add(1)
		go e.run(h, req)
	}
}

func (e *Emitter) run(h *Hook, req *Request) {
	defer e.wg.Done()

	log := e.log.WithFields(logrus.Fields{
		"hook":   h.Manifest.Name,
		"signal": req.Name,
	})

	if _, err := e.executor.Execute(context.Background(), h, req); err != nil {
		log.WithError(err).Warn("Hook failed")
		e.mu.Lock()
		e.ko++
		e.mu.Unlock()
		return
	}

	log.Debug("Hook ran")
	e.mu.Lock()
	e.ok++
	e.mu.Unlock()
}

// Wait blocks until all started hooks finish.
func (e *Emitter) Wait() {
	e.wg.Wait()
}

// Results returns how many hook runs succeeded and failed so far.
func (e *Emitter) Results() (succeeded, failed int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ok, e.ko
}
