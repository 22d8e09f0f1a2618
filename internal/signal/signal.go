// Package signal simulates the stop/go control output. Nothing is transmitted;
// signals are logged as the value that would be sent.
package signal

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Signal is the control value.
type Signal int

const (
	// Go tells the vehicle to keep moving.
	Go Signal = 0
	// Stop tells the vehicle to stop.
	Stop Signal = 1
)

func (s Signal) String() string {
	if s == Stop {
		return "stop"
	}
	return "go"
}

// Reasons attached to emitted signals.
const (
	ReasonConfirmed = "Stop sign confirmed"
	ReasonResumed   = "Resuming"
	ReasonClear     = "No stop sign"
)

// Emitter receives control signals.
type Emitter interface {
	Emit(sig Signal, reason string)
}

// Multi fans a signal out to several emitters in order.
type Multi []Emitter

// Emit forwards sig to every emitter.
func (m Multi) Emit(sig Signal, reason string) {
	for _, e := range m {
		if e != nil {
			e.Emit(sig, reason)
		}
	}
}

// DefaultIdleInterval is the minimum gap between repeated idle Go signals.
const DefaultIdleInterval = time.Second

// LogEmitter logs each signal as "<reason>, would send <n>". Repeated
// ReasonClear signals are rate limited; every other signal is always logged.
type LogEmitter struct {
	log  logrus.FieldLogger
	idle *rate.Limiter

	mu    sync.Mutex
	last  Signal
	count int
}

// NewLogEmitter creates a LogEmitter. idleInterval <= 0 uses DefaultIdleInterval.
func NewLogEmitter(log logrus.FieldLogger, idleInterval time.Duration) *LogEmitter {
	if idleInterval <= 0 {
		idleInterval = DefaultIdleInterval
	}
	return &LogEmitter{
		log:  log,
		idle: rate.NewLimiter(rate.Every(idleInterval), 1),
		last: Go,
	}
}

// Emit logs sig.
func (e *LogEmitter) Emit(sig Signal, reason string) {
	e.mu.Lock()
	e.last = sig
	e.count++
	e.mu.Unlock()

	if reason == ReasonClear && !e.idle.Allow() {
		return
	}

	e.log.WithFields(logrus.Fields{
		"signal": int(sig),
	}).Infof("%s, would send %d", reason, int(sig))
}

// Last returns the most recent signal.
func (e *LogEmitter) Last() Signal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Count returns how many signals have been emitted, including throttled ones.
func (e *LogEmitter) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}
