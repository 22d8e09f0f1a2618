// Package debounce turns a per-frame "did the detector fire" signal into a
// stable stream of stop-sign events.
package debounce

import "time"

// Default debounce settings.
const (
	// DefaultHitThreshold is the number of consecutive hit frames required to confirm a stop sign.
	DefaultHitThreshold = 3
	// DefaultResumeDelay is how long after confirmation a miss is allowed to end the episode.
	DefaultResumeDelay = 3 * time.Second
)

// Event is the outcome of observing one frame.
type Event int

const (
	// EventNone means no stop sign is present and none is confirmed.
	EventNone Event = iota
	// EventDetected means the frame had a raw detection but the threshold is not yet met.
	EventDetected
	// EventConfirmed means a stop sign is confirmed, either newly or still holding.
	EventConfirmed
	// EventResumed means a confirmed episode just ended.
	EventResumed
)

func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventDetected:
		return "detected"
	case EventConfirmed:
		return "confirmed"
	case EventResumed:
		return "resumed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the event as its lowercase name.
func (e Event) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// Phase is the debouncer's position in its state machine. It is derived from State.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAccumulating
	PhaseConfirmed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAccumulating:
		return "accumulating"
	case PhaseConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the phase as its lowercase name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Config holds the debounce thresholds.
type Config struct {
	HitThreshold int
	ResumeDelay  time.Duration
}

// DefaultConfig returns the stock thresholds: 3 hits, 3 seconds.
func DefaultConfig() Config {
	return Config{
		HitThreshold: DefaultHitThreshold,
		ResumeDelay:  DefaultResumeDelay,
	}
}

// normalized replaces out-of-range values with defaults.
func (c Config) normalized() Config {
	if c.HitThreshold < 1 {
		c.HitThreshold = DefaultHitThreshold
	}
	if c.ResumeDelay <= 0 {
		c.ResumeDelay = DefaultResumeDelay
	}
	return c
}

// State is the debounce record. The zero value is the initial state.
//
// SnapshotEmitted is only ever true while Confirmed is true, and
// ConsecutiveHits is 0 right after any miss.
type State struct {
	Confirmed       bool      `json:"confirmed"`
	ConsecutiveHits int       `json:"consecutive_hits"`
	ConfirmedAt     time.Time `json:"confirmed_at"`
	SnapshotEmitted bool      `json:"snapshot_emitted"`
}

// Phase reports which state-machine phase s is in.
func (s State) Phase() Phase {
	switch {
	case s.Confirmed:
		return PhaseConfirmed
	case s.ConsecutiveHits > 0:
		return PhaseAccumulating
	default:
		return PhaseIdle
	}
}

// Result is what a single observation produced.
type Result struct {
	Event Event
	// TakeSnapshot asks the caller to persist the current frame.
	TakeSnapshot bool
	// Entered is true only on the frame that starts a confirmed episode.
	Entered bool
}

// Observe applies one frame to s and returns the next state with the result.
// It never mutates s.
//
// The resume check measures from ConfirmedAt, so hits that arrive after
// confirmation do not push the resume time out.
func Observe(cfg Config, s State, hit bool, now time.Time) (State, Result) {
	cfg = cfg.normalized()

	if hit {
		s.ConsecutiveHits++

		if s.Confirmed {
			return s, Result{Event: EventConfirmed}
		}

		if s.ConsecutiveHits < cfg.HitThreshold {
			return s, Result{Event: EventDetected}
		}

		s.Confirmed = true
		s.ConfirmedAt = now
		res := Result{Event: EventConfirmed, Entered: true}
		if !s.SnapshotEmitted {
			s.SnapshotEmitted = true
			res.TakeSnapshot = true
		}
		return s, res
	}

	s.ConsecutiveHits = 0

	if !s.Confirmed {
		return s, Result{Event: EventNone}
	}

	if now.Sub(s.ConfirmedAt) >= cfg.ResumeDelay {
		s.Confirmed = false
		s.SnapshotEmitted = false
		s.ConfirmedAt = time.Time{}
		return s, Result{Event: EventResumed}
	}

	return s, Result{Event: EventConfirmed}
}

// Debouncer owns a single State and feeds it one frame at a time.
// It is not safe for concurrent use; the frame loop is its only caller.
type Debouncer struct {
	cfg   Config
	state State
}

// New creates a Debouncer in the idle state.
func New(cfg Config) *Debouncer {
	return &Debouncer{cfg: cfg.normalized()}
}

// Observe records whether the current frame had a raw detection.
func (d *Debouncer) Observe(hit bool, now time.Time) Result {
	var res Result
	d.state, res = Observe(d.cfg, d.state, hit, now)
	return res
}

// State returns a copy of the current state.
func (d *Debouncer) State() State {
	return d.state
}

// Phase returns the current phase.
func (d *Debouncer) Phase() Phase {
	return d.state.Phase()
}

// Config returns the effective thresholds.
func (d *Debouncer) Config() Config {
	return d.cfg
}

// Reset returns the debouncer to the idle state.
func (d *Debouncer) Reset() {
	d.state = State{}
}
