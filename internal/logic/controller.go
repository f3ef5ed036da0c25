package logic

import (
	"time"

	"github.com/sweeney/genset-controller/internal/sched"
)

// DefaultVerifyInterval is how long after a start attempt the running
// feedback is re-examined to decide whether the attempt succeeded.
const DefaultVerifyInterval = 15 * time.Second

// Config exposes the persisted tunables the controller consults on
// every transition. Implemented by the config store; values may change
// between ticks through the control surface.
type Config interface {
	PowerUpDuration() time.Duration
	PowerDownDuration() time.Duration
	RetryLimit() int
	AllowStart() bool
}

// Controller is the start/stop interlock state machine. It exclusively
// owns the relay outputs and the retry counter, consumes debounced
// edges, and registers its phase-completion work with the scheduler.
//
// The controller is single-threaded: all methods must be called from
// the control loop. Nothing here blocks; side effects are limited to
// relay writes, log and event emission, and scheduler registrations.
type Controller struct {
	cfg    Config
	sched  *sched.Scheduler
	relays Relays
	logf   Logf
	emit   func(Event)

	verifyInterval time.Duration

	state    State
	running  bool
	attempts int
	k1, k2   bool
	counts   Counts

	// gen invalidates scheduled callbacks from superseded commands.
	// There is no task cancellation; a stale k1Release or verify check
	// fires later, sees a generation mismatch and does nothing.
	gen uint64
}

// NewController creates a Controller in the IDLE state. emit may be nil
// if the caller does not consume transition events.
func NewController(cfg Config, scheduler *sched.Scheduler, relays Relays, logf Logf, emit func(Event)) *Controller {
	return &Controller{
		cfg:            cfg,
		sched:          scheduler,
		relays:         relays,
		logf:           logf,
		emit:           emit,
		verifyInterval: DefaultVerifyInterval,
		state:          StateIdle,
	}
}

// SetVerifyInterval overrides the verification check interval.
func (c *Controller) SetVerifyInterval(d time.Duration) {
	c.verifyInterval = d
}

// HandleEdges consumes the debounced command edges for one control
// tick. STOP always wins over a simultaneous START: the START edge is
// discarded and logged, never queued for a later tick.
func (c *Controller) HandleEdges(startEdge, stopEdge Edge, now time.Time) {
	if stopEdge == EdgeRising {
		if startEdge == EdgeRising {
			c.logf("controller: START and STOP stable simultaneously, STOP wins; START edge discarded")
		}
		c.Stop(now)
		return
	}
	if startEdge == EdgeRising {
		c.Start(now)
	}
}

// Start begins the power-up sequence: assert K1, release it after the
// configured power-up duration, and verify running feedback after the
// verification interval. Duplicate starts, starts while stopping and
// starts while disallowed are logged no-ops that leave the current
// state untouched.
func (c *Controller) Start(now time.Time) {
	if !c.cfg.AllowStart() {
		c.logf("controller: start requested but starting is disabled, ignoring")
		return
	}
	switch c.state {
	case StateStarting:
		c.logf("controller: already starting, duplicate start ignored")
		return
	case StateStopping:
		c.logf("controller: stop sequence in progress, start ignored")
		return
	}

	c.counts.Starts++
	c.attempts = 0
	c.beginAttempt(now)
}

// beginAttempt issues one K1 pulse plus its verification check. A fresh
// generation makes any callbacks from the previous attempt stale.
func (c *Controller) beginAttempt(now time.Time) {
	c.gen++
	gen := c.gen

	c.state = StateStarting
	c.setK1(true)
	c.sched.ScheduleOnce(now, c.cfg.PowerUpDuration(), func(now time.Time) {
		c.releaseK1(gen, now)
	})
	c.sched.ScheduleOnce(now, c.verifyInterval, func(now time.Time) {
		c.verify(gen, now)
	})

	if c.attempts == 0 {
		c.logf("controller: starting generator, K1 asserted for %v", c.cfg.PowerUpDuration())
		c.send(Event{Timestamp: now, Type: EventStarting, State: c.state, Running: c.running})
	} else {
		c.counts.Retries++
		c.logf("controller: no running feedback, retry %d/%d, K1 re-asserted", c.attempts, c.cfg.RetryLimit())
		c.send(Event{Timestamp: now, Type: EventStartRetry, State: c.state, Running: c.running, Attempt: c.attempts})
	}
}

// releaseK1 completes the power-up pulse.
func (c *Controller) releaseK1(gen uint64, now time.Time) {
	if gen != c.gen || c.state != StateStarting {
		return
	}
	c.setK1(false)
	c.state = StateIdle
	c.logf("controller: power-up phase complete, K1 released")
}

// verify re-examines running feedback after a start attempt. Retries
// re-issue the full start sequence until the configured limit, which
// bounds relay cycling to limit+1 K1 pulses per START edge.
func (c *Controller) verify(gen uint64, now time.Time) {
	if gen != c.gen || c.state == StateStopping {
		return
	}

	if c.running {
		c.counts.Confirmed++
		c.logf("controller: running feedback confirmed (attempt %d)", c.attempts)
		c.send(Event{Timestamp: now, Type: EventRunning, State: c.state, Running: true, Attempt: c.attempts})
		return
	}

	if c.attempts >= c.cfg.RetryLimit() {
		c.counts.Failures++
		c.setK1(false)
		c.state = StateIdle
		c.logf("controller: start failed, no running feedback after %d attempt(s), giving up", c.attempts+1)
		c.send(Event{Timestamp: now, Type: EventStartFailed, State: c.state, Running: false, Attempt: c.attempts})
		return
	}

	c.attempts++
	c.beginAttempt(now)
}

// Stop begins the power-down sequence: release K1 if a start pulse is
// in flight, assert K2 and release it after the configured power-down
// duration. A duplicate stop while already stopping is a logged no-op.
func (c *Controller) Stop(now time.Time) {
	if c.state == StateStopping {
		c.logf("controller: already stopping, duplicate stop ignored")
		return
	}

	c.counts.Stops++
	c.gen++
	gen := c.gen

	if c.k1 {
		c.setK1(false)
	}
	c.state = StateStopping
	c.setK2(true)
	c.sched.ScheduleOnce(now, c.cfg.PowerDownDuration(), func(now time.Time) {
		c.releaseK2(gen, now)
	})

	c.logf("controller: stopping generator, K2 asserted for %v", c.cfg.PowerDownDuration())
	c.send(Event{Timestamp: now, Type: EventStopping, State: c.state, Running: c.running})
}

// releaseK2 completes the power-down pulse and returns to IDLE.
func (c *Controller) releaseK2(gen uint64, now time.Time) {
	if gen != c.gen || c.state != StateStopping {
		return
	}
	c.setK2(false)
	c.state = StateIdle
	c.logf("controller: power-down phase complete, K2 released")
	c.send(Event{Timestamp: now, Type: EventStopped, State: c.state, Running: c.running})
}

// ObserveRunning records the debounced feedback signal. The controller
// never owns this state; verification checks read the latest value.
func (c *Controller) ObserveRunning(running bool) {
	c.running = running
}

// setK1 drives the power-up relay, suppressing redundant writes so a
// duplicate command cannot produce a second assertion.
func (c *Controller) setK1(on bool) {
	if c.k1 == on {
		return
	}
	c.k1 = on
	if err := c.relays.SetStartRelay(on); err != nil {
		c.logf("controller: K1 write failed: %v", err)
	}
}

func (c *Controller) setK2(on bool) {
	if c.k2 == on {
		return
	}
	c.k2 = on
	if err := c.relays.SetStopRelay(on); err != nil {
		c.logf("controller: K2 write failed: %v", err)
	}
}

func (c *Controller) send(e Event) {
	if c.emit != nil {
		c.emit(e)
	}
}

// State returns the controller's lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// Running returns the last observed running feedback.
func (c *Controller) Running() bool {
	return c.running
}

// Attempts returns the current start attempt counter.
func (c *Controller) Attempts() int {
	return c.attempts
}

// RelayStates returns the commanded K1 and K2 levels.
func (c *Controller) RelayStates() (k1, k2 bool) {
	return c.k1, c.k2
}

// CountsSnapshot returns a copy of the activity counters.
func (c *Controller) CountsSnapshot() Counts {
	return c.counts
}
