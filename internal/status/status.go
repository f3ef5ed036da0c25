// Package status provides a thread-safe status tracker for the
// genset-controller daemon. It is read by HTTP handlers and feeds the
// payloads of system lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/genset-controller/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	ControlMs   int64
	DebounceMs  int64
	VerifyMs    int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	Settings    string // settings file path
}

// Tunables mirrors the persisted controller settings for display.
type Tunables struct {
	PowerUpMs   int64
	PowerDownMs int64
	RetryLimit  int
	AllowStart  bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	State            logic.State
	Running          bool
	K1, K2           bool
	Attempts         int
	Counts           logic.Counts
	Tunables         Tunables
	UpdateInProgress bool
	StartTime        time.Time
	Now              time.Time
	MQTTConnected    bool
	Network          *NetworkInfo
	Config           Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			State:     logic.StateIdle,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the controller view. Called from the control loop on
// every tick.
func (t *Tracker) Update(state logic.State, running, k1, k2 bool, attempts int, counts logic.Counts) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.Running = running
	t.snap.K1 = k1
	t.snap.K2 = k2
	t.snap.Attempts = attempts
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetTunables sets the persisted settings view.
func (t *Tracker) SetTunables(tun Tunables) {
	t.mu.Lock()
	t.snap.Tunables = tun
	t.mu.Unlock()
}

// SetUpdateInProgress sets the firmware-update gate flag.
func (t *Tracker) SetUpdateInProgress(active bool) {
	t.mu.Lock()
	t.snap.UpdateInProgress = active
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
