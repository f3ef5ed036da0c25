package main

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/genset-controller/internal/config"
	"github.com/sweeney/genset-controller/internal/gpio"
	"github.com/sweeney/genset-controller/internal/logbuf"
	"github.com/sweeney/genset-controller/internal/logic"
	"github.com/sweeney/genset-controller/internal/mqtt"
	"github.com/sweeney/genset-controller/internal/status"
	"github.com/sweeney/genset-controller/internal/update"
)

// TestEnvVarNames verifies the env var constants match what pi-helper
// writes to /run/pi-helper.env. If pi-helper changes its var names, this
// test fails and we update the constants — not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}

	if info.Type != "wifi" {
		t.Errorf("Type: got %q, want %q", info.Type, "wifi")
	}
	if info.IP != "192.168.1.100" {
		t.Errorf("IP: got %q, want %q", info.IP, "192.168.1.100")
	}
	if info.Status != "connected" {
		t.Errorf("Status: got %q, want %q", info.Status, "connected")
	}
	if info.Gateway != "192.168.1.1" {
		t.Errorf("Gateway: got %q, want %q", info.Gateway, "192.168.1.1")
	}
	if info.SSID != "MyNetwork" {
		t.Errorf("SSID: got %q, want %q", info.SSID, "MyNetwork")
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	info := readNetworkInfo()
	if info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestStateString(t *testing.T) {
	if got := stateString(true); got != "ON" {
		t.Errorf("stateString(true): got %q", got)
	}
	if got := stateString(false); got != "OFF" {
		t.Errorf("stateString(false): got %q", got)
	}
}

func TestCommandSinkDropsWhenFull(t *testing.T) {
	sink := newCommandSink()

	for i := 0; i < 20; i++ {
		sink.RequestStart()
	}

	// Queue is bounded; the surplus is dropped, never blocked on.
	if got := len(sink.ch); got != cap(sink.ch) {
		t.Errorf("queued commands: got %d, want %d", got, cap(sink.ch))
	}
}

func TestCommandSinkStopSurvivesFullQueue(t *testing.T) {
	sink := newCommandSink()

	for i := 0; i < 20; i++ {
		sink.RequestStart()
	}
	sink.RequestStop()

	// The stop is latched, not queued: a flooded queue cannot drop it.
	if !sink.stop.Load() {
		t.Error("stop request lost while the command queue was full")
	}
}

// --- runLoop tests ---

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from
// runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// repeat returns n copies of sample.
func repeat(sample gpio.Inputs, n int) []gpio.Inputs {
	out := make([]gpio.Inputs, n)
	for i := range out {
		out[i] = sample
	}
	return out
}

type loopFixture struct {
	dev       *gpio.FakeDevice
	publisher *mqtt.FakePublisher
	tracker   *status.Tracker
	store     *config.Store
	logs      *logbuf.Buffer
	gate      *update.Gate
	sink      *commandSink
}

func newLoopFixture(t *testing.T, samples []gpio.Inputs, stored config.Persisted) *loopFixture {
	t.Helper()

	backend := config.NewFakeBackend()
	backend.Stored = &stored

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := &loopFixture{
		dev:       gpio.NewFakeDevice(samples),
		publisher: mqtt.NewFakePublisher(),
		tracker:   status.NewTracker(start, status.Config{}),
		logs:      logbuf.New(logbuf.DefaultCapacity),
		gate:      update.NewGate(),
		sink:      newCommandSink(),
	}
	f.store = config.Load(backend, f.logs.Logf)
	return f
}

// runRunLoop drives runLoop for nTicks ticks and then delivers signal,
// returning the loop's error.
func runRunLoop(t *testing.T, f *loopFixture, p loopParams, clock func() time.Time, nTicks int, signal os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(f.dev, f.publisher, f.publisher, f.tracker, f.store, f.logs, f.gate, f.sink, p, clock, tick, sig)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- signal

	return <-errCh
}

func testParams(verify time.Duration) loopParams {
	return loopParams{
		Poll:     50 * time.Millisecond,
		Control:  50 * time.Millisecond,
		Debounce: 50 * time.Millisecond,
		Verify:   verify,
	}
}

func TestRunLoopStartConfirmShutdown(t *testing.T) {
	// 3 seed reads, then: START pressed for 2 ticks, released, running
	// feedback raised before the verification check.
	samples := append(repeat(gpio.Inputs{}, 3),
		gpio.Inputs{Start: true}, // t=50ms
		gpio.Inputs{Start: true}, // t=100ms, edge -> K1 asserted
		gpio.Inputs{},            // t=150ms
		gpio.Inputs{},            // t=200ms, K1 released
		gpio.Inputs{Running: true}, // t=250ms
		gpio.Inputs{Running: true}, // t=300ms, verify confirms
	)
	f := newLoopFixture(t, samples, config.Persisted{
		PowerUpMs: 100, PowerDownMs: 100, RetryLimit: 3, AllowStart: true,
	})
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 50*time.Millisecond)

	err := runRunLoop(t, f, testParams(200*time.Millisecond), clock, 6, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(f.publisher.Events) != 2 {
		t.Fatalf("expected 2 generator events, got %d: %+v", len(f.publisher.Events), f.publisher.Events)
	}
	if f.publisher.Events[0].Type != logic.EventStarting {
		t.Errorf("event 0: got %s, want GEN_STARTING", f.publisher.Events[0].Type)
	}
	if f.publisher.Events[1].Type != logic.EventRunning {
		t.Errorf("event 1: got %s, want GEN_RUNNING", f.publisher.Events[1].Type)
	}

	if len(f.dev.K1Writes) != 2 || !f.dev.K1Writes[0] || f.dev.K1Writes[1] {
		t.Errorf("K1 writes: got %v, want [true false]", f.dev.K1Writes)
	}

	if len(f.publisher.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(f.publisher.SystemEvents))
	}
	se := f.publisher.SystemEvents[0]
	if se.Event != "SHUTDOWN" || se.Reason != "SIGTERM" {
		t.Errorf("shutdown event: got %+v", se)
	}
	if !se.Retained {
		t.Error("SHUTDOWN should be retained")
	}
	if se.RawPayload == nil {
		t.Error("SHUTDOWN should carry a status snapshot payload")
	}
}

func TestRunLoopRetryThenFailure(t *testing.T) {
	samples := append(repeat(gpio.Inputs{}, 3),
		gpio.Inputs{Start: true},
		gpio.Inputs{Start: true},
		gpio.Inputs{}, // repeats; running never comes up
	)
	f := newLoopFixture(t, samples, config.Persisted{
		PowerUpMs: 100, PowerDownMs: 100, RetryLimit: 1, AllowStart: true,
	})
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 50*time.Millisecond)

	err := runRunLoop(t, f, testParams(150*time.Millisecond), clock, 8, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	wantTypes := []logic.EventType{logic.EventStarting, logic.EventStartRetry, logic.EventStartFailed}
	if len(f.publisher.Events) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d: %+v", len(wantTypes), len(f.publisher.Events), f.publisher.Events)
	}
	for i, want := range wantTypes {
		if f.publisher.Events[i].Type != want {
			t.Errorf("event %d: got %s, want %s", i, f.publisher.Events[i].Type, want)
		}
	}

	// Initial attempt plus one retry: two K1 pulses.
	if len(f.dev.K1Writes) != 4 {
		t.Errorf("K1 writes: got %v, want two pulses", f.dev.K1Writes)
	}
}

func TestRunLoopWebCommandStartsGenerator(t *testing.T) {
	samples := repeat(gpio.Inputs{}, 4)
	f := newLoopFixture(t, samples, config.Persisted{
		PowerUpMs: 100, PowerDownMs: 100, RetryLimit: 3, AllowStart: true,
	})
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 50*time.Millisecond)

	// Enqueue before the first tick; the loop drains it mid-tick.
	f.sink.RequestStart()

	err := runRunLoop(t, f, testParams(time.Second), clock, 1, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if !f.dev.K1 {
		t.Error("K1 should be asserted after a queued start command")
	}
	if len(f.publisher.Events) != 1 || f.publisher.Events[0].Type != logic.EventStarting {
		t.Errorf("events: got %+v, want one GEN_STARTING", f.publisher.Events)
	}
}

func TestRunLoopStopLatchBeatsQueuedStarts(t *testing.T) {
	samples := repeat(gpio.Inputs{}, 4)
	f := newLoopFixture(t, samples, config.Persisted{
		PowerUpMs: 100, PowerDownMs: 100, RetryLimit: 3, AllowStart: true,
	})
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 50*time.Millisecond)

	// Flood the queue, then request the stop that disabling starts
	// fires. It must still reach the controller on the next tick.
	for i := 0; i < 20; i++ {
		f.sink.RequestStart()
	}
	f.sink.RequestStop()

	err := runRunLoop(t, f, testParams(time.Second), clock, 1, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if !f.dev.K2 {
		t.Error("K2 should be asserted: the latched stop must run")
	}
	last := f.publisher.Events[len(f.publisher.Events)-1]
	if last.Type != logic.EventStopping {
		t.Errorf("last event: got %s, want GEN_STOPPING", last.Type)
	}
}

func TestRunLoopUpdateGateSkipsControl(t *testing.T) {
	samples := append(repeat(gpio.Inputs{}, 3),
		gpio.Inputs{Start: true}, // would be a start edge if the tick ran
	)
	f := newLoopFixture(t, samples, config.Persisted{
		PowerUpMs: 100, PowerDownMs: 100, RetryLimit: 3, AllowStart: true,
	})
	f.gate.Begin()
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 50*time.Millisecond)

	err := runRunLoop(t, f, testParams(time.Second), clock, 4, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(f.dev.K1Writes) != 0 {
		t.Errorf("K1 writes during update: got %v, want none", f.dev.K1Writes)
	}
	if len(f.publisher.Events) != 0 {
		t.Errorf("events during update: got %+v", f.publisher.Events)
	}
	if !f.tracker.Snapshot().UpdateInProgress {
		t.Error("tracker should report update in progress")
	}
}

func TestRunLoopGPIOReadErrorContinues(t *testing.T) {
	samples := repeat(gpio.Inputs{}, 4)
	f := newLoopFixture(t, samples, config.Persisted{
		PowerUpMs: 100, PowerDownMs: 100, RetryLimit: 3, AllowStart: true,
	})
	f.dev.ReadError = os.ErrDeadlineExceeded
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 50*time.Millisecond)

	err := runRunLoop(t, f, testParams(time.Second), clock, 4, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	// SHUTDOWN is still published after read errors.
	if len(f.publisher.SystemEvents) != 1 || f.publisher.SystemEvents[0].Event != "SHUTDOWN" {
		t.Errorf("system events: got %+v, want SHUTDOWN", f.publisher.SystemEvents)
	}
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	samples := repeat(gpio.Inputs{}, 4)
	f := newLoopFixture(t, samples, config.Persisted{
		PowerUpMs: 100, PowerDownMs: 100, RetryLimit: 3, AllowStart: true,
	})
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 50*time.Millisecond)

	err := runRunLoop(t, f, testParams(time.Second), clock, 2, syscall.SIGINT)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(f.publisher.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(f.publisher.SystemEvents))
	}
	if got := f.publisher.SystemEvents[0].Reason; got != "SIGINT" {
		t.Errorf("shutdown reason: got %q, want SIGINT", got)
	}
}

func TestRunLoopPublishErrorDoesNotCrash(t *testing.T) {
	samples := append(repeat(gpio.Inputs{}, 3),
		gpio.Inputs{Start: true},
		gpio.Inputs{Start: true},
		gpio.Inputs{},
	)
	f := newLoopFixture(t, samples, config.Persisted{
		PowerUpMs: 100, PowerDownMs: 100, RetryLimit: 3, AllowStart: true,
	})
	f.publisher.PublishError = os.ErrClosed
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 50*time.Millisecond)

	err := runRunLoop(t, f, testParams(time.Second), clock, 4, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	// The relay sequence ran even though event publishing failed.
	if len(f.dev.K1Writes) == 0 {
		t.Error("expected K1 activity despite publish errors")
	}
	if len(f.publisher.Events) != 0 {
		t.Errorf("expected 0 recorded events (publish failed), got %d", len(f.publisher.Events))
	}
}

func TestRunLoopLEDMirrorsRunningFeedback(t *testing.T) {
	samples := append(repeat(gpio.Inputs{}, 3),
		gpio.Inputs{Running: true},
		gpio.Inputs{Running: true},
	)
	f := newLoopFixture(t, samples, config.Persisted{
		PowerUpMs: 100, PowerDownMs: 100, RetryLimit: 3, AllowStart: true,
	})
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 50*time.Millisecond)

	err := runRunLoop(t, f, testParams(time.Second), clock, 2, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if !f.dev.LED {
		t.Error("LED should follow debounced running feedback")
	}
}
