// Command genset-controller drives a standby generator's start/stop
// relays from debounced GPIO signals and serves a control panel over
// HTTP, publishing transitions to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sweeney/genset-controller/internal/config"
	"github.com/sweeney/genset-controller/internal/gpio"
	"github.com/sweeney/genset-controller/internal/logbuf"
	"github.com/sweeney/genset-controller/internal/logic"
	"github.com/sweeney/genset-controller/internal/mqtt"
	"github.com/sweeney/genset-controller/internal/sched"
	"github.com/sweeney/genset-controller/internal/status"
	"github.com/sweeney/genset-controller/internal/update"
	"github.com/sweeney/genset-controller/internal/web"
)

func main() {
	poll := flag.Duration("poll", 10*time.Millisecond, "GPIO polling interval")
	control := flag.Duration("control", 50*time.Millisecond, "Control tick interval")
	debounce := flag.Duration("debounce", 50*time.Millisecond, "Debounce window")
	verify := flag.Duration("verify", logic.DefaultVerifyInterval, "Running-feedback verification interval")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", `MQTT broker address ("off" to disable)`)
	httpAddr := flag.String("http", ":80", "HTTP control panel address (empty to disable)")
	settings := flag.String("settings", "/var/lib/genset-controller/settings.yaml", "Persisted settings file")
	pinK1 := flag.Int("pin-k1", gpio.DefaultPinK1, "GPIO line for the K1 (power-up) relay")
	pinK2 := flag.Int("pin-k2", gpio.DefaultPinK2, "GPIO line for the K2 (power-down) relay")
	pinLED := flag.Int("pin-led", gpio.DefaultPinLED, "GPIO line for the status LED")
	pinStart := flag.Int("pin-start", gpio.DefaultPinStart, "GPIO line for the START input")
	pinStop := flag.Int("pin-stop", gpio.DefaultPinStop, "GPIO line for the STOP input")
	pinRunning := flag.Int("pin-running", gpio.DefaultPinRunning, "GPIO line for the RUNNING feedback input")
	printState := flag.Bool("print-state", false, "Print current input state and exit")

	flag.Parse()

	pins := gpio.PinConfig{
		K1:      *pinK1,
		K2:      *pinK2,
		LED:     *pinLED,
		Start:   *pinStart,
		Stop:    *pinStop,
		Running: *pinRunning,
	}

	p := loopParams{
		Poll:      *poll,
		Control:   *control,
		Debounce:  *debounce,
		Verify:    *verify,
		Heartbeat: *heartbeat,
	}

	if err := run(pins, p, *broker, *httpAddr, *settings, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// loopParams bundles the loop timing configuration.
type loopParams struct {
	Poll      time.Duration
	Control   time.Duration
	Debounce  time.Duration
	Verify    time.Duration
	Heartbeat time.Duration
}

// command is an operator request queued for the control loop.
type command int

const (
	cmdStart command = iota
)

// commandSink feeds operator commands into the control loop without
// blocking the HTTP goroutine. The loop is the only writer of relay
// state; handlers only enqueue. Stops go through a latch rather than
// the queue: a stop is a safety action and must not be droppable.
type commandSink struct {
	ch   chan command
	stop atomic.Bool
}

func newCommandSink() *commandSink {
	return &commandSink{ch: make(chan command, 16)}
}

// RequestStart enqueues a start command. Dropped if the queue is full.
func (s *commandSink) RequestStart() {
	select {
	case s.ch <- cmdStart:
	default:
	}
}

// RequestStop latches a stop request for the next control tick. The
// latch cannot overflow, so the stop fired when starting is disabled
// survives a full command queue.
func (s *commandSink) RequestStop() {
	s.stop.Store(true)
}

func run(pins gpio.PinConfig, p loopParams, broker, httpAddr, settingsPath string, printState bool) error {
	// Initialize GPIO
	dev, err := gpio.NewRealDevice(pins)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer dev.Close()

	// Print state mode
	if printState {
		in, err := dev.ReadInputs()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Printf("START: %s, STOP: %s, RUNNING: %s\n",
			stateString(in.Start), stateString(in.Stop), stateString(in.Running))
		return nil
	}

	logs := logbuf.New(logbuf.DefaultCapacity)

	// Persisted settings
	store := config.Load(config.NewFileBackend(settingsPath), logs.Logf)

	// MQTT
	var publisher mqtt.Publisher
	var connStatus mqtt.ConnectionStatus
	if broker != "off" {
		real := mqtt.NewRealPublisher(broker, logs.Logf)
		defer real.Close()
		publisher = real
		connStatus = real
	} else {
		nop := mqtt.NopPublisher{}
		publisher = nop
		connStatus = nop
	}

	// Status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      p.Poll.Milliseconds(),
		ControlMs:   p.Control.Milliseconds(),
		DebounceMs:  p.Debounce.Milliseconds(),
		VerifyMs:    p.Verify.Milliseconds(),
		HeartbeatMs: p.Heartbeat.Milliseconds(),
		Broker:      broker,
		HTTPAddr:    httpAddr,
		Settings:    settingsPath,
	})
	tracker.SetTunables(tunables(store))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	gate := update.NewGate()
	sink := newCommandSink()
	store.SetOnDisallow(sink.RequestStop)

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP control surface
	if httpAddr != "" {
		srv := web.New(httpAddr, tracker, sink, store, logs, gate)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http control panel listening on %s", httpAddr)
	}

	logs.Logf("booting: poll=%v control=%v debounce=%v verify=%v settings=%s",
		p.Poll, p.Control, p.Debounce, p.Verify, settingsPath)
	blinkLED(dev, 2, 200*time.Millisecond)

	ticker := time.NewTicker(p.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(dev, publisher, connStatus, tracker, store, logs, gate, sink, p, time.Now, ticker.C, sigCh)
}

func runLoop(dev gpio.Device, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, store *config.Store, logs *logbuf.Buffer, gate *update.Gate, sink *commandSink, p loopParams, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()

	scheduler := sched.New()
	ctrl := logic.NewController(store, scheduler, dev, logs.Logf, func(e logic.Event) {
		if err := publisher.Publish(e); err != nil {
			log.Printf("publish error: %v", err)
		}
	})
	ctrl.SetVerifyInterval(p.Verify)

	startSig := logic.NewSignal(p.Debounce)
	stopSig := logic.NewSignal(p.Debounce)
	runningSig := logic.NewSignal(p.Debounce)
	seedSignals(dev, startSig, stopSig, runningSig, startTime, logs.Logf)

	lastControl := startTime
	lastHeartbeat := startTime

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			snap := tracker.Snapshot()
			event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()

			// An external firmware update holds the device exclusively:
			// relay commands during a flash write are unsafe, so the
			// whole control tick is skipped until the gate clears.
			if gate.InProgress() {
				tracker.SetUpdateInProgress(true)
				continue
			}
			tracker.SetUpdateInProgress(false)

			in, err := dev.ReadInputs()
			if err != nil {
				log.Printf("gpio read error: %v", err)
				continue
			}

			// Feedback is debounced at the fast polling cadence.
			if edge := runningSig.Update(in.Running, t); edge != logic.EdgeNone {
				logs.Logf("feedback: running=%v", runningSig.Stable())
			}
			ctrl.ObserveRunning(runningSig.Stable())
			if err := dev.SetStatusLED(runningSig.Stable()); err != nil {
				log.Printf("led write error: %v", err)
			}

			scheduler.Tick(t)

			// Operator commands from the control surface. The stop
			// latch is applied after the queue so a simultaneous
			// queued start loses to it.
		drain:
			for {
				select {
				case cmd := <-sink.ch:
					switch cmd {
					case cmdStart:
						ctrl.Start(t)
					}
				default:
					break drain
				}
			}
			if sink.stop.Swap(false) {
				ctrl.Stop(t)
			}

			// Command signals are evaluated at the control cadence. An
			// input edge interrupt forces an immediate evaluation; the
			// lines are re-sampled either way, so coalesced edges
			// between ticks resolve to the correct stable state.
			irq := dev.Changed()
			if irq {
				dev.ClearChanged()
			}
			if irq || t.Sub(lastControl) >= p.Control {
				lastControl = t
				startEdge := startSig.Update(in.Start, t)
				stopEdge := stopSig.Update(in.Stop, t)
				ctrl.HandleEdges(startEdge, stopEdge, t)
			}

			// Heartbeat system event with a full status snapshot.
			if p.Heartbeat > 0 && t.Sub(lastHeartbeat) >= p.Heartbeat {
				lastHeartbeat = t
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				snap := tracker.Snapshot()
				hbEvent := mqtt.SystemEvent{
					Timestamp:  t,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

			// Update status tracker for HTTP consumers.
			k1, k2 := ctrl.RelayStates()
			tracker.Update(ctrl.State(), ctrl.Running(), k1, k2, ctrl.Attempts(), ctrl.CountsSnapshot())
			tracker.SetTunables(tunables(store))
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
		}
	}
}

// seedSignals initializes the debouncers from a multi-sample read so
// the boot-time line levels never register as edges.
func seedSignals(dev gpio.Device, start, stop, running *logic.Signal, now time.Time, logf logic.Logf) {
	var in gpio.Inputs
	var err error
	for i := 0; i < 3; i++ {
		in, err = dev.ReadInputs()
		if err != nil {
			logf("seed: gpio read error: %v", err)
			return
		}
	}
	start.Seed(in.Start, now)
	stop.Seed(in.Stop, now)
	running.Seed(in.Running, now)
	logf("seeded inputs: start=%v stop=%v running=%v", in.Start, in.Stop, in.Running)
}

// blinkLED signals boot on the status indicator.
func blinkLED(dev gpio.Device, times int, interval time.Duration) {
	for i := 0; i < times; i++ {
		dev.SetStatusLED(true)
		time.Sleep(interval)
		dev.SetStatusLED(false)
		time.Sleep(interval)
	}
}

func tunables(store *config.Store) status.Tunables {
	p := store.Snapshot()
	return status.Tunables{
		PowerUpMs:   p.PowerUpMs,
		PowerDownMs: p.PowerDownMs,
		RetryLimit:  p.RetryLimit,
		AllowStart:  p.AllowStart,
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func stateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
