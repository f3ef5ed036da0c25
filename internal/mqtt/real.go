package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/genset-controller/internal/logic"
)

// queueCapacity bounds how many messages wait for delivery.
const queueCapacity = 256

// publishTimeout bounds how long the drainer waits for one broker ack.
const publishTimeout = 5 * time.Second

// RealPublisher publishes to an actual MQTT broker. Publish and
// PublishSystem only enqueue: delivery happens on a publisher-owned
// goroutine, so the control loop never waits on the broker. Messages
// enqueued while disconnected are held up to the queue capacity and
// replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	logf   func(format string, args ...any)

	mu    sync.Mutex
	queue *outQueue

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// NewRealPublisher creates a publisher connected to the given broker.
// Connection failures are retried in the background. logf may be nil,
// in which case delivery problems go to the standard logger.
func NewRealPublisher(broker string, logf func(format string, args ...any)) *RealPublisher {
	if logf == nil {
		logf = log.Printf
	}
	p := &RealPublisher{
		logf: logf,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	p.queue = newOutQueue(queueCapacity, logf)

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("genset-controller").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(p.onConnect)

	p.client = paho.NewClient(opts)
	p.client.Connect()
	go p.drainLoop()
	return p
}

// onConnect nudges the drainer so the backlog is replayed after the
// connection comes up.
func (p *RealPublisher) onConnect(paho.Client) {
	p.signal()
}

// Publish queues a generator event for the broker. It never blocks; an
// error means the event could not be serialized, not a delivery failure.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	p.enqueue(outMsg{topic: Topic, qos: 0, payload: payload})
	return nil
}

// PublishSystem queues a system lifecycle event for the broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	p.enqueue(outMsg{topic: TopicSystem, qos: 1, retained: event.Retained, payload: payload})
	return nil
}

func (p *RealPublisher) enqueue(m outMsg) {
	p.mu.Lock()
	p.queue.push(m)
	p.mu.Unlock()
	p.signal()
}

func (p *RealPublisher) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// drainLoop delivers queued messages whenever the connection is up.
// Waiting on broker acks is fine here: this goroutine owns no control
// state and a stalled broker only delays telemetry, never relays.
func (p *RealPublisher) drainLoop() {
	for {
		select {
		case <-p.done:
			return
		case <-p.wake:
		}
		p.flush()
	}
}

func (p *RealPublisher) flush() {
	if !p.client.IsConnected() {
		return
	}

	p.mu.Lock()
	msgs := p.queue.drain()
	p.mu.Unlock()

	for _, m := range msgs {
		token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(publishTimeout) {
			p.logf("mqtt: publish timeout on %s", m.topic)
			continue
		}
		if err := token.Error(); err != nil {
			p.logf("mqtt: publish failed on %s: %v", m.topic, err)
		}
	}
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close stops the drainer and disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.once.Do(func() { close(p.done) })
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
