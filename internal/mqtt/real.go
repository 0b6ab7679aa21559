package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/bell-scheduler/internal/logic"
)

// bufferCapacity bounds the messages kept while the broker is unreachable.
const bufferCapacity = 256

// queueCapacity bounds the messages waiting for the delivery goroutine.
const queueCapacity = 64

const (
	publishTimeout = 5 * time.Second
	closeTimeout   = 2 * time.Second
)

// ErrClosed is returned when publishing after Close.
var ErrClosed = errors.New("mqtt: publisher closed")

// RealPublisher publishes to an actual MQTT broker. Publish and PublishSystem
// only queue the message; one goroutine delivers it so callers never wait on
// the broker. Messages that cannot be delivered are buffered and replayed on
// reconnect.
type RealPublisher struct {
	client paho.Client
	out    chan bufferedMsg
	done   chan struct{}

	mu     sync.Mutex
	buf    *ringBuffer
	closed bool
}

// NewRealPublisher creates a publisher for the given broker. The connection
// is established in the background and retried until Close.
func NewRealPublisher(broker, clientID string) *RealPublisher {
	p := newPublisher()

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     EventShutdown,
		Reason:    "MQTT_DISCONNECT",
	})

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.start(paho.NewClient(opts))
	p.client.Connect()
	return p
}

func newPublisher() *RealPublisher {
	return &RealPublisher{
		out:  make(chan bufferedMsg, queueCapacity),
		done: make(chan struct{}),
		buf:  newRingBuffer(bufferCapacity),
	}
}

func (p *RealPublisher) start(c paho.Client) {
	p.client = c
	go p.loop()
}

func (p *RealPublisher) loop() {
	defer close(p.done)
	for m := range p.out {
		if p.deliver(m) {
			p.flush()
		}
	}
}

// deliver publishes one message and reports whether the broker took it.
func (p *RealPublisher) deliver(m bufferedMsg) bool {
	if !p.client.IsConnectionOpen() {
		p.hold(m)
		return false
	}
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		p.hold(m)
		log.Printf("mqtt: publish to %s timeout", m.topic)
		return false
	}
	if err := token.Error(); err != nil {
		log.Printf("mqtt: publish to %s: %v", m.topic, err)
		return false
	}
	return true
}

// flush delivers messages held while the queue was full.
func (p *RealPublisher) flush() {
	p.mu.Lock()
	pending := p.buf.drainAll()
	p.mu.Unlock()
	for i, m := range pending {
		if !p.deliver(m) {
			for _, rest := range pending[i+1:] {
				p.hold(rest)
			}
			return
		}
	}
}

func (p *RealPublisher) hold(m bufferedMsg) {
	p.mu.Lock()
	p.buf.push(m)
	p.mu.Unlock()
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	pending := p.buf.drainAll()
	p.mu.Unlock()

	log.Printf("mqtt: connected, replaying %d messages", len(pending))
	for _, m := range pending {
		token := c.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
			log.Printf("mqtt: replay to %s failed: %v", m.topic, token.Error())
		}
	}
}

// Publish queues a bell event for the MQTT broker.
func (p *RealPublisher) Publish(event logic.BellEvent) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.send(bufferedMsg{topic: Topic, payload: payload, qos: 1})
}

// PublishSystem queues a system event for the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) send(m bufferedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.out <- m:
	default:
		p.buf.push(m)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close delivers what is queued, waiting at most closeTimeout, then
// disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.out)
	p.mu.Unlock()

	select {
	case <-p.done:
	case <-time.After(closeTimeout):
		log.Printf("mqtt: gave up delivering queued messages")
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
