// Package pubsub moves typed payloads between the goroutine that receives push events
// and the goroutines that consume them.
package pubsub

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var errClosed = errors.New("pubsub closed")

// Payload is anything published on a channel. Type names the kind of payload, and is
// used as a metrics label.
type Payload interface {
	Type() string
}

// Listener consumes payloads.
type Listener interface {
	// Listen invokes fn for each payload published on chanName. It blocks until Close.
	Listen(chanName string, fn func(p Payload)) error
	Close() error
}

// Notifier publishes payloads.
type Notifier interface {
	// Notify queues p on chanName, returning an error if it could not be queued.
	Notify(chanName string, p Payload) error
	Close() error
}

// PubSub is an in-process Notifier and Listener. Each channel is a buffered Go channel
// with a single consumer. Payloads still buffered when the PubSub is closed are dropped.
type PubSub struct {
	mu          sync.Mutex
	chans       map[string]chan Payload
	closed      bool
	done        chan struct{}
	bufferSize  int
	sendTimeout time.Duration
}

func NewPubSub(bufferSize int) *PubSub {
	return &PubSub{
		chans:       make(map[string]chan Payload),
		done:        make(chan struct{}),
		bufferSize:  bufferSize,
		sendTimeout: 5 * time.Second,
	}
}

// channel returns the Go channel for name, creating it on first use.
func (ps *PubSub) channel(name string) (chan Payload, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.closed {
		return nil, errClosed
	}
	ch, ok := ps.chans[name]
	if !ok {
		ch = make(chan Payload, ps.bufferSize)
		ps.chans[name] = ch
	}
	return ch, nil
}

// Notify blocks until the payload is buffered. It fails if nobody drains the channel in
// time or the PubSub is closed.
func (ps *PubSub) Notify(chanName string, p Payload) error {
	ch, err := ps.channel(chanName)
	if err != nil {
		return fmt.Errorf("notify %s on %s: %w", p.Type(), chanName, err)
	}
	timer := time.NewTimer(ps.sendTimeout)
	defer timer.Stop()
	select {
	case ch <- p:
		return nil
	case <-ps.done:
		return fmt.Errorf("notify %s on %s: %w", p.Type(), chanName, errClosed)
	case <-timer.C:
		return fmt.Errorf("notify %s on %s: no listener drained the channel within %v", p.Type(), chanName, ps.sendTimeout)
	}
}

// Listen calls fn for each payload on chanName until Close is called.
func (ps *PubSub) Listen(chanName string, fn func(p Payload)) error {
	ch, err := ps.channel(chanName)
	if err != nil {
		return nil
	}
	for {
		select {
		case <-ps.done:
			return nil
		case payload := <-ch:
			fn(payload)
		}
	}
}

func (ps *PubSub) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if !ps.closed {
		ps.closed = true
		close(ps.done)
	}
	return nil
}

// PromNotifier counts every published payload by type.
type PromNotifier struct {
	Notifier
	msgCounter *prometheus.CounterVec
}

// NewPromNotifier wraps n and registers its counter with the default registry. The counter
// is unregistered again by Close.
func NewPromNotifier(n Notifier, subsystem string) Notifier {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "contentai",
		Subsystem: subsystem,
		Name:      "num_payloads",
		Help:      "Number of payloads published",
	}, []string{"payload_type"})
	prometheus.MustRegister(counter)
	return &PromNotifier{Notifier: n, msgCounter: counter}
}

func (p *PromNotifier) Notify(chanName string, payload Payload) error {
	p.msgCounter.WithLabelValues(payload.Type()).Inc()
	return p.Notifier.Notify(chanName, payload)
}

func (p *PromNotifier) Close() error {
	prometheus.Unregister(p.msgCounter)
	return p.Notifier.Close()
}
