// Package stream keeps the live push connection of an authenticated session.
package stream

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/contentai-pro/dashboard-core/internal"
	"github.com/contentai-pro/dashboard-core/pubsub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

type State int

const (
	Idle State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Options struct {
	// LogCapacity defaults to 50.
	LogCapacity int
	// PrometheusSubsystem registers stream metrics under this subsystem when non-empty.
	PrometheusSubsystem string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Client holds at most one live connection and the notification log. Events other than
// notifications are published to the notifier on ChanStream.
type Client struct {
	transport Transport
	notifier  pubsub.Notifier
	log       *Log
	now       func() time.Time

	mu     sync.Mutex
	state  State
	socket Socket
	creds  Credentials
	// handlers of earlier sockets carry an older generation and are ignored
	gen uint64

	stateGauge    prometheus.Gauge
	notifyCounter prometheus.Counter
}

// NewClient returns an Idle client. notifier may be nil, in which case forwarded events
// are dropped.
func NewClient(transport Transport, notifier pubsub.Notifier, opts Options) *Client {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Client{
		transport: transport,
		notifier:  notifier,
		log:       NewLog(opts.LogCapacity),
		now:       opts.Now,
	}
	if opts.PrometheusSubsystem != "" {
		c.addPrometheusMetrics(opts.PrometheusSubsystem)
	}
	return c
}

// Connect opens a connection for the given credentials. It does nothing if a connection
// already exists: callers must Disconnect before connecting as someone else.
func (c *Client) Connect(userID, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.socket != nil {
		if c.creds.UserID != userID || c.creds.Token != token {
			logger.Warn().Str("u", c.creds.UserID).Str("new_u", userID).Msg("Connect: already connected with other credentials, ignoring")
		}
		return nil
	}
	c.gen++
	creds := Credentials{UserID: userID, Token: token}
	h := &connHandler{c: c, gen: c.gen}
	c.setState(Connecting)
	socket, err := c.transport.Open(creds, h)
	if err != nil {
		c.setState(Idle)
		return fmt.Errorf("stream: open: %w", err)
	}
	c.socket = socket
	c.creds = creds
	logger.Info().Str("u", userID).Msg("stream connecting")
	return nil
}

// Disconnect closes the connection, if any. Safe to call any number of times.
func (c *Client) Disconnect() {
	c.mu.Lock()
	socket := c.socket
	userID := c.creds.UserID
	c.socket = nil
	c.creds = Credentials{}
	c.gen++
	c.setState(Idle)
	c.mu.Unlock()
	if socket == nil {
		return
	}
	if err := socket.Close(); err != nil {
		logger.Warn().Err(err).Str("u", userID).Msg("stream: failed to close socket")
	}
	logger.Info().Str("u", userID).Msg("stream disconnected")
}

// Emit sends an event upstream if the client is Connected. Otherwise it does nothing:
// there is no queueing and no delivery guarantee.
func (c *Client) Emit(event string, payload interface{}) {
	c.mu.Lock()
	socket := c.socket
	state := c.state
	c.mu.Unlock()
	if socket == nil || state != Connected {
		logger.Debug().Err(ErrNotConnected).Str("event", event).Msg("Emit: dropped")
		return
	}
	if err := socket.Emit(event, payload); err != nil {
		logger.Debug().Err(err).Str("event", event).Msg("Emit: dropped")
	}
}

// ClearNotifications empties the notification log.
func (c *Client) ClearNotifications() {
	c.log.Clear()
}

// Notifications returns the log, newest first.
func (c *Client) Notifications() []Notification {
	return c.log.Entries()
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Credentials returns who the current connection was opened for.
func (c *Client) Credentials() (Credentials, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds, c.socket != nil
}

// Close disconnects and releases metrics. The notifier is not closed.
func (c *Client) Close() {
	c.Disconnect()
	if c.stateGauge != nil {
		prometheus.Unregister(c.stateGauge)
		prometheus.Unregister(c.notifyCounter)
	}
}

// must hold c.mu
func (c *Client) setState(s State) {
	c.state = s
	if c.stateGauge != nil {
		c.stateGauge.Set(float64(s))
	}
}

func (c *Client) current(gen uint64) bool {
	return c.gen == gen && c.socket != nil
}

func (c *Client) onConnect(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current(gen) {
		return
	}
	c.setState(Connected)
	logger.Info().Str("u", c.creds.UserID).Msg("stream connected")
}

func (c *Client) onDisconnect(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current(gen) {
		return
	}
	// the transport reconnects by itself
	c.setState(Connecting)
	logger.Info().Err(err).Str("u", c.creds.UserID).Msg("stream dropped, waiting for transport to reconnect")
}

func (c *Client) onMessage(gen uint64, event string, data []byte) {
	c.mu.Lock()
	if !c.current(gen) {
		c.mu.Unlock()
		return
	}
	userID := c.creds.UserID
	c.mu.Unlock()

	ev := decodeEvent(event, data, c.now())
	if n, ok := ev.(*Notification); ok {
		c.log.Push(*n)
		if c.notifyCounter != nil {
			c.notifyCounter.Inc()
		}
		return
	}
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(ChanStream, ev); err != nil {
		logger.Warn().Err(err).Str("u", userID).Str("event", event).Msg("failed to forward stream event")
		internal.ReportError(context.Background(), "stream_forward", err)
	}
}

func (c *Client) addPrometheusMetrics(subsystem string) {
	c.stateGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "contentai",
		Subsystem: subsystem,
		Name:      "state",
		Help:      "Stream state: 0 idle, 1 connecting, 2 connected.",
	})
	c.notifyCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "contentai",
		Subsystem: subsystem,
		Name:      "notifications",
		Help:      "Number of notifications received.",
	})
	prometheus.MustRegister(c.stateGauge, c.notifyCounter)
}

// connHandler binds transport signals to the generation of the socket they belong to.
type connHandler struct {
	c   *Client
	gen uint64
}

func (h *connHandler) OnConnect()             { h.c.onConnect(h.gen) }
func (h *connHandler) OnDisconnect(err error) { h.c.onDisconnect(h.gen, err) }
func (h *connHandler) OnMessage(event string, data []byte) {
	h.c.onMessage(h.gen, event, data)
}
