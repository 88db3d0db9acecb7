package stream

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"sync"
	"time"

	"github.com/contentai-pro/dashboard-core/internal"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/net/websocket"
)

const (
	defaultMinBackoff   = time.Second
	defaultMaxBackoff   = 30 * time.Second
	defaultDialTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

// WebsocketTransport opens push connections over websockets. Frames are JSON objects
// {"event": <name>, "data": <payload>} in both directions. The handshake carries the
// credentials as userId/token query parameters and as a bearer Authorization header; a
// completed upgrade is the server's connect acknowledgement.
type WebsocketTransport struct {
	URL internal.BackendURL
	// Path is appended to URL, e.g "/ws".
	Path string
	// MinBackoff is the wait after the first failure; it doubles per failure up to MaxBackoff.
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	DialTimeout time.Duration
	// WriteTimeout bounds each Emit.
	WriteTimeout time.Duration
}

func NewWebsocketTransport(wsURL, path string) *WebsocketTransport {
	return &WebsocketTransport{
		URL:          internal.BackendURL{Raw: wsURL},
		Path:         path,
		MinBackoff:   defaultMinBackoff,
		MaxBackoff:   defaultMaxBackoff,
		DialTimeout:  defaultDialTimeout,
		WriteTimeout: defaultWriteTimeout,
	}
}

func (t *WebsocketTransport) Open(creds Credentials, h Handler) (Socket, error) {
	location, err := t.URL.StreamURL(t.Path, creds.UserID, creds.Token)
	if err != nil {
		return nil, err
	}
	origin, err := t.URL.Origin()
	if err != nil {
		return nil, err
	}
	config, err := websocket.NewConfig(location, origin)
	if err != nil {
		return nil, fmt.Errorf("websocket config: %w", err)
	}
	config.Header.Set("Authorization", "Bearer "+creds.Token)
	config.Header.Set("User-Agent", "contentai-dashboard")
	config.Dialer = &net.Dialer{Timeout: t.DialTimeout}

	writeTimeout := t.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	s := &wsSocket{
		config:       config,
		handler:      h,
		userID:       creds.UserID,
		backoff:      t.backoff,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// backoff returns how long to wait after failCount consecutive failures.
func (t *WebsocketTransport) backoff(failCount int) time.Duration {
	if failCount <= 0 {
		return 0
	}
	minBackoff, maxBackoff := t.MinBackoff, t.MaxBackoff
	if minBackoff <= 0 {
		minBackoff = defaultMinBackoff
	}
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	if failCount > 30 {
		return maxBackoff
	}
	wait := time.Duration(math.Pow(2, float64(failCount-1))) * minBackoff
	if wait > maxBackoff || wait <= 0 {
		wait = maxBackoff
	}
	return wait
}

type wsSocket struct {
	config       *websocket.Config
	handler      Handler
	userID       string
	backoff      func(failCount int) time.Duration
	writeTimeout time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	done   chan struct{}
}

// run dials, reads until the connection drops, and dials again until Close.
func (s *wsSocket) run() {
	ctx := internal.OperationContext(context.Background(), "stream_dial")
	internal.SetContextUserID(ctx, s.userID)
	failCount := 0
	for {
		internal.SetContextAttempt(ctx, failCount)
		if failCount > 0 {
			wait := s.backoff(failCount)
			internal.DecorateLogger(ctx, logger.Debug()).Dur("wait", wait).Msg("websocket: waiting before redial")
			select {
			case <-s.done:
				return
			case <-time.After(wait):
			}
		}
		conn, err := websocket.DialConfig(s.config)
		if err != nil {
			internal.DecorateLogger(ctx, logger.Warn()).Err(err).Msg("websocket: dial failed")
			failCount++
			continue
		}
		if !s.attach(conn) {
			conn.Close()
			return
		}
		failCount = 0
		s.handler.OnConnect()
		err = s.readLoop(conn)
		if s.detach(conn) {
			return
		}
		failCount++
		s.handler.OnDisconnect(err)
	}
}

func (s *wsSocket) readLoop(conn *websocket.Conn) error {
	for {
		var msg []byte
		if err := websocket.Message.Receive(conn, &msg); err != nil {
			return err
		}
		if !gjson.ValidBytes(msg) {
			logger.Warn().Str("u", s.userID).Int("len", len(msg)).Msg("websocket: dropping frame which is not JSON")
			continue
		}
		frame := gjson.ParseBytes(msg)
		event := frame.Get("event")
		if event.Type != gjson.String || event.Str == "" {
			logger.Warn().Str("u", s.userID).Msg("websocket: dropping frame without an event name")
			continue
		}
		var data []byte
		if d := frame.Get("data"); d.Exists() {
			data = []byte(d.Raw)
		}
		s.handler.OnMessage(event.Str, data)
	}
}

// attach makes conn the live connection. Returns false if the socket was closed meanwhile.
func (s *wsSocket) attach(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conn = conn
	return true
}

// detach forgets conn. Returns true if the socket has been closed.
func (s *wsSocket) detach(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == conn {
		s.conn = nil
	}
	conn.Close()
	return s.closed
}

func (s *wsSocket) Emit(event string, payload interface{}) error {
	frame, err := sjson.SetBytes([]byte(`{}`), "event", event)
	if err != nil {
		return err
	}
	if payload != nil {
		frame, err = sjson.SetBytes(frame, "data", payload)
		if err != nil {
			return fmt.Errorf("emit %s: encode payload: %w", event, err)
		}
	}
	s.mu.Lock()
	conn := s.conn
	if conn == nil || s.closed {
		s.mu.Unlock()
		return ErrNotConnected
	}
	// set under s.mu so Close's expired deadline always lands after this one
	err = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	// sent without s.mu so a stalled write cannot hold up Close
	return websocket.Message.Send(conn, string(frame))
}

func (s *wsSocket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	// an expired deadline fails any Emit stuck in a write, which releases the
	// connection's write lock that Close needs for its close frame
	conn.SetWriteDeadline(time.Now())
	if err := conn.Close(); err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
		return err
	}
	return nil
}
